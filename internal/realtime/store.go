// Package realtime is the remote store shared by every peerfuse instance.
// It keeps the same collections as the hosted realtime database the web
// client writes to: users (pushed matching entries), profiles (keyed by
// username) and feedbacks (pushed ratings), each held in a Redis hash.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kalambet/peerfuse/internal/profile"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "peerfuse"

const (
	collUsers     = "users"
	collProfiles  = "profiles"
	collFeedbacks = "feedbacks"
)

// Connect dials Redis at url and verifies the connection. An empty url
// returns a nil client: the remote store is optional.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		slog.Warn("redis URL not configured, running with the local store only")
		return nil, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	slog.Info("connected to redis", "addr", opt.Addr)
	return client, nil
}

// Store reads and writes the shared collections.
type Store struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

// New creates a Store over rdb. An empty prefix uses DefaultPrefix.
func New(rdb redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

var _ profile.Source = (*Store)(nil)

func (s *Store) key(collection string) string {
	return s.prefix + ":" + collection
}

// Ping checks that Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Users returns the pushed matching entries, oldest first.
func (s *Store) Users(ctx context.Context) ([]profile.Entry, error) {
	return s.list(ctx, collUsers)
}

// Profiles returns registered profiles ordered by key.
func (s *Store) Profiles(ctx context.Context) ([]profile.Entry, error) {
	return s.list(ctx, collProfiles)
}

// Profile returns the profile stored under key, or nil when there is none.
func (s *Store) Profile(ctx context.Context, key string) (profile.Raw, error) {
	v, err := s.rdb.HGet(ctx, s.key(collProfiles), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", key, err)
	}
	var raw profile.Raw
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return profile.Raw{}, nil
	}
	return raw, nil
}

// SaveProfile replaces the profile stored under key, stamping username and
// updatedAt.
func (s *Store) SaveProfile(ctx context.Context, key string, data profile.Raw) error {
	rec := make(profile.Raw, len(data)+2)
	for k, v := range data {
		rec[k] = v
	}
	if u, _ := rec[profile.KeyUsername].(string); u == "" {
		rec[profile.KeyUsername] = key
	}
	rec[profile.KeyUpdatedAt] = s.now().UnixMilli()
	return s.set(ctx, collProfiles, key, rec)
}

// AddUser pushes a matching entry, stamping createdAt when absent.
func (s *Store) AddUser(ctx context.Context, data profile.Raw) error {
	_, err := s.push(ctx, collUsers, data)
	return err
}

// SaveFeedback pushes a feedback record and returns its key.
func (s *Store) SaveFeedback(ctx context.Context, data map[string]any) (string, error) {
	return s.push(ctx, collFeedbacks, data)
}

// Feedbacks returns every pushed feedback record, oldest first.
func (s *Store) Feedbacks(ctx context.Context) ([]profile.Entry, error) {
	return s.list(ctx, collFeedbacks)
}

func (s *Store) push(ctx context.Context, collection string, data map[string]any) (string, error) {
	now := s.now()
	rec := make(map[string]any, len(data)+1)
	for k, v := range data {
		rec[k] = v
	}
	if _, ok := rec[profile.KeyCreatedAt]; !ok {
		rec[profile.KeyCreatedAt] = now.UnixMilli()
	}
	id := pushKey(now)
	if err := s.set(ctx, collection, id, rec); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) set(ctx context.Context, collection, field string, rec map[string]any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, field, err)
	}
	if err := s.rdb.HSet(ctx, s.key(collection), field, string(b)).Err(); err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, field, err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, collection string) ([]profile.Entry, error) {
	all, err := s.rdb.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]profile.Entry, 0, len(keys))
	for _, k := range keys {
		var raw profile.Raw
		if err := json.Unmarshal([]byte(all[k]), &raw); err != nil {
			slog.Warn("skipping malformed record", "collection", collection, "key", k, "error", err)
			continue
		}
		out = append(out, profile.Entry{Key: k, Data: raw})
	}
	return out, nil
}

// pushKey returns a key that sorts after every key generated earlier.
func pushKey(t time.Time) string {
	return fmt.Sprintf("%019d-%s", t.UnixNano(), uuid.NewString()[:8])
}
