package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source is a backing store of raw user records. Implemented by the local
// SQLite store and the remote realtime store.
type Source interface {
	// Users returns the matching entries in insertion order.
	Users(ctx context.Context) ([]Entry, error)
	// Profiles returns registered profiles keyed by username.
	Profiles(ctx context.Context) ([]Entry, error)
	// Profile returns one profile, or nil when the key is unknown.
	Profile(ctx context.Context, key string) (Raw, error)
	SaveProfile(ctx context.Context, key string, data Raw) error
	AddUser(ctx context.Context, data Raw) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DefaultSnapshotTTL is how long a candidate snapshot is reused.
const DefaultSnapshotTTL = 30 * time.Second

// Manager reads and writes profiles across a remote and a local Source.
// The remote source is preferred for reads and written best-effort; the
// local source is authoritative for writes and serves as read fallback.
type Manager struct {
	local  Source
	remote Source // nil when no remote store is configured
	clock  Clock
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	cached   []Profile
	cachedAt time.Time
}

// NewManager creates a Manager with the default snapshot TTL. remote may be nil.
func NewManager(local, remote Source) *Manager {
	return NewManagerWithClock(local, remote, SystemClock{}, DefaultSnapshotTTL)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(local, remote Source, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		local:  local,
		remote: remote,
		clock:  clock,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// Snapshot returns every known user as a normalized, deduplicated list.
// All records in one snapshot come from a single source read.
func (m *Manager) Snapshot(ctx context.Context) ([]Profile, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		out := cloneAll(m.cached)
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return cloneAll(m.cached), nil
	}

	var snap []Profile
	if m.remote != nil {
		var err error
		snap, err = readSource(ctx, m.remote)
		if err != nil {
			m.logger.Warn("remote snapshot failed, using local store", "error", err)
			snap = nil
		}
	}
	if len(snap) == 0 {
		var err error
		snap, err = readSource(ctx, m.local)
		if err != nil {
			return nil, fmt.Errorf("reading local snapshot: %w", err)
		}
	}

	m.cached = snap
	m.cachedAt = m.clock.Now()
	return cloneAll(snap), nil
}

// Invalidate drops the cached snapshot.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

// readSource fetches users and profiles concurrently and merges them, with
// profile fields taking precedence over matching entries.
func readSource(ctx context.Context, src Source) ([]Profile, error) {
	var users, profiles []Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = src.Users(gctx)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		profiles, err = src.Profiles(gctx)
		if err != nil {
			return fmt.Errorf("listing profiles: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fromUsers := make([]Profile, 0, len(users))
	for _, e := range users {
		// Matching entries are keyed by opaque push IDs; only named ones count.
		if firstString(e.Data, nameKeys...) == "" {
			continue
		}
		fromUsers = append(fromUsers, Normalize(e.Data, ""))
	}
	return Merge(fromUsers, NormalizeAll(profiles)), nil
}

// Load returns the profile stored for key, trying the remote store before
// the local one. When the stored profile carries nothing to match on, the
// most recent matching entry added by or named after key is used instead.
// The boolean is false when nothing at all is known about key.
func (m *Manager) Load(ctx context.Context, key string) (Profile, bool, error) {
	if strings.TrimSpace(key) == "" {
		return Profile{}, false, nil
	}

	var (
		p     Profile
		found bool
	)
	if m.remote != nil {
		raw, err := m.remote.Profile(ctx, key)
		if err != nil {
			m.logger.Warn("remote profile read failed", "user", key, "error", err)
		} else if raw != nil {
			p, found = Normalize(raw, key), true
		}
	}
	if !found {
		raw, err := m.local.Profile(ctx, key)
		if err != nil {
			return Profile{}, false, fmt.Errorf("loading profile %q: %w", key, err)
		}
		if raw != nil {
			p, found = Normalize(raw, key), true
		}
	}

	if !found || p.LooksEmpty() {
		if entry, ok := m.latestEntryFor(ctx, key); ok {
			return entry, true, nil
		}
	}
	return p, found, nil
}

// latestEntryFor scans matching entries for the last one whose addedBy or
// name equals key.
func (m *Manager) latestEntryFor(ctx context.Context, key string) (Profile, bool) {
	sources := []Source{m.local}
	if m.remote != nil {
		sources = []Source{m.remote, m.local}
	}
	for _, src := range sources {
		users, err := src.Users(ctx)
		if err != nil {
			m.logger.Warn("reading matching entries failed", "user", key, "error", err)
			continue
		}
		for i := len(users) - 1; i >= 0; i-- {
			data := users[i].Data
			addedBy, _ := data[KeyAddedBy].(string)
			name, _ := data[KeyName].(string)
			if addedBy == key || name == key {
				p := Normalize(data, key)
				if name == "" {
					p.Name = key
				}
				return p, true
			}
		}
	}
	return Profile{}, false
}

// Save stores p under its name. The local write must succeed; the remote
// write is best-effort.
func (m *Manager) Save(ctx context.Context, p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("saving profile: empty name")
	}
	data := p.Raw()
	data[KeyUsername] = p.Name

	if err := m.local.SaveProfile(ctx, p.Name, data); err != nil {
		return fmt.Errorf("saving profile %q: %w", p.Name, err)
	}
	if m.remote != nil {
		if err := m.remote.SaveProfile(ctx, p.Name, data); err != nil {
			m.logger.Warn("remote profile save failed", "user", p.Name, "error", err)
		}
	}
	m.Invalidate()
	return nil
}

// AddUser appends a matching entry for p, recording who added it.
func (m *Manager) AddUser(ctx context.Context, p Profile, addedBy string) error {
	data := p.Raw()
	if addedBy != "" {
		data[KeyAddedBy] = addedBy
	}
	data[KeyCreatedAt] = m.clock.Now().UnixMilli()

	if err := m.local.AddUser(ctx, data); err != nil {
		return fmt.Errorf("adding user %q: %w", p.Name, err)
	}
	if m.remote != nil {
		if err := m.remote.AddUser(ctx, data); err != nil {
			m.logger.Warn("remote user add failed", "user", p.Name, "error", err)
		}
	}
	m.Invalidate()
	return nil
}

func cloneAll(ps []Profile) []Profile {
	out := make([]Profile, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}
