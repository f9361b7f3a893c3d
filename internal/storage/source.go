package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/peerfuse/internal/profile"
)

// ProfileSource exposes a Store as a profile.Source.
type ProfileSource struct {
	store *Store
}

// NewProfileSource wraps store.
func NewProfileSource(store *Store) *ProfileSource {
	return &ProfileSource{store: store}
}

var _ profile.Source = (*ProfileSource)(nil)

func (p *ProfileSource) Users(ctx context.Context) ([]profile.Entry, error) {
	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]profile.Entry, 0, len(users))
	for _, u := range users {
		out = append(out, profile.Entry{Key: u.ID, Data: decodePayload(u.PayloadJSON)})
	}
	return out, nil
}

func (p *ProfileSource) Profiles(ctx context.Context) ([]profile.Entry, error) {
	records, err := p.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]profile.Entry, 0, len(records))
	for _, r := range records {
		out = append(out, profile.Entry{Key: r.Key, Data: decodePayload(r.PayloadJSON)})
	}
	return out, nil
}

func (p *ProfileSource) Profile(ctx context.Context, key string) (profile.Raw, error) {
	r, err := p.store.GetProfile(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodePayload(r.PayloadJSON), nil
}

func (p *ProfileSource) SaveProfile(ctx context.Context, key string, data profile.Raw) error {
	return p.store.SaveProfile(ctx, key, data)
}

func (p *ProfileSource) AddUser(ctx context.Context, data profile.Raw) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding user entry: %w", err)
	}
	name, _ := data[profile.KeyName].(string)
	addedBy, _ := data[profile.KeyAddedBy].(string)
	entry := UserEntry{Name: name, AddedBy: addedBy, PayloadJSON: string(payload)}
	if ms, ok := data[profile.KeyCreatedAt].(int64); ok {
		entry.CreatedAt = time.UnixMilli(ms)
	}
	_, err = p.store.AddUser(ctx, entry)
	return err
}

// decodePayload never fails; a corrupt payload reads as an empty record,
// which normalizes to defaults.
func decodePayload(s string) profile.Raw {
	var raw profile.Raw
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return profile.Raw{}
	}
	return raw
}
