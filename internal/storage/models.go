package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserEntry is one matching entry. Entries are append-only and listed in
// insertion order.
type UserEntry struct {
	ID          string
	Name        string
	AddedBy     string
	PayloadJSON string
	CreatedAt   time.Time
}

// ProfileRecord is a registered user's profile, keyed by username.
type ProfileRecord struct {
	Key         string
	PayloadJSON string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session is a study session between the user and a peer.
type Session struct {
	ID        string     `json:"id"`
	UserName  string     `json:"user"`
	Peer      string     `json:"peer"`
	MeetLink  string     `json:"meetLink"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Feedback is a rating given to a peer after a session.
type Feedback struct {
	ID        string    `json:"id"`
	Peer      string    `json:"peer"`
	GivenBy   string    `json:"givenBy"`
	Rating    int       `json:"rating"`
	Comments  string    `json:"comments"`
	CreatedAt time.Time `json:"at"`
}
