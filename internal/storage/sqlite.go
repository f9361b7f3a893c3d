package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the local SQLite store for matching entries, profiles, sessions
// and feedback.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "peerfuse.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Matching entries ---

// AddUser appends a matching entry. ID and CreatedAt are filled in when empty.
func (s *Store) AddUser(ctx context.Context, u UserEntry) (UserEntry, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, added_by, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.AddedBy, u.PayloadJSON, u.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return UserEntry{}, fmt.Errorf("inserting user entry: %w", err)
	}
	return u, nil
}

// ListUsers returns every matching entry in insertion order.
func (s *Store) ListUsers(ctx context.Context) ([]UserEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, added_by, payload, created_at FROM users ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserEntry
	for rows.Next() {
		var u UserEntry
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &u.AddedBy, &u.PayloadJSON, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTime(createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUsersAddedBy removes every entry added by the given user.
func (s *Store) DeleteUsersAddedBy(ctx context.Context, addedBy string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE added_by = ?", addedBy)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Profiles ---

// SaveProfile stores fields under key. Fields already stored and absent
// from fields are kept.
func (s *Store) SaveProfile(ctx context.Context, key string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning profile save: %w", err)
	}
	defer tx.Rollback()

	merged := make(map[string]any)
	var existing string
	err = tx.QueryRowContext(ctx, "SELECT payload FROM profiles WHERE key = ?", key).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("reading profile %q: %w", key, err)
	default:
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return fmt.Errorf("decoding stored profile %q: %w", key, err)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding profile %q: %w", key, err)
	}
	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (key, payload, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(payload), now, now,
	); err != nil {
		return fmt.Errorf("writing profile %q: %w", key, err)
	}
	return tx.Commit()
}

// GetProfile returns the stored profile for key or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, key string) (ProfileRecord, error) {
	var r ProfileRecord
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT key, payload, created_at, updated_at FROM profiles WHERE key = ?", key,
	).Scan(&r.Key, &r.PayloadJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return ProfileRecord{}, ErrNotFound
	}
	if err != nil {
		return ProfileRecord{}, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// ListProfiles returns all profiles in registration order.
func (s *Store) ListProfiles(ctx context.Context) ([]ProfileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, payload, created_at, updated_at FROM profiles ORDER BY rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProfileRecord
	for rows.Next() {
		var r ProfileRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&r.Key, &r.PayloadJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteProfile removes the profile stored under key.
func (s *Store) DeleteProfile(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE key = ?", key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Sessions ---

// StartSession records a new session. ID and StartedAt are filled in when empty.
func (s *Store) StartSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_name, peer, meet_link, started_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserName, sess.Peer, sess.MeetLink, sess.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return Session{}, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// EndSession marks a session as ended. Ending an ended session is a no-op.
func (s *Store) EndSession(ctx context.Context, id string, at time.Time) (Session, error) {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL",
		at.UTC().Format(timeLayout), id,
	); err != nil {
		return Session{}, fmt.Errorf("ending session %s: %w", id, err)
	}
	return s.GetSession(ctx, id)
}

// GetSession returns a session by ID or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_name, peer, meet_link, started_at, ended_at FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// ListSessions returns the most recent sessions of user, newest first.
func (s *Store) ListSessions(ctx context.Context, user string, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_name, peer, meet_link, started_at, ended_at FROM sessions
		WHERE user_name = ? ORDER BY started_at DESC LIMIT ?`, user, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var sess Session
	var startedAt string
	var endedAt sql.NullString
	if err := r.Scan(&sess.ID, &sess.UserName, &sess.Peer, &sess.MeetLink, &startedAt, &endedAt); err != nil {
		return Session{}, err
	}
	sess.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		sess.EndedAt = &t
	}
	return sess, nil
}

// --- Feedback ---

// SaveFeedback records a peer rating. ID and CreatedAt are filled in when empty.
func (s *Store) SaveFeedback(ctx context.Context, fb Feedback) (Feedback, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, peer, given_by, rating, comments, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.Peer, fb.GivenBy, fb.Rating, fb.Comments, fb.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return Feedback{}, fmt.Errorf("inserting feedback: %w", err)
	}
	return fb, nil
}

// ListFeedback returns feedback about peer, or all feedback when peer is
// empty, newest first.
func (s *Store) ListFeedback(ctx context.Context, peer string, limit int) ([]Feedback, error) {
	query := "SELECT id, peer, given_by, rating, comments, created_at FROM feedback"
	var args []any
	if peer != "" {
		query += " WHERE peer = ?"
		args = append(args, peer)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		var createdAt string
		if err := rows.Scan(&fb.ID, &fb.Peer, &fb.GivenBy, &fb.Rating, &fb.Comments, &createdAt); err != nil {
			return nil, err
		}
		fb.CreatedAt = parseTime(createdAt)
		out = append(out, fb)
	}
	return out, rows.Err()
}

// AverageRating returns the mean rating received by peer and how many
// ratings it is based on.
func (s *Store) AverageRating(ctx context.Context, peer string) (float64, int, error) {
	var avg sql.NullFloat64
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT AVG(rating), COUNT(*) FROM feedback WHERE peer = ?", peer,
	).Scan(&avg, &n)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, n, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// parseTime accepts both the stored layout and the driver's RFC 3339
// rendering of DATETIME columns.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
