package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/providata-intake/internal/domain"
	"github.com/ashureev/providata-intake/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	retry     shared.RetryPolicy
	now       func() time.Time
	newCode   func(time.Time) string
	newID     func() string
	codeTries int
}

// Option customizes a SQLiteStore.
type Option func(*SQLiteStore)

// WithRetryPolicy sets the retry policy used for writes under lock contention.
func WithRetryPolicy(p shared.RetryPolicy) Option {
	return func(s *SQLiteStore) { s.retry = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithTrackingCodes overrides tracking code generation.
func WithTrackingCodes(gen func(time.Time) string) Option {
	return func(s *SQLiteStore) { s.newCode = gen }
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for concurrent readers; busy_timeout lets writers wait instead of failing fast.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{
		db:        db,
		retry:     shared.DefaultRetryPolicy,
		now:       time.Now,
		newCode:   domain.NewTrackingCode,
		newID:     newUUID,
		codeTries: 5,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

var _ Repository = (*SQLiteStore)(nil)

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS whatsapp_sessions (
		identity TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		municipality TEXT,
		selected_office_id TEXT,
		selected_office_name TEXT,
		collected_json TEXT NOT NULL,
		last_activity_at INTEGER NOT NULL,
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS processed_messages (
		message_id TEXT PRIMARY KEY,
		processed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_processed_messages_at ON processed_messages(processed_at);

	CREATE TABLE IF NOT EXISTS offices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		municipality TEXT NOT NULL,
		municipality_folded TEXT NOT NULL,
		uf TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_offices_municipality ON offices(municipality_folded) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		office_id TEXT REFERENCES offices(id),
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_categories_office ON categories(office_id);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE,
		tax_id TEXT,
		municipality TEXT,
		office_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		tracking_code TEXT NOT NULL UNIQUE,
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		office_id TEXT NOT NULL,
		category_id TEXT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS request_history (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id),
		action TEXT NOT NULL,
		status_previous TEXT,
		status_new TEXT NOT NULL,
		note TEXT,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// sessionPayload is the JSON shape of the collected_json column.
type sessionPayload struct {
	Collected      domain.Collected       `json:"collected"`
	PendingOptions *domain.OptionRegistry `json:"pending_options,omitempty"`
	OptionsVersion int64                  `json:"options_version,omitempty"`
}

// GetSession retrieves the session for an identity.
func (s *SQLiteStore) GetSession(ctx context.Context, identity string) (*domain.Session, error) {
	query := `
		SELECT identity, state, municipality, selected_office_id, selected_office_name,
		       collected_json, last_activity_at, version
		FROM whatsapp_sessions WHERE identity = ?`

	row := s.db.QueryRowContext(ctx, query, identity)

	var session domain.Session
	var state string
	var municipality, officeID, officeName sql.NullString
	var payloadJSON string
	var lastActivity int64

	err := row.Scan(
		&session.Identity, &state, &municipality, &officeID, &officeName,
		&payloadJSON, &lastActivity, &session.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	var payload sessionPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}

	session.State = domain.State(state)
	session.Municipality = municipality.String
	session.SelectedOfficeID = officeID.String
	session.SelectedOfficeName = officeName.String
	session.Collected = payload.Collected
	session.PendingOptions = payload.PendingOptions
	session.OptionsVersion = payload.OptionsVersion
	session.LastActivityAt = time.UnixMilli(lastActivity)

	return &session, nil
}

// SaveSession writes the session using its Version as an optimistic lock.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	payload, err := encodePayload(session)
	if err != nil {
		return err
	}
	now := s.now()

	var query string
	var args []interface{}
	if session.Version == 0 {
		query = `
		INSERT INTO whatsapp_sessions (
			identity, state, municipality, selected_office_id, selected_office_name,
			collected_json, last_activity_at, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(identity) DO NOTHING`
		args = []interface{}{
			session.Identity, string(session.State), nullString(session.Municipality),
			nullString(session.SelectedOfficeID), nullString(session.SelectedOfficeName),
			payload, session.LastActivityAt.UnixMilli(), now.Unix(), now.Unix(),
		}
	} else {
		query = `
		UPDATE whatsapp_sessions SET
			state = ?, municipality = ?, selected_office_id = ?, selected_office_name = ?,
			collected_json = ?, last_activity_at = ?, version = version + 1, updated_at = ?
		WHERE identity = ? AND version = ?`
		args = []interface{}{
			string(session.State), nullString(session.Municipality),
			nullString(session.SelectedOfficeID), nullString(session.SelectedOfficeName),
			payload, session.LastActivityAt.UnixMilli(), now.Unix(),
			session.Identity, session.Version,
		}
	}

	var rows int64
	err = shared.RetryOnConflict(ctx, s.retry, "save_session", func() error {
		result, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		rows, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	session.Version++
	return nil
}

// ResetSession overwrites the stored session regardless of its version.
func (s *SQLiteStore) ResetSession(ctx context.Context, session *domain.Session) error {
	payload, err := encodePayload(session)
	if err != nil {
		return err
	}
	now := s.now()

	query := `
	INSERT INTO whatsapp_sessions (
		identity, state, municipality, selected_office_id, selected_office_name,
		collected_json, last_activity_at, version, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(identity) DO UPDATE SET
		state = excluded.state,
		municipality = excluded.municipality,
		selected_office_id = excluded.selected_office_id,
		selected_office_name = excluded.selected_office_name,
		collected_json = excluded.collected_json,
		last_activity_at = excluded.last_activity_at,
		version = whatsapp_sessions.version + 1,
		updated_at = excluded.updated_at
	RETURNING version`

	var version int64
	err = shared.RetryOnConflict(ctx, s.retry, "reset_session", func() error {
		return s.db.QueryRowContext(ctx, query,
			session.Identity, string(session.State), nullString(session.Municipality),
			nullString(session.SelectedOfficeID), nullString(session.SelectedOfficeName),
			payload, session.LastActivityAt.UnixMilli(), now.Unix(), now.Unix(),
		).Scan(&version)
	})
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}

	session.Version = version
	return nil
}

// MarkProcessed records a provider message id.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string, at time.Time) (bool, error) {
	query := `INSERT INTO processed_messages (message_id, processed_at) VALUES (?, ?)
		ON CONFLICT(message_id) DO NOTHING`

	var rows int64
	err := shared.RetryOnConflict(ctx, s.retry, "mark_processed", func() error {
		result, execErr := s.db.ExecContext(ctx, query, messageID, at.Unix())
		if execErr != nil {
			return execErr
		}
		rows, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return rows == 1, nil
}

// PruneProcessed removes message ids recorded before the threshold.
func (s *SQLiteStore) PruneProcessed(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE processed_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune processed messages: %w", err)
	}
	return result.RowsAffected()
}

func encodePayload(session *domain.Session) (string, error) {
	data, err := json.Marshal(sessionPayload{
		Collected:      session.Collected,
		PendingOptions: session.PendingOptions,
		OptionsVersion: session.OptionsVersion,
	})
	if err != nil {
		return "", fmt.Errorf("encode session payload: %w", err)
	}
	return string(data), nil
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
