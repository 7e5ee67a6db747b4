// Package sqlite persists a collection's invites in a SQLite database file
// inside the collection directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/greatdennis/ccs-calendarserver/sharing"
)

const (
	// dbBasename is the database file name inside the collection
	// directory. The dot prefix keeps it out of collection listings.
	dbBasename = ".db.invites"

	schemaVersion = "1"
	storeType     = "invites"
)

// Store implements sharing.Store on a per-collection SQLite file. A single
// connection serializes all access, which is the writer serialization the
// store contract requires.
type Store struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// New creates a store for the collection rooted at dir. The backing file
// is opened lazily on first use.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Path returns the database file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbBasename)
}

// Exists reports whether the backing file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// conn returns the open database handle, opening the file and ensuring the
// schema on first use. Callers must hold s.mu.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}

	dsn := "file:" + s.Path() + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, s.storageError("failed to open invite database", err)
	}
	db.SetMaxOpenConns(1)

	if err := s.ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s.db, nil
}

// ensureSchema initializes the schema or verifies its version. A matching
// version is a no-op upgrade; a mismatched one rebuilds the table, since
// invites can be re-provisioned from scratch.
func (s *Store) ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`create table if not exists CONTROL (NAME text unique, VALUE text)`)
	if err != nil {
		return s.storageError("failed to create control table", err)
	}

	var version string
	err = db.QueryRowContext(ctx,
		`select VALUE from CONTROL where NAME = 'SCHEMA_VERSION'`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.initSchema(ctx, db)
	case err != nil:
		return s.storageError("failed to read schema version", err)
	case version == schemaVersion:
		return nil
	default:
		s.logger.Warn("rebuilding invite database for new schema",
			"path", s.Path(),
			"old_version", version,
			"new_version", schemaVersion)
		if _, err := db.ExecContext(ctx, `drop table if exists INVITE`); err != nil {
			return s.storageError("failed to drop outdated invite table", err)
		}
		return s.initSchema(ctx, db)
	}
}

func (s *Store) initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		create table if not exists INVITE (
			INVITEUID text unique,
			USERID    text unique,
			ACCESS    text,
			STATE     text,
			SUMMARY   text
		)`)
	if err != nil {
		return s.storageError("failed to create invite table", err)
	}

	_, err = db.ExecContext(ctx, `
		insert or replace into CONTROL (NAME, VALUE) values
			('SCHEMA_VERSION', ?), ('TYPE', ?)`,
		schemaVersion, storeType)
	if err != nil {
		return s.storageError("failed to record schema version", err)
	}
	return nil
}

// Create implements sharing.Store
func (s *Store) Create(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn(ctx)
	return err
}

// Remove implements sharing.Store
func (s *Store) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s.storageError("failed to delete invite database", err)
	}
	return nil
}

// AllRecords implements sharing.Store
func (s *Store) AllRecords(ctx context.Context) ([]sharing.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`select INVITEUID, USERID, ACCESS, STATE, SUMMARY from INVITE order by USERID`)
	if err != nil {
		return nil, s.storageError("failed to list invites", err)
	}
	defer rows.Close()

	var records []sharing.Invite
	for rows.Next() {
		var invite sharing.Invite
		if err := rows.Scan(&invite.UID, &invite.UserID, &invite.Access, &invite.State, &invite.Summary); err != nil {
			return nil, s.storageError("failed to scan invite row", err)
		}
		records = append(records, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageError("failed to iterate invite rows", err)
	}
	return records, nil
}

// RecordForUserID implements sharing.Store
func (s *Store) RecordForUserID(ctx context.Context, userID string) (*sharing.Invite, error) {
	return s.queryOne(ctx,
		`select INVITEUID, USERID, ACCESS, STATE, SUMMARY from INVITE where USERID = ?`, userID)
}

// RecordForInviteUID implements sharing.Store
func (s *Store) RecordForInviteUID(ctx context.Context, uid string) (*sharing.Invite, error) {
	return s.queryOne(ctx,
		`select INVITEUID, USERID, ACCESS, STATE, SUMMARY from INVITE where INVITEUID = ?`, uid)
}

func (s *Store) queryOne(ctx context.Context, query, arg string) (*sharing.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var invite sharing.Invite
	err = db.QueryRowContext(ctx, query, arg).
		Scan(&invite.UID, &invite.UserID, &invite.Access, &invite.State, &invite.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageError("failed to read invite", err)
	}
	return &invite, nil
}

// AddOrUpdateRecord implements sharing.Store
func (s *Store) AddOrUpdateRecord(ctx context.Context, invite sharing.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	// insert or replace displaces any row conflicting on either unique
	// column, which is exactly the upsert-by-USERID the contract wants.
	_, err = db.ExecContext(ctx, `
		insert or replace into INVITE (INVITEUID, USERID, ACCESS, STATE, SUMMARY)
		values (?, ?, ?, ?, ?)`,
		invite.UID, invite.UserID, string(invite.Access), string(invite.State), invite.Summary)
	if err != nil {
		return s.storageError("failed to upsert invite", err)
	}
	return nil
}

// RemoveRecordForUserID implements sharing.Store
func (s *Store) RemoveRecordForUserID(ctx context.Context, userID string) error {
	return s.execDelete(ctx, `delete from INVITE where USERID = ?`, userID)
}

// RemoveRecordForInviteUID implements sharing.Store
func (s *Store) RemoveRecordForInviteUID(ctx context.Context, uid string) error {
	return s.execDelete(ctx, `delete from INVITE where INVITEUID = ?`, uid)
}

func (s *Store) execDelete(ctx context.Context, query, arg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, arg); err != nil {
		return s.storageError("failed to delete invite", err)
	}
	return nil
}

func (s *Store) storageError(message string, err error) error {
	return &sharing.Error{
		Type:    sharing.ErrStorage,
		Message: message,
		Err:     err,
	}
}
