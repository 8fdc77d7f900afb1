package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/plusdesk/api/schemas"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationTable = "schema_migrations"

const (
	sqliteLookup = `
        SELECT user_id, pwdhash
        FROM auth_password
        WHERE username = ?;
    `
	sqliteLookupRow = `
        SELECT user_id, username, pwdhash
        FROM auth_password
        WHERE username = ?;
    `
	sqliteDeletePair = `
        DELETE FROM auth_password
        WHERE username IN (?, ?);
    `
	sqliteInsertPair = `
        INSERT INTO auth_password (user_id, username, pwdhash)
        VALUES (?, ?, ?), (?, ?, ?);
    `
)

// SQLiteStore is a single-file credential store for development and tests.
// SQLite has one writer at a time; transactions begin IMMEDIATE so the write
// lock is taken before the lookups and swaps never interleave.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ schemas.CredentialStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the SQLite store at path and applies
// the embedded migrations.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: database.sqlite_path is empty", ErrDatabaseNotConfigured)
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, log: logger.Named("sqlite_store")}, nil
}

// DB exposes the underlying handle for seeding and inspection.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the underlying SQLite database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SwapCredentials implements schemas.CredentialStore.
func (s *SQLiteStore) SwapCredentials(ctx context.Context, oldUsername, newUsername string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	lookup := func(username string) (*schemas.Credential, error) {
		c := schemas.Credential{Username: username}
		err := tx.QueryRowContext(ctx, sqliteLookup, username).Scan(&c.UserID, &c.PasswordHash)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &AccountNotFoundError{Username: username}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up credential %q: %w", username, err)
		}
		return &c, nil
	}

	oldCred, err := lookup(oldUsername)
	if err != nil {
		return err
	}
	newCred, err := lookup(newUsername)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, sqliteDeletePair, oldUsername, newUsername)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 2 {
		return fmt.Errorf("expected to delete 2 credentials, deleted %d (%v)", n, err)
	}

	if _, err := tx.ExecContext(ctx, sqliteInsertPair,
		newCred.UserID, oldUsername, newCred.PasswordHash,
		oldCred.UserID, newUsername, oldCred.PasswordHash,
	); err != nil {
		return fmt.Errorf("failed to insert swapped credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return &CommitError{Err: err}
	}
	return nil
}

// LookupCredential implements schemas.CredentialStore.
func (s *SQLiteStore) LookupCredential(ctx context.Context, username string) (*schemas.Credential, error) {
	var c schemas.Credential
	err := s.db.QueryRowContext(ctx, sqliteLookupRow, username).Scan(&c.UserID, &c.Username, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &AccountNotFoundError{Username: username}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential %q: %w", username, err)
	}
	return &c, nil
}

// applyMigrations executes each embedded "-- +migrate Up" section at most once.
func applyMigrations(db *sql.DB, migrationFS fs.FS, root string) error {
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
        name TEXT PRIMARY KEY,
        applied_at INTEGER NOT NULL
    );`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var found int
		err := db.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, root+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(extractUpMigration(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, down)
	if downIdx == -1 {
		return content[upIdx+len(up):]
	}
	return content[upIdx+len(up) : downIdx]
}
