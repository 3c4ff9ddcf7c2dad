package trust

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSchema creates the aggregate table for the embedded store.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS trust_accounts (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    doc        TEXT NOT NULL,
    version    INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS trust_accounts_tenant_idx ON trust_accounts (tenant_id);
`

// SQLiteStore persists aggregates in an embedded SQLite database. Used for
// single-node deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// The aggregate scope serializes writers anyway; a single connection
	// avoids SQLITE_BUSY on concurrent scopes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, account *TrustAccount) error {
	doc, err := encodeAccount(account)
	if err != nil {
		return WrapPersistence(err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(queryCtx, `
        INSERT INTO trust_accounts (id, tenant_id, doc, version, updated_at)
        VALUES (?, ?, ?, ?, ?)
    `, account.ID, account.TenantID, string(doc), account.Version, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewError(KindConflict, fmt.Sprintf("account %s already exists", account.ID))
		}
		return WrapPersistence(fmt.Errorf("failed to insert account: %w", err))
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*TrustAccount, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc string
	err := s.db.QueryRowContext(queryCtx,
		`SELECT doc FROM trust_accounts WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(KindNotFound, fmt.Sprintf("account %s not found", id))
		}
		return nil, WrapPersistence(fmt.Errorf("failed to load account: %w", err))
	}
	return decodeAccount([]byte(doc))
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fn func(*TrustAccount) error) (*TrustAccount, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(queryCtx, nil)
	if err != nil {
		return nil, WrapPersistence(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	var doc string
	var version int64
	err = tx.QueryRowContext(queryCtx,
		`SELECT doc, version FROM trust_accounts WHERE id = ?`, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(KindNotFound, fmt.Sprintf("account %s not found", id))
		}
		return nil, WrapPersistence(fmt.Errorf("failed to load account: %w", err))
	}

	account, err := decodeAccount([]byte(doc))
	if err != nil {
		return nil, WrapPersistence(err)
	}

	if err := fn(account); err != nil {
		return nil, err
	}
	account.Version = version + 1

	updated, err := encodeAccount(account)
	if err != nil {
		return nil, WrapPersistence(err)
	}

	res, err := tx.ExecContext(queryCtx, `
        UPDATE trust_accounts SET doc = ?, version = ?, updated_at = ?
        WHERE id = ? AND version = ?
    `, string(updated), account.Version, time.Now().UTC().Format(time.RFC3339Nano), id, version)
	if err != nil {
		return nil, WrapPersistence(fmt.Errorf("failed to store account: %w", err))
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, WrapPersistence(fmt.Errorf("version conflict updating account %s", id))
	}

	if err := tx.Commit(); err != nil {
		return nil, WrapPersistence(fmt.Errorf("failed to commit: %w", err))
	}
	return account, nil
}
