package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the aggregate table. One JSONB document per
// account, versioned for optimistic concurrency on top of SERIALIZABLE.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS trust_accounts (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    doc        JSONB NOT NULL,
    version    BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS trust_accounts_tenant_idx ON trust_accounts (tenant_id);
`

// PostgresStore persists aggregates in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema applies the schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PostgresSchema); err != nil {
		return WrapPersistence(fmt.Errorf("failed to apply schema: %w", err))
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, account *TrustAccount) error {
	doc, err := encodeAccount(account)
	if err != nil {
		return WrapPersistence(err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = s.pool.Exec(queryCtx, `
        INSERT INTO trust_accounts (id, tenant_id, doc, version)
        VALUES ($1, $2, $3, $4)
    `, account.ID, account.TenantID, doc, account.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return NewError(KindConflict, fmt.Sprintf("account %s already exists", account.ID))
		}
		return WrapPersistence(fmt.Errorf("failed to insert account: %w", err))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*TrustAccount, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc []byte
	err := s.pool.QueryRow(queryCtx,
		`SELECT doc FROM trust_accounts WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, fmt.Sprintf("account %s not found", id))
		}
		return nil, WrapPersistence(fmt.Errorf("failed to load account: %w", err))
	}
	account, err := decodeAccount(doc)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	return account, nil
}

// Update runs fn inside a SERIALIZABLE transaction with a row lock, retrying
// serialization failures (SQLSTATE 40001) the way the rest of this codebase
// handles them.
func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*TrustAccount) error) (*TrustAccount, error) {
	const maxRetries = 3

	var account *TrustAccount
	for attempt := 0; attempt < maxRetries; attempt++ {
		var err error
		account, err = s.updateOnce(ctx, id, fn)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "40001" {
				if attempt == maxRetries-1 {
					return nil, WrapPersistence(fmt.Errorf("failed to update account after %d retries due to serialization failure: %w", maxRetries, err))
				}
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			if KindOf(err) == "" {
				return nil, WrapPersistence(err)
			}
			return nil, err
		}
		break
	}
	return account, nil
}

func (s *PostgresStore) updateOnce(ctx context.Context, id string, fn func(*TrustAccount) error) (*TrustAccount, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := s.pool.Acquire(queryCtx)
	if err != nil {
		return nil, WrapPersistence(fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, WrapPersistence(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(queryCtx)

	var doc []byte
	var version int64
	err = tx.QueryRow(queryCtx,
		`SELECT doc, version FROM trust_accounts WHERE id = $1 FOR UPDATE`, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, fmt.Sprintf("account %s not found", id))
		}
		return nil, err
	}

	account, err := decodeAccount(doc)
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

	tag, err := tx.Exec(queryCtx, `
        UPDATE trust_accounts SET doc = $1, version = $2, updated_at = now()
        WHERE id = $3 AND version = $4
    `, updated, account.Version, id, version)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() != 1 {
		return nil, WrapPersistence(fmt.Errorf("version conflict updating account %s", id))
	}

	if err := tx.Commit(queryCtx); err != nil {
		return nil, err
	}
	return account, nil
}
