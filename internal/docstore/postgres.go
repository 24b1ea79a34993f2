package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS desklab_documents (
	name       TEXT NOT NULL,
	tag        TEXT NOT NULL,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (name, tag)
)`

// PostgresStore keeps documents in the desklab_documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. Call Migrate before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres connects to dsn and creates the documents table.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, deskerrors.ConfigError("invalid postgres dsn", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the documents table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createDocumentsTable); err != nil {
		return deskerrors.ExternalFailure("postgres migrate", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM desklab_documents WHERE name = $1 AND tag = $2`,
		ref.Name, ref.Tag,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, deskerrors.ExternalFailure("postgres get", err)
	}
	return body, nil
}

func (s *PostgresStore) Put(ctx context.Context, ref Ref, doc []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO desklab_documents (name, tag, body, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (name, tag) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		ref.Name, ref.Tag, json.RawMessage(doc),
	)
	if err != nil {
		return deskerrors.ExternalFailure("postgres put", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
