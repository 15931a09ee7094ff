package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolLedger/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entities (
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
)`

// Store provides Postgres persistence for ledger entities.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the entity table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get returns the JSON document of one entity.
func (s *Store) Get(ctx context.Context, kind, id string) ([]byte, bool, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM ledger_entities WHERE kind=$1 AND id=$2`, kind, id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put upserts one entity.
func (s *Store) Put(ctx context.Context, kind, id string, data []byte) error {
	_, err := s.pool.Exec(ctx, upsertEntity, kind, id, data)
	return err
}

const upsertEntity = `
	INSERT INTO ledger_entities (kind, id, data, created_at, updated_at)
	VALUES ($1, $2, $3, now(), now())
	ON CONFLICT (kind, id)
	DO UPDATE SET
		data = EXCLUDED.data,
		updated_at = now()
`

// PutBatch upserts all records in a single transaction.
func (s *Store) PutBatch(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertEntity, r.Kind, r.ID, []byte(r.Data))
	}

	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CountByKind returns the number of stored entities per kind.
func (s *Store) CountByKind(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT kind, count(*) FROM ledger_entities GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// ListIDs returns the ids of every entity of one kind whose id starts with prefix.
func (s *Store) ListIDs(ctx context.Context, kind, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM ledger_entities WHERE kind=$1 AND starts_with(id, $2) ORDER BY id`, kind, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
