package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createClientStorageTable = `
	create table if not exists client_storage (
		key        text primary key,
		value      jsonb not null,
		updated_at timestamptz not null default now()
	)`

// PostgresStorage persists keys in a client_storage table, for kiosks that keep their
// state in a shared database instead of on local disk.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool) (*PostgresStorage, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is required")
	}
	if _, err := pool.Exec(ctx, createClientStorageTable); err != nil {
		return nil, err
	}
	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `select value from client_storage where key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *PostgresStorage) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		insert into client_storage (key, value, updated_at)
		values ($1, $2, now())
		on conflict (key) do update set
			value = $2,
			updated_at = now()`,
		key, value,
	)
	return err
}

func (s *PostgresStorage) Remove(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `delete from client_storage where key = $1`, key)
	return err
}
