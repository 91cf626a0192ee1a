package storage

import (
	"context"
	"fmt"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "diwise"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg Config) (Store, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewPostgresStoreFromPool(ctx, pool)
}

// NewPostgresStoreFromPool creates the objects table if needed and returns a
// store backed by it. The store takes ownership of the pool.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS objects (
			id TEXT PRIMARY KEY,
			body JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create objects table: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Create(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `INSERT INTO objects (id, body) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING;`, id, b)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return errors.NewAlreadyExistsError(fmt.Sprintf("an object with id %s already exists", id))
	}

	return nil
}

func (s *postgresStore) Replace(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE objects SET body = $2, modified_at = NOW() WHERE id = $1;`, id, b)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	return nil
}

func (s *postgresStore) Put(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO objects (id, body) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, modified_at = NOW();`, id, b)

	return err
}

func (s *postgresStore) Get(ctx context.Context, id string) (map[string]any, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM objects WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	var b []byte
	if err := rows.Scan(&b); err != nil {
		return nil, err
	}

	return decode(b)
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM objects WHERE id = $1;`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	return nil
}

func (s *postgresStore) List(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM objects ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]map[string]any, 0)

	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}

		doc, err := decode(b)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}
