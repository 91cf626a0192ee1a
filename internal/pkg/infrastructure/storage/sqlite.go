package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS objects (
	id          TEXT PRIMARY KEY,
	body        TEXT NOT NULL,
	modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type sqliteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens (or creates) a sqlite database at dsn
func NewSQLiteStore(dsn string) (Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}

	return &sqliteStore{conn: conn}, nil
}

func (s *sqliteStore) Create(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx, `INSERT INTO objects (id, body) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`, id, string(b))
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewAlreadyExistsError(fmt.Sprintf("an object with id %s already exists", id))
	}

	return nil
}

func (s *sqliteStore) Replace(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx, `UPDATE objects SET body = ?, modified_at = CURRENT_TIMESTAMP WHERE id = ?`, string(b), id)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	return nil
}

func (s *sqliteStore) Put(ctx context.Context, id string, document map[string]any) error {
	b, err := encode(document)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO objects (id, body) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, modified_at = CURRENT_TIMESTAMP`, id, string(b))

	return err
}

func (s *sqliteStore) Get(ctx context.Context, id string) (map[string]any, error) {
	var body string

	err := s.conn.QueryRowContext(ctx, `SELECT body FROM objects WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}
	if err != nil {
		return nil, err
	}

	return decode([]byte(body))
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("no object with id %s found", id))
	}

	return nil
}

func (s *sqliteStore) List(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT body FROM objects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]map[string]any, 0)

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}

		doc, err := decode([]byte(body))
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}

	return result, rows.Err()
}

func (s *sqliteStore) Close() {
	s.conn.Close()
}
