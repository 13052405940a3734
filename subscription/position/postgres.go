package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTableName = "subscription_positions"

// PostgresStorage is a Storage implementation backed by a dedicated table,
// one row per subscription id, written via an upsert so Save is atomic
// regardless of whether a row already exists.
type PostgresStorage struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewPostgresStorage creates a PostgresStorage using the default table name
// ("subscription_positions"). Call EnsureSchema once before first use.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool, tableName: defaultTableName}
}

// WithTableName overrides the table name.
func (s *PostgresStorage) WithTableName(tableName string) *PostgresStorage {
	s.tableName = tableName
	return s
}

// EnsureSchema creates the positions table if it does not already exist.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		subscription_id TEXT PRIMARY KEY,
		position TEXT NOT NULL
	)`, s.tableName)

	_, err := s.pool.Exec(ctx, stmt)

	return err
}

func (s *PostgresStorage) Read(ctx context.Context, subscriptionID string) (string, bool, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT position FROM %s WHERE subscription_id = $1`, s.tableName),
		subscriptionID,
	)

	var pos string

	if err := row.Scan(&pos); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}

		return "", false, err
	}

	return pos, true, nil
}

func (s *PostgresStorage) Save(ctx context.Context, subscriptionID string, pos string) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %[1]s (subscription_id, position) VALUES ($1, $2)
		 ON CONFLICT (subscription_id) DO UPDATE SET position = EXCLUDED.position`,
		s.tableName,
	)

	_, err := s.pool.Exec(ctx, stmt, subscriptionID, pos)

	return err
}

func (s *PostgresStorage) Delete(ctx context.Context, subscriptionID string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE subscription_id = $1`, s.tableName),
		subscriptionID,
	)

	return err
}

var _ Storage = (*PostgresStorage)(nil)
