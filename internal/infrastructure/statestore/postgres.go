package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// PostgresStore persists bandit statistics one row per (tile, arm) pair.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS bandit_stats (
	tile_key TEXT NOT NULL,
	arm TEXT NOT NULL,
	observations BIGINT NOT NULL DEFAULT 0,
	reward_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
	reward_sq_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tile_key, arm)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (ports.StatsSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tile_key, arm, observations, reward_sum, reward_sq_sum, updated_at
FROM bandit_stats
`)
	if err != nil {
		return nil, fmt.Errorf("query bandit stats: %w", err)
	}
	defer rows.Close()

	snapshot := ports.StatsSnapshot{}
	for rows.Next() {
		var (
			tileKey string
			arm     string
			record  domain.ArmStats
		)
		if err := rows.Scan(&tileKey, &arm, &record.Count, &record.RewardSum, &record.RewardSqSum, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bandit stats row: %w", err)
		}
		tile, ok := snapshot[tileKey]
		if !ok {
			tile = map[domain.Arm]domain.ArmStats{}
			snapshot[tileKey] = tile
		}
		tile[domain.Arm(arm)] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bandit stats: %w", err)
	}
	return snapshot, nil
}

func (s *PostgresStore) Save(ctx context.Context, snapshot ports.StatsSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO bandit_stats (tile_key, arm, observations, reward_sum, reward_sq_sum, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (tile_key, arm) DO UPDATE SET
	observations = EXCLUDED.observations,
	reward_sum = EXCLUDED.reward_sum,
	reward_sq_sum = EXCLUDED.reward_sq_sum,
	updated_at = EXCLUDED.updated_at
`
	for tileKey, tile := range snapshot {
		for arm, record := range tile {
			if _, err := tx.ExecContext(ctx, query,
				tileKey, string(arm), record.Count, record.RewardSum, record.RewardSqSum, record.UpdatedAt,
			); err != nil {
				return fmt.Errorf("upsert bandit stats %s/%s: %w", tileKey, arm, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}
