// Package postgres implements the storage-facing interfaces on PostgreSQL
// via pgx connection pools.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations creates the schema if it does not exist yet.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			country TEXT NOT NULL,
			content TEXT NOT NULL,
			emotion_label TEXT,
			emotion_confidence DOUBLE PRECISION,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_country ON posts (country)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_processed ON posts (processed) WHERE NOT processed`,
		`CREATE TABLE IF NOT EXISTS country_emotions (
			country TEXT PRIMARY KEY,
			dominant_emotion TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			post_count INTEGER NOT NULL,
			emotion_distribution JSONB NOT NULL DEFAULT '{}',
			algorithm_votes JSONB NOT NULL DEFAULT '{}',
			weighted_scores JSONB NOT NULL DEFAULT '{}',
			average_confidence DOUBLE PRECISION NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}
