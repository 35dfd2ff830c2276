package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrasnow/worldmood/internal/domain"
)

// PostRepo reads the collected posts table. It serves both the scheduler's
// counting needs and the aggregator's observation feed.
type PostRepo struct {
	pool *pgxpool.Pool
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

// StoredPostCount returns how many posts are stored for a country.
func (r *PostRepo) StoredPostCount(ctx context.Context, country string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM posts WHERE country = $1`,
		country,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts for %s: %w", country, err)
	}
	return count, nil
}

// PendingCount returns how many posts still await classification.
func (r *PostRepo) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM posts WHERE NOT processed`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending posts: %w", err)
	}
	return count, nil
}

// ListObservations returns the most recent classified posts for a country,
// reduced to label and confidence.
func (r *PostRepo) ListObservations(ctx context.Context, country string, limit int) ([]domain.Observation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT country, emotion_label, emotion_confidence
		 FROM posts
		 WHERE country = $1 AND processed AND emotion_label IS NOT NULL
		 ORDER BY created_at DESC
		 LIMIT $2`,
		country, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list observations for %s: %w", country, err)
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(&o.Country, &o.Label, &o.Confidence); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, nil
}
