package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrasnow/worldmood/internal/domain"
)

// ResultRepo persists aggregation results, one row per country. A new result
// for a country replaces the previous one.
type ResultRepo struct {
	pool *pgxpool.Pool
}

func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// UpsertResult stores a result, overwriting any previous one for the country.
func (r *ResultRepo) UpsertResult(ctx context.Context, result domain.AggregationResult) error {
	distribution, err := json.Marshal(result.Distribution)
	if err != nil {
		return fmt.Errorf("marshal distribution: %w", err)
	}
	votes, err := json.Marshal(result.AlgorithmVotes)
	if err != nil {
		return fmt.Errorf("marshal algorithm votes: %w", err)
	}
	scores, err := json.Marshal(result.WeightedScores)
	if err != nil {
		return fmt.Errorf("marshal weighted scores: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO country_emotions
			(country, dominant_emotion, confidence, post_count, emotion_distribution,
			 algorithm_votes, weighted_scores, average_confidence, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (country) DO UPDATE SET
			dominant_emotion = EXCLUDED.dominant_emotion,
			confidence = EXCLUDED.confidence,
			post_count = EXCLUDED.post_count,
			emotion_distribution = EXCLUDED.emotion_distribution,
			algorithm_votes = EXCLUDED.algorithm_votes,
			weighted_scores = EXCLUDED.weighted_scores,
			average_confidence = EXCLUDED.average_confidence,
			computed_at = EXCLUDED.computed_at`,
		result.Country, result.DominantLabel, result.Confidence, result.PostCount,
		distribution, votes, scores, result.AvgConfidence, result.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert result for %s: %w", result.Country, err)
	}
	return nil
}

// GetResult returns the current result for a country, or ErrResultNotFound.
func (r *ResultRepo) GetResult(ctx context.Context, country string) (*domain.AggregationResult, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT country, dominant_emotion, confidence, post_count, emotion_distribution,
			algorithm_votes, weighted_scores, average_confidence, computed_at
		 FROM country_emotions WHERE country = $1`,
		country,
	)

	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResultNotFound
		}
		return nil, fmt.Errorf("get result for %s: %w", country, err)
	}
	return result, nil
}

// ListResults returns the current result for every country that has one.
func (r *ResultRepo) ListResults(ctx context.Context) ([]domain.AggregationResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT country, dominant_emotion, confidence, post_count, emotion_distribution,
			algorithm_votes, weighted_scores, average_confidence, computed_at
		 FROM country_emotions ORDER BY country`,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []domain.AggregationResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

func scanResult(row pgx.Row) (*domain.AggregationResult, error) {
	var (
		result       domain.AggregationResult
		distribution []byte
		votes        []byte
		scores       []byte
	)

	err := row.Scan(&result.Country, &result.DominantLabel, &result.Confidence,
		&result.PostCount, &distribution, &votes, &scores,
		&result.AvgConfidence, &result.ComputedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(distribution, &result.Distribution); err != nil {
		return nil, fmt.Errorf("unmarshal distribution: %w", err)
	}
	if err := json.Unmarshal(votes, &result.AlgorithmVotes); err != nil {
		return nil, fmt.Errorf("unmarshal algorithm votes: %w", err)
	}
	if err := json.Unmarshal(scores, &result.WeightedScores); err != nil {
		return nil, fmt.Errorf("unmarshal weighted scores: %w", err)
	}
	return &result, nil
}
