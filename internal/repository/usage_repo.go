package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sotto-note/internal/model"
)

// UsageRepository counts AI reflections per user per UTC day.
type UsageRepository struct {
	pool *pgxpool.Pool
}

func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

func (r *UsageRepository) Count(ctx context.Context, userID string, day time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count FROM ai_usage WHERE user_id = $1 AND usage_date = $2`,
		userID, utcDay(day)).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count ai usage: %w", err)
	}
	return count, nil
}

// Reserve takes one unit of the day's quota in a single statement, so two
// concurrent reflections cannot both squeeze under the limit. limit <= 0 means
// unlimited. model.ErrAIQuotaExceeded is returned when the quota is spent.
func (r *UsageRepository) Reserve(ctx context.Context, userID string, day time.Time, limit int) (int, error) {
	date := utcDay(day)
	if limit <= 0 {
		limit = int(^uint32(0) >> 1)
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ai_usage (user_id, usage_date, count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, usage_date)
		 DO UPDATE SET count = ai_usage.count + 1
		 WHERE ai_usage.count < $3
		 RETURNING count`,
		userID, date, limit).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrAIQuotaExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("reserve ai usage: %w", err)
	}
	return count, nil
}

// Release gives back a unit reserved for a reflection that did not happen.
func (r *UsageRepository) Release(ctx context.Context, userID string, day time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE ai_usage SET count = GREATEST(count - 1, 0) WHERE user_id = $1 AND usage_date = $2`,
		userID, utcDay(day))
	if err != nil {
		return fmt.Errorf("release ai usage: %w", err)
	}
	return nil
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
