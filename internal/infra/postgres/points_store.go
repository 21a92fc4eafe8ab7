package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizwiz-service/internal/domain"
)

// PointsStore keeps cumulative quiz points in the user_points table.
type PointsStore struct {
	pool *pgxpool.Pool
}

func NewPointsStore(pool *pgxpool.Pool) *PointsStore {
	return &PointsStore{pool: pool}
}

// AddPoints applies delta with one upsert-increment; a missing row starts at 0.
func (s *PointsStore) AddPoints(ctx context.Context, userID string, delta int) (int, error) {
	if userID == "" {
		return 0, domain.ErrNotAuthenticated
	}
	var total int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_points (user_id, total_quiz_points, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET total_quiz_points = user_points.total_quiz_points + EXCLUDED.total_quiz_points,
		    updated_at = now()
		RETURNING total_quiz_points`, userID, int64(delta)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add points for %s: %w", userID, err)
	}
	return int(total), nil
}
