package app

import (
	"context"
	"fmt"

	"quizwiz-service/internal/domain"
)

// DocumentPoints keeps cumulative points on user documents in the shared store.
type DocumentPoints struct {
	store DocumentStore
}

func NewDocumentPoints(store DocumentStore) *DocumentPoints {
	return &DocumentPoints{store: store}
}

// AddPoints atomically adds delta to the user's total. A user without a
// document or total starts from 0.
func (p *DocumentPoints) AddPoints(ctx context.Context, userID string, delta int) (int, error) {
	if userID == "" {
		return 0, domain.ErrNotAuthenticated
	}
	key := domain.DocKey{Collection: UsersCollection, ID: userID}
	total, err := p.store.Increment(ctx, key, TotalPointsField, int64(delta))
	if err != nil {
		return 0, fmt.Errorf("add points for %s: %w", userID, err)
	}
	return int(total), nil
}
