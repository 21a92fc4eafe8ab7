package app

import (
	"context"

	"quizwiz-service/internal/domain"
)

// DocumentStore is the remote multi-writer document store the protocol runs on.
// It offers no transactions or compare-and-swap; writes are last-write-wins per
// field path.
type DocumentStore interface {
	// Get returns domain.ErrDocumentNotFound when the document is absent.
	Get(ctx context.Context, key domain.DocKey) (domain.Document, error)
	// Set replaces the whole document, creating it if needed.
	Set(ctx context.Context, key domain.DocKey, doc domain.Document) error
	// Update merges field paths into an existing document and returns
	// domain.ErrDocumentNotFound when it is absent.
	Update(ctx context.Context, key domain.DocKey, patch *domain.Patch) error
	// Increment adds delta to an integer field, treating a missing document or
	// field as 0, and returns the new value.
	Increment(ctx context.Context, key domain.DocKey, field string, delta int64) (int64, error)
	// Subscribe delivers the current document and then the full document after
	// every change. Slow receivers only see the latest snapshot. The caller must
	// invoke the returned cancel function to release the listener.
	Subscribe(ctx context.Context, key domain.DocKey) (<-chan domain.Snapshot, func(), error)
}

// PointsRepository holds each user's cumulative points.
type PointsRepository interface {
	// AddPoints applies delta additively and returns the new total. A user
	// without a total starts from 0.
	AddPoints(ctx context.Context, userID string, delta int) (int, error)
}

// QuestionGenerator is the external question source. It may fail.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic string, count int, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuestionPoolRepository loads the candidate questions for a topic and difficulty
// (from cache/backing store).
type QuestionPoolRepository interface {
	GetPool(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error)
}
