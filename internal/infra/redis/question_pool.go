package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"quizwiz-service/internal/domain"
)

// QuestionLoader fetches a question pool from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuestionPoolRepository caches question pools in Redis and falls back to a
// loader on cache miss. Pools are stored as JSON:
//
//	SET questions:{difficulty}:{topic} [{"question":...}, ...]
type QuestionPoolRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionPoolRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionPoolRepository {
	return &QuestionPoolRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionPoolRepository) GetPool(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := r.poolKey(topic, difficulty)
	if pool, ok := r.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.cached(ctx, key); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadQuestions(ctx, topic, difficulty)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(pool)
		if err == nil {
			err = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("question pool not cached")
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionPoolRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil || len(pool) == 0 {
		return nil, false
	}
	return pool, true
}

func (r *QuestionPoolRepository) poolKey(topic string, difficulty domain.Difficulty) string {
	return "questions:" + string(difficulty) + ":" + topic
}

func (r *QuestionPoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
