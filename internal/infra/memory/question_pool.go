package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizwiz-service/internal/domain"
)

// QuestionLoader fetches a question pool from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error)
}

// PoolKey identifies one topic/difficulty pool in caches.
func PoolKey(topic string, difficulty domain.Difficulty) string {
	return string(difficulty) + ":" + topic
}

// QuestionPoolRepository caches question pools with TTL to avoid repeated DB hits.
type QuestionPoolRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionPoolRepository(loader QuestionLoader, ttl time.Duration) *QuestionPoolRepository {
	return &QuestionPoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func (r *QuestionPoolRepository) GetPool(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := PoolKey(topic, difficulty)
	if pool, ok := r.cached(key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if pool, ok := r.cached(key); ok {
			return pool, nil
		}
		pool, err := r.loader.LoadQuestions(ctx, topic, difficulty)
		if err != nil {
			return nil, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[key] = cachedPool{questions: pool, expiresAt: expiresAt}
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionPoolRepository) cached(key string) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (r *QuestionPoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves pools from an in-memory map keyed by topic; every
// difficulty gets the same pool (useful for tests/demos).
type StaticQuestionLoader struct {
	pools map[string][]domain.Question
}

func NewStaticQuestionLoader(pools map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{pools: pools}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, topic string, _ domain.Difficulty) ([]domain.Question, error) {
	if pool, ok := l.pools[topic]; ok && len(pool) > 0 {
		return pool, nil
	}
	return nil, domain.ErrNoQuestions
}
