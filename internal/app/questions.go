package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quizwiz-service/internal/domain"
)

const (
	MinQuestionCount = 5
	MaxQuestionCount = 20

	answersPerQuestion = 4
)

var errGeneration = errors.New("question generation failed")

// GenerateQuestions asks gen for count questions and validates the result.
// The count is clamped to [MinQuestionCount, MaxQuestionCount]. Any failure,
// including an empty or malformed result, is returned as an error.
func GenerateQuestions(ctx context.Context, gen QuestionGenerator, topic string, count int, difficulty domain.Difficulty) ([]domain.Question, error) {
	if _, err := domain.ParseDifficulty(string(difficulty)); err != nil {
		return nil, fmt.Errorf("%w: %w", errGeneration, err)
	}
	count = clampCount(count)

	questions, err := gen.Generate(ctx, topic, count, difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errGeneration, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %w", errGeneration, domain.ErrNoQuestions)
	}
	for i := range questions {
		if err := validateQuestion(questions[i]); err != nil {
			return nil, fmt.Errorf("%w: question %d: %w", errGeneration, i, err)
		}
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

func clampCount(count int) int {
	if count < MinQuestionCount {
		return MinQuestionCount
	}
	if count > MaxQuestionCount {
		return MaxQuestionCount
	}
	return count
}

func validateQuestion(q domain.Question) error {
	if q.Text == "" || len(q.Answers) != answersPerQuestion {
		return domain.ErrInvalidQuestion
	}
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= answersPerQuestion {
		return domain.ErrInvalidQuestion
	}
	return nil
}

// QuestionBank generates matches by sampling a topic/difficulty pool.
type QuestionBank struct {
	pools QuestionPoolRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(pools QuestionPoolRepository) *QuestionBank {
	return &QuestionBank{
		pools: pools,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate returns up to count questions drawn at random from the pool.
func (b *QuestionBank) Generate(ctx context.Context, topic string, count int, difficulty domain.Difficulty) ([]domain.Question, error) {
	pool, err := b.pools.GetPool(ctx, topic, difficulty)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestions
	}

	picked := make([]domain.Question, len(pool))
	copy(picked, pool)
	b.mu.Lock()
	b.rnd.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	b.mu.Unlock()

	if count < len(picked) {
		picked = picked[:count]
	}
	return picked, nil
}
