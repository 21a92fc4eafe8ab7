package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"quizwiz-service/internal/domain"
	"quizwiz-service/internal/infra/memory"
)

type pointsCall struct {
	userID string
	delta  int
}

type spyPoints struct {
	mu     sync.Mutex
	calls  []pointsCall
	totals map[string]int
	err    error
}

func newSpyPoints() *spyPoints {
	return &spyPoints{totals: make(map[string]int)}
}

func (s *spyPoints) AddPoints(_ context.Context, userID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, pointsCall{userID: userID, delta: delta})
	if s.err != nil {
		return 0, s.err
	}
	s.totals[userID] += delta
	return s.totals[userID], nil
}

func (s *spyPoints) recorded() []pointsCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pointsCall(nil), s.calls...)
}

// recordingStore counts merges on top of a real store.
type recordingStore struct {
	DocumentStore
	mu      sync.Mutex
	patches []*domain.Patch
	failing bool
}

func (s *recordingStore) Update(ctx context.Context, key domain.DocKey, patch *domain.Patch) error {
	s.mu.Lock()
	s.patches = append(s.patches, patch)
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return errors.New("store unavailable")
	}
	return s.DocumentStore.Update(ctx, key, patch)
}

func (s *recordingStore) setFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

func (s *recordingStore) updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

func (s *recordingStore) statusWrites(status domain.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.patches {
		if p.Set[fieldStatus] == string(status) {
			n++
		}
	}
	return n
}

type countingGenerator struct {
	mu        sync.Mutex
	calls     int
	questions []domain.Question
	err       error
}

func (g *countingGenerator) Generate(_ context.Context, _ string, _ int, _ domain.Difficulty) ([]domain.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.questions, g.err
}

func testQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			Text:               "question",
			Answers:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: 1,
		}
	}
	return qs
}

func waitingSession(withPlayer2 bool) *domain.GameSession {
	s := &domain.GameSession{
		GameID:  "game-1",
		Player1: &domain.PlayerState{UserID: "u1", DisplayName: "Alice"},
		Status:  domain.StatusWaiting,
	}
	if withPlayer2 {
		s.Player2 = &domain.PlayerState{UserID: "u2", DisplayName: "Bob"}
	}
	return s
}

func activeSession() *domain.GameSession {
	s := waitingSession(true)
	s.Questions = testQuestions(3)
	s.Status = domain.StatusActive
	return s
}

func seed(t *testing.T, store DocumentStore, s *domain.GameSession) {
	t.Helper()
	doc, err := encodeSession(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := store.Set(context.Background(), gameKey(s.GameID), doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func load(t *testing.T, store DocumentStore, gameID string) *domain.GameSession {
	t.Helper()
	doc, err := store.Get(context.Background(), gameKey(gameID))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s, err := decodeSession(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return s
}

// newInlineController runs asynchronous work inline so tests can drive the
// controller's handlers directly without Run.
func newInlineController(store DocumentStore, points PointsRepository, gen QuestionGenerator, user domain.User, role domain.Role) *Controller {
	svc := NewScoreAttackService(store, points, gen, DefaultMatchSettings(), WithClock(clockwork.NewFakeClock()))
	c := svc.NewController("game-1", user, false)
	c.spawn = func(fn func()) { fn() }
	c.role = role
	return c
}

func drainResults(c *Controller) {
	for {
		select {
		case fn := <-c.results:
			fn()
		default:
			return
		}
	}
}

func newMemoryStore() *recordingStore {
	return &recordingStore{DocumentStore: memory.NewDocumentStore()}
}

func intPtr(v int) *int { return &v }
