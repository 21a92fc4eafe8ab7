package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizwiz-service/internal/domain"
	"quizwiz-service/internal/infra/memory"
)

func TestGetOrCreateLifecycle(t *testing.T) {
	ctx := context.Background()
	client := NewSessionClient(memory.NewDocumentStore())
	carol := domain.User{ID: "u3", DisplayName: "Carol"}

	s, role, err := client.GetOrCreate(ctx, "abcd1234", alice, false)
	if err != nil || role != domain.RolePlayer1 {
		t.Fatalf("create: role=%s err=%v", role, err)
	}
	if s.Status != domain.StatusWaiting || s.Player2 != nil || len(s.Questions) != 0 {
		t.Fatalf("unexpected fresh session %+v", s)
	}

	if _, role, _ = client.GetOrCreate(ctx, "abcd1234", alice, false); role != domain.RolePlayer1 {
		t.Fatalf("rejoin: expected player1, got %s", role)
	}

	s, role, err = client.GetOrCreate(ctx, "abcd1234", bob, false)
	if err != nil || role != domain.RolePlayer2 || s.Player2 == nil || s.Player2.DisplayName != "Bob" {
		t.Fatalf("attach: role=%s err=%v session=%+v", role, err, s)
	}

	if _, role, _ = client.GetOrCreate(ctx, "abcd1234", carol, false); role != domain.RoleFull {
		t.Fatalf("third user: expected full, got %s", role)
	}
	if _, role, _ = client.GetOrCreate(ctx, "abcd1234", carol, true); role != domain.RoleObserver {
		t.Fatalf("spectator: expected observer, got %s", role)
	}
}

func TestRejoinRefreshesProfile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	client := NewSessionClient(store)
	if _, _, err := client.GetOrCreate(ctx, "abcd1234", alice, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	renamed := domain.User{ID: "u1", DisplayName: "Alice B", AvatarURL: "https://cdn.example/a.png"}
	s, role, err := client.GetOrCreate(ctx, "abcd1234", renamed, false)
	if err != nil || role != domain.RolePlayer1 || s.Player1.DisplayName != "Alice B" {
		t.Fatalf("rejoin: role=%s err=%v player1=%+v", role, err, s.Player1)
	}
	stored := load(t, store, "abcd1234").Player1
	if stored.UserID != "u1" || stored.DisplayName != "Alice B" || stored.AvatarURL != "https://cdn.example/a.png" {
		t.Fatalf("expected refreshed profile, got %+v", stored)
	}

	// a rejoin without profile fields keeps the stored ones
	if _, _, err := client.GetOrCreate(ctx, "abcd1234", domain.User{ID: "u1"}, false); err != nil {
		t.Fatalf("rejoin without profile: %v", err)
	}
	if got := load(t, store, "abcd1234").Player1; got.DisplayName != "Alice B" || got.AvatarURL == "" {
		t.Fatalf("profile must not be blanked, got %+v", got)
	}
}

func TestGetOrCreateTakesOverFinishedSession(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	finished := activeSession()
	finished.Status = domain.StatusPlayer1Won
	seed(t, store, finished)

	client := NewSessionClient(store)
	carol := domain.User{ID: "u3", DisplayName: "Carol"}
	s, role, err := client.GetOrCreate(ctx, "game-1", carol, false)
	if err != nil || role != domain.RolePlayer1 {
		t.Fatalf("takeover: role=%s err=%v", role, err)
	}

	got := load(t, store, "game-1")
	if got.Player1.UserID != "u3" || got.Player2 != nil || got.Status != domain.StatusWaiting || len(got.Questions) != 0 {
		t.Fatalf("expected a fresh session, got %+v", got)
	}
	if s.Player1.DisplayName != "Carol" {
		t.Fatalf("unexpected returned session %+v", s)
	}
}

func TestAdvancingClearsRoundFields(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	s := activeSession()
	s.Player1.HasAnsweredThisRound, s.Player1.CurrentAnswerIndex = true, intPtr(2)
	s.Player2.HasAnsweredThisRound = true
	s.Player1.Score = 4
	seed(t, store, s)

	client := NewSessionClient(store)
	if err := client.SetQuestionIndex(ctx, "game-1", 1); err != nil {
		t.Fatalf("set index: %v", err)
	}

	got := load(t, store, "game-1")
	if got.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", got.CurrentQuestionIndex)
	}
	for _, p := range []*domain.PlayerState{got.Player1, got.Player2} {
		if p.HasAnsweredThisRound || p.CurrentAnswerIndex != nil {
			t.Fatalf("round fields survived advance: %+v", p)
		}
	}
	if got.Player1.Score != 4 {
		t.Fatalf("score must survive advance, got %d", got.Player1.Score)
	}
}

func TestSetQuestionsActivatesMatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seed(t, store, waitingSession(true))

	client := NewSessionClient(store)
	if err := client.SetQuestions(ctx, "game-1", testQuestions(5)); err != nil {
		t.Fatalf("set questions: %v", err)
	}
	got := load(t, store, "game-1")
	if got.Status != domain.StatusActive || len(got.Questions) != 5 || got.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.Player1.UserID != "u1" || got.Player2.UserID != "u2" {
		t.Fatalf("player identities must survive, got %+v / %+v", got.Player1, got.Player2)
	}
}

func TestResetKeepsIdentities(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	s := activeSession()
	s.Player1.Score, s.Player2.Score = 3, 2
	s.Player2.AvatarURL = "https://example.com/bob.png"
	s.Status = domain.StatusTie
	seed(t, store, s)

	client := NewSessionClient(store)
	if err := client.Reset(ctx, "game-1", "u1", "u2"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got := load(t, store, "game-1")
	if got.Status != domain.StatusWaiting || len(got.Questions) != 0 || got.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected reset session %+v", got)
	}
	if got.Player1.Score != 0 || got.Player2.Score != 0 {
		t.Fatalf("expected scores zeroed, got %d/%d", got.Player1.Score, got.Player2.Score)
	}
	if got.Player2.AvatarURL != "https://example.com/bob.png" {
		t.Fatalf("expected player2 profile kept, got %+v", got.Player2)
	}

	if err := client.Reset(ctx, "game-1", "u1", "someone-else"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := load(t, store, "game-1"); got.Player2 != nil {
		t.Fatalf("expected stale player2 dropped, got %+v", got.Player2)
	}

	if err := client.Reset(ctx, "missing", "u1", ""); err != nil {
		t.Fatalf("reset of a missing session must be a no-op, got %v", err)
	}
}

func TestUpdatePlayerFieldScopedToRole(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	seed(t, store, activeSession())

	client := NewSessionClient(store)
	score, answered := 1, true
	err := client.UpdatePlayerField(ctx, "game-1", domain.RolePlayer1, PlayerUpdate{
		Score:                &score,
		HasAnsweredThisRound: &answered,
		AnswerSet:            true,
		CurrentAnswerIndex:   intPtr(1),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got := load(t, store, "game-1")
	if got.Player1.Score != 1 || !got.Player1.HasAnsweredThisRound || *got.Player1.CurrentAnswerIndex != 1 {
		t.Fatalf("unexpected player1 %+v", got.Player1)
	}
	if got.Player2.HasAnsweredThisRound || got.Player2.Score != 0 {
		t.Fatalf("player2 must be untouched, got %+v", got.Player2)
	}

	if err := client.UpdatePlayerField(ctx, "game-1", domain.RoleObserver, PlayerUpdate{Score: &score}); err == nil {
		t.Fatalf("expected observers to be rejected")
	}
	if err := client.UpdatePlayerField(ctx, "missing", domain.RolePlayer1, PlayerUpdate{Score: &score}); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubscribeDeliversSessions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	client := NewSessionClient(store)

	missing, cancelMissing, err := client.Subscribe(ctx, "nope")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelMissing()
	if s := receive(t, missing); s != nil {
		t.Fatalf("expected nil for a missing session, got %+v", s)
	}

	seed(t, store, waitingSession(false))
	sessions, cancel, err := client.Subscribe(ctx, "game-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	if s := receive(t, sessions); s == nil || s.Player1.UserID != "u1" {
		t.Fatalf("unexpected initial snapshot %+v", s)
	}

	if _, _, err := client.GetOrCreate(ctx, "game-1", bob, false); err != nil {
		t.Fatalf("join: %v", err)
	}
	if s := receive(t, sessions); s == nil || s.Player2 == nil || s.Player2.UserID != "u2" {
		t.Fatalf("expected player2 in snapshot, got %+v", s)
	}
}

func TestSlowReaderStillSeesMatchEnd(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	out := make(chan *domain.GameSession, 1)

	// non-terminal sessions are replaced while unread
	deliverSession(out, waitingSession(false), done)
	deliverSession(out, waitingSession(true), done)
	if s := receive(t, out); s.Player2 == nil {
		t.Fatalf("expected the latest waiting session, got %+v", s)
	}

	finished := activeSession()
	finished.Status = domain.StatusPlayer1Won
	deliverSession(out, finished, done)

	delivered := make(chan bool, 1)
	go func() { delivered <- deliverSession(out, waitingSession(true), done) }()

	if s := receive(t, out); s.Status != domain.StatusPlayer1Won {
		t.Fatalf("expected the finished session first, got %s", s.Status)
	}
	if s := receive(t, out); s.Status != domain.StatusWaiting {
		t.Fatalf("expected the restarted session next, got %s", s.Status)
	}
	if !<-delivered {
		t.Fatalf("expected delivery to complete")
	}
}

func TestDocumentPointsAccumulate(t *testing.T) {
	ctx := context.Background()
	points := NewDocumentPoints(memory.NewDocumentStore())

	if total, err := points.AddPoints(ctx, "u1", 7); err != nil || total != 7 {
		t.Fatalf("expected 7, got %d (%v)", total, err)
	}
	if total, err := points.AddPoints(ctx, "u1", -20); err != nil || total != -13 {
		t.Fatalf("expected -13, got %d (%v)", total, err)
	}
	if _, err := points.AddPoints(ctx, "", 1); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

func receive(t *testing.T, ch <-chan *domain.GameSession) *domain.GameSession {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatalf("no snapshot received")
		return nil
	}
}
