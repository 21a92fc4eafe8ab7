package app_test

import (
	"context"
	"testing"
	"time"

	"quizwiz-service/internal/app"
	"quizwiz-service/internal/domain"
	"quizwiz-service/internal/infra/memory"
)

func fastSettings() app.MatchSettings {
	s := app.DefaultMatchSettings()
	s.QuestionCount = 5
	s.CountdownTicks = 1
	s.RoundTicks = 500
	s.TickInterval = 10 * time.Millisecond
	s.RevealDelay = 10 * time.Millisecond
	s.WriteTimeout = time.Second
	return s
}

func bankOf(n int) *app.QuestionBank {
	pool := make([]domain.Question, n)
	for i := range pool {
		pool[i] = domain.Question{
			Text:               "question",
			Answers:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: i % 4,
		}
	}
	loader := memory.NewStaticQuestionLoader(map[string][]domain.Question{"General Knowledge": pool})
	return app.NewQuestionBank(memory.NewQuestionPoolRepository(loader, time.Minute))
}

func waitView(t *testing.T, c *app.Controller, what string, ok func(app.View) bool) app.View {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case v, open := <-c.Views():
			if !open {
				t.Fatalf("views closed while waiting for %s", what)
			}
			if ok(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func startController(t *testing.T, c *app.Controller) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-finished
	})
	return cancel, done
}

func TestScoreAttackMatchEndToEnd(t *testing.T) {
	store := memory.NewDocumentStore()
	svc := app.NewScoreAttackService(store, app.NewDocumentPoints(store), bankOf(5), fastSettings())
	gameID := svc.NewGameID()
	if len(gameID) != 8 {
		t.Fatalf("expected an 8 character game id, got %q", gameID)
	}

	p1 := svc.NewController(gameID, domain.User{ID: "u1", DisplayName: "Alice"}, false)
	startController(t, p1)
	waitView(t, p1, "lobby", func(v app.View) bool { return v.Stage == domain.StageWaitingForOpponent })

	p2 := svc.NewController(gameID, domain.User{ID: "u2", DisplayName: "Bob"}, false)
	_, p2Done := startController(t, p2)

	isActive := func(v app.View) bool {
		return v.Stage == domain.StageActive && v.Session != nil && v.Session.CurrentQuestion() != nil
	}
	v1 := waitView(t, p1, "player1 active", isActive)
	v2 := waitView(t, p2, "player2 active", isActive)
	if v2.Role != domain.RolePlayer2 || len(v1.Session.Questions) != 5 {
		t.Fatalf("unexpected match setup: role=%s questions=%d", v2.Role, len(v1.Session.Questions))
	}
	if !v1.TimerActive {
		t.Fatalf("expected the round timer running")
	}

	correct := v1.Session.CurrentQuestion().CorrectAnswerIndex
	wrong := (correct + 1) % 4
	p1.SubmitAnswer(&correct)
	p2.SubmitAnswer(&wrong)

	next := waitView(t, p1, "second question", func(v app.View) bool {
		return v.Session != nil && v.Session.CurrentQuestionIndex == 1
	})
	if next.Session.Player1.Score != 1 || next.Session.Player2.Score != 0 {
		t.Fatalf("unexpected scores %d/%d", next.Session.Player1.Score, next.Session.Player2.Score)
	}
	for _, p := range []*domain.PlayerState{next.Session.Player1, next.Session.Player2} {
		if p.HasAnsweredThisRound || p.CurrentAnswerIndex != nil {
			t.Fatalf("round fields not cleared on advance: %+v", p)
		}
	}

	p2.Leave()
	select {
	case err := <-p2Done:
		if err != nil {
			t.Fatalf("leave: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("player2 did not leave")
	}

	over := waitView(t, p1, "settlement", func(v app.View) bool {
		return v.Summary != nil && v.Summary.NewTotalPoints != nil
	})
	if over.Stage != domain.StageGameOver || over.Summary.Outcome != app.OutcomeOpponentAbandoned || over.Summary.OutcomeName != "Bob" {
		t.Fatalf("unexpected summary %+v", over.Summary)
	}
	if *over.Summary.NewTotalPoints != 1 {
		t.Fatalf("expected player1 total 1, got %d", *over.Summary.NewTotalPoints)
	}

	doc, err := store.Get(context.Background(), domain.DocKey{Collection: app.UsersCollection, ID: "u2"})
	if err != nil {
		t.Fatalf("get u2: %v", err)
	}
	if doc[app.TotalPointsField] != "-20" {
		t.Fatalf("expected abandonment penalty of -20, got %q", doc[app.TotalPointsField])
	}
}
