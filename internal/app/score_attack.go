package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quizwiz-service/internal/domain"
)

// MatchSettings tunes one score-attack match.
type MatchSettings struct {
	Topic         string
	Difficulty    domain.Difficulty
	QuestionCount int
	// CountdownTicks and RoundTicks are counted in TickInterval units.
	CountdownTicks  int
	RoundTicks      int
	TickInterval    time.Duration
	RevealDelay     time.Duration
	AbandonPenalty  int
	WriteTimeout    time.Duration
	GenerateTimeout time.Duration
}

func DefaultMatchSettings() MatchSettings {
	return MatchSettings{
		Topic:           "General Knowledge",
		Difficulty:      domain.DifficultySmart,
		QuestionCount:   20,
		CountdownTicks:  5,
		RoundTicks:      30,
		TickInterval:    time.Second,
		RevealDelay:     2 * time.Second,
		AbandonPenalty:  20,
		WriteTimeout:    10 * time.Second,
		GenerateTimeout: 30 * time.Second,
	}
}

// ScoreAttackService hands out per-client controllers bound to shared backends.
type ScoreAttackService struct {
	sessions  *SessionClient
	points    PointsRepository
	questions QuestionGenerator
	settings  MatchSettings
	clock     clockwork.Clock
}

type Option func(*ScoreAttackService)

// WithClock replaces the wall clock driving countdowns and timers.
func WithClock(clock clockwork.Clock) Option {
	return func(s *ScoreAttackService) {
		s.clock = clock
	}
}

func NewScoreAttackService(store DocumentStore, points PointsRepository, questions QuestionGenerator, settings MatchSettings, opts ...Option) *ScoreAttackService {
	s := &ScoreAttackService{
		sessions:  NewSessionClient(store),
		points:    points,
		questions: questions,
		settings:  settings,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGameID returns a short id for a fresh session. The session document is
// created by the first client that joins it.
func (s *ScoreAttackService) NewGameID() string {
	return uuid.New().String()[:8]
}

// NewController builds the controller for one client. Nothing happens until Run.
func (s *ScoreAttackService) NewController(gameID string, user domain.User, spectate bool) *Controller {
	c := &Controller{
		gameID:    gameID,
		user:      user,
		spectate:  spectate,
		sessions:  s.sessions,
		points:    s.points,
		questions: s.questions,
		settings:  s.settings,
		clock:     s.clock,
		logger:    log.With().Str("game_id", gameID).Str("user_id", user.ID).Logger(),
		commands:  make(chan command, 8),
		results:   make(chan func(), 16),
		views:     make(chan View, 1),
		stopped:   make(chan struct{}),
		writeBase: context.Background(),
		stage:     domain.StageLoading,
	}
	c.spawn = func(fn func()) { go fn() }
	c.resetRoundMarks()
	return c
}
