package domain

import "time"

// Status is the persisted lifecycle value of a score-attack session.
type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusPreparingMatch Status = "preparingMatch"
	StatusActive         Status = "active"
	StatusPlayer1Won     Status = "player1_won"
	StatusPlayer2Won     Status = "player2_won"
	StatusTie            Status = "tie"
	StatusAbandoned      Status = "abandoned"
)

// IsTerminal reports whether no further round play happens under this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPlayer1Won, StatusPlayer2Won, StatusTie, StatusAbandoned:
		return true
	}
	return false
}

// Role is a client's relationship to a session.
type Role string

const (
	RolePlayer1  Role = "player1"
	RolePlayer2  Role = "player2"
	RoleObserver Role = "observer"
	RoleFull     Role = "full"
)

// IsPlayer reports whether the role occupies one of the two player slots.
func (r Role) IsPlayer() bool {
	return r == RolePlayer1 || r == RolePlayer2
}

// Stage is the client-local view of where a match is. It is derived from the
// session document and never persisted.
type Stage string

const (
	StageLoading            Stage = "loading"
	StageWaitingForOpponent Stage = "waitingForOpponent"
	StageFetchingQuestions  Stage = "fetchingQuestions"
	StagePreparingMatch     Stage = "preparingMatch"
	StageActive             Stage = "active"
	StageGameOver           Stage = "gameOver"
)

// Difficulty of generated questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultySmart  Difficulty = "smart"
	DifficultyMaster Difficulty = "master"
)

// ParseDifficulty validates a difficulty name.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(raw); d {
	case DifficultyEasy, DifficultySmart, DifficultyMaster:
		return d, nil
	}
	return "", ErrInvalidDifficulty
}

// User is the authenticated identity joining a session.
type User struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// Question is a four-option multiple choice question.
type Question struct {
	Text               string   `json:"question"`
	Answers            []string `json:"answers"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

// PlayerState is one player's slot in a session.
type PlayerState struct {
	UserID               string `json:"userId"`
	DisplayName          string `json:"displayName"`
	AvatarURL            string `json:"avatarUrl,omitempty"`
	Score                int    `json:"score"`
	CurrentAnswerIndex   *int   `json:"currentAnswerIndex"`
	HasAnsweredThisRound bool   `json:"hasAnsweredThisRound"`
}

// GameSession is the shared document for one match.
type GameSession struct {
	GameID               string       `json:"gameId"`
	Player1              *PlayerState `json:"player1"`
	Player2              *PlayerState `json:"player2"`
	CurrentQuestionIndex int          `json:"currentQuestionIndex"`
	Questions            []Question   `json:"questions"`
	Status               Status       `json:"status"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Player returns the slot for role, or nil for non-player roles and empty slots.
func (s *GameSession) Player(role Role) *PlayerState {
	switch role {
	case RolePlayer1:
		return s.Player1
	case RolePlayer2:
		return s.Player2
	}
	return nil
}

// CurrentQuestion returns the question being played, or nil when the index is
// out of range or questions have not been populated yet.
func (s *GameSession) CurrentQuestion() *Question {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentQuestionIndex]
}

// BothAnswered reports whether both slots are filled and have answered the current round.
func (s *GameSession) BothAnswered() bool {
	return s.Player1 != nil && s.Player2 != nil &&
		s.Player1.HasAnsweredThisRound && s.Player2.HasAnsweredThisRound
}
