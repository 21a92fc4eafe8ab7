package app

import "quizwiz-service/internal/domain"

// Outcome keys carried in summaries for the UI to localise.
const (
	OutcomeYouWon             = "youWon"
	OutcomeOpponentWon        = "opponentWon"
	OutcomeTie                = "itsATie"
	OutcomeOpponentAbandoned  = "opponentAbandoned"
	OutcomeEndedByAbandonment = "matchEndedDueToAbandonment"
	OutcomeGameFinished       = "gameFinished"

	defaultPlayerName = "Player"
)

// Summary is the end-of-match result shown to one client.
type Summary struct {
	Outcome      string `json:"outcome"`
	OutcomeName  string `json:"outcomeName,omitempty"`
	Player1Name  string `json:"player1Name"`
	Player2Name  string `json:"player2Name"`
	Player1Score int    `json:"player1Score"`
	Player2Score int    `json:"player2Score"`
	// PointsAdded is nil for observers.
	PointsAdded *int `json:"pointsAdded"`
	// NewTotalPoints is nil for observers and when the increment failed.
	NewTotalPoints *int `json:"newTotalPoints"`
}

func playerName(p *domain.PlayerState) string {
	if p == nil || p.DisplayName == "" {
		return defaultPlayerName
	}
	return p.DisplayName
}

func playerScore(p *domain.PlayerState) int {
	if p == nil {
		return 0
	}
	return p.Score
}

// Settle computes the summary for role on a terminal session and the points
// delta that role's user banks. Every participant banks their own match score,
// whatever the outcome. The delta is 0 for observers.
func Settle(s *domain.GameSession, role domain.Role) (Summary, int) {
	sum := Summary{
		Outcome:      OutcomeGameFinished,
		Player1Name:  playerName(s.Player1),
		Player2Name:  playerName(s.Player2),
		Player1Score: playerScore(s.Player1),
		Player2Score: playerScore(s.Player2),
	}

	if !role.IsPlayer() {
		switch s.Status {
		case domain.StatusPlayer1Won:
			sum.Outcome, sum.OutcomeName = OutcomeOpponentWon, sum.Player1Name
		case domain.StatusPlayer2Won:
			sum.Outcome, sum.OutcomeName = OutcomeOpponentWon, sum.Player2Name
		case domain.StatusTie:
			sum.Outcome = OutcomeTie
		case domain.StatusAbandoned:
			sum.Outcome = OutcomeEndedByAbandonment
		}
		return sum, 0
	}

	opponentRole := domain.RolePlayer2
	if role == domain.RolePlayer2 {
		opponentRole = domain.RolePlayer1
	}
	opponent := s.Player(opponentRole)

	switch s.Status {
	case domain.StatusPlayer1Won, domain.StatusPlayer2Won:
		winner := domain.RolePlayer1
		if s.Status == domain.StatusPlayer2Won {
			winner = domain.RolePlayer2
		}
		if winner == role {
			sum.Outcome = OutcomeYouWon
		} else {
			sum.Outcome, sum.OutcomeName = OutcomeOpponentWon, playerName(opponent)
		}
	case domain.StatusTie:
		sum.Outcome = OutcomeTie
	case domain.StatusAbandoned:
		sum.Outcome = OutcomeOpponentAbandoned
		if opponent != nil {
			sum.OutcomeName = playerName(opponent)
		}
	}

	delta := playerScore(s.Player(role))
	sum.PointsAdded = &delta
	return sum, delta
}
