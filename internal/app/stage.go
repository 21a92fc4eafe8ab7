package app

import "quizwiz-service/internal/domain"

// DeriveStage maps the previous local stage and the latest session to the next
// local stage. The second return value is false when the stage does not change
// on this snapshot. Entering active from preparingMatch is driven by the local
// countdown, not by a snapshot, so it never appears here.
func DeriveStage(prev domain.Stage, s *domain.GameSession) (domain.Stage, bool) {
	if s == nil {
		return prev, false
	}
	next, ok := deriveStage(prev, s)
	if !ok || next == prev {
		return prev, false
	}
	return next, true
}

func deriveStage(prev domain.Stage, s *domain.GameSession) (domain.Stage, bool) {
	if s.Status.IsTerminal() {
		return domain.StageGameOver, true
	}
	hasQuestions := len(s.Questions) > 0
	switch s.Status {
	case domain.StatusWaiting, domain.StatusPreparingMatch:
		if s.Player1 != nil && s.Player2 == nil {
			return domain.StageWaitingForOpponent, true
		}
		if s.Player1 != nil && s.Player2 != nil && !hasQuestions {
			return domain.StageFetchingQuestions, true
		}
	}
	if s.Player1 != nil && s.Player2 != nil && hasQuestions {
		switch prev {
		case domain.StageActive, domain.StageGameOver, domain.StagePreparingMatch:
			return prev, false
		}
		return domain.StagePreparingMatch, true
	}
	return prev, false
}
