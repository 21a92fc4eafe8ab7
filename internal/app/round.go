package app

import "quizwiz-service/internal/domain"

// ScoreAnswer returns the player's score after answering q with index. Only a
// correct, non-nil answer earns a point.
func ScoreAnswer(current int, q *domain.Question, index *int) int {
	if q != nil && index != nil && *index == q.CorrectAnswerIndex {
		return current + 1
	}
	return current
}

// FinalStatus compares match scores. A missing slot counts as a tie because
// no comparison is possible.
func FinalStatus(p1, p2 *domain.PlayerState) domain.Status {
	if p1 == nil || p2 == nil {
		return domain.StatusTie
	}
	switch {
	case p1.Score > p2.Score:
		return domain.StatusPlayer1Won
	case p2.Score > p1.Score:
		return domain.StatusPlayer2Won
	}
	return domain.StatusTie
}

// hasMoreQuestions reports whether s has a question after the current one.
func hasMoreQuestions(s *domain.GameSession) bool {
	return s.CurrentQuestionIndex+1 < len(s.Questions)
}
