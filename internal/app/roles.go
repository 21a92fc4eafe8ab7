package app

import "quizwiz-service/internal/domain"

// NegotiateRole decides which slot userID holds or may claim in s. A caller
// matching an existing slot always gets that slot back. Otherwise the first
// empty slot is offered, and a session with both slots taken is full.
//
// The result does not say whether the slot still has to be claimed; compare
// s.Player(role) with nil for that.
func NegotiateRole(s *domain.GameSession, userID string) domain.Role {
	if s.Player1 != nil && s.Player1.UserID == userID {
		return domain.RolePlayer1
	}
	if s.Player2 != nil && s.Player2.UserID == userID {
		return domain.RolePlayer2
	}
	if s.Player1 == nil {
		return domain.RolePlayer1
	}
	if s.Player2 == nil {
		return domain.RolePlayer2
	}
	return domain.RoleFull
}
