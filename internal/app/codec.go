package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"quizwiz-service/internal/domain"
)

const (
	fieldGameID        = "gameId"
	fieldStatus        = "status"
	fieldQuestionIndex = "currentQuestionIndex"
	fieldQuestions     = "questions"
	fieldCreatedAt     = "createdAt"
	fieldUpdatedAt     = "updatedAt"

	fieldUserID      = "userId"
	fieldDisplayName = "displayName"
	fieldAvatarURL   = "avatarUrl"
	fieldScore       = "score"
	fieldAnswerIndex = "currentAnswerIndex"
	fieldHasAnswered = "hasAnsweredThisRound"
)

var playerFields = []string{fieldUserID, fieldDisplayName, fieldAvatarURL, fieldScore, fieldAnswerIndex, fieldHasAnswered}

func playerPath(role domain.Role, field string) string {
	return string(role) + "." + field
}

// encodeSession flattens a session into a document. Timestamps are left to the
// store via domain.ServerTimestamp.
func encodeSession(s *domain.GameSession) (domain.Document, error) {
	questions, err := encodeQuestions(s.Questions)
	if err != nil {
		return nil, err
	}
	doc := domain.Document{
		fieldGameID:        s.GameID,
		fieldStatus:        string(s.Status),
		fieldQuestionIndex: strconv.Itoa(s.CurrentQuestionIndex),
		fieldQuestions:     questions,
		fieldCreatedAt:     domain.ServerTimestamp,
		fieldUpdatedAt:     domain.ServerTimestamp,
	}
	encodePlayer(doc, domain.RolePlayer1, s.Player1)
	encodePlayer(doc, domain.RolePlayer2, s.Player2)
	return doc, nil
}

func encodePlayer(doc domain.Document, role domain.Role, p *domain.PlayerState) {
	if p == nil {
		return
	}
	doc[playerPath(role, fieldUserID)] = p.UserID
	doc[playerPath(role, fieldDisplayName)] = p.DisplayName
	doc[playerPath(role, fieldAvatarURL)] = p.AvatarURL
	doc[playerPath(role, fieldScore)] = strconv.Itoa(p.Score)
	doc[playerPath(role, fieldHasAnswered)] = strconv.FormatBool(p.HasAnsweredThisRound)
	if p.CurrentAnswerIndex != nil {
		doc[playerPath(role, fieldAnswerIndex)] = strconv.Itoa(*p.CurrentAnswerIndex)
	}
}

// putPlayer writes a whole player slot into a patch, clearing stale fields.
func putPlayer(patch *domain.Patch, role domain.Role, p *domain.PlayerState) {
	if p == nil {
		clearPlayer(patch, role)
		return
	}
	doc := domain.Document{}
	encodePlayer(doc, role, p)
	for k, v := range doc {
		patch.Put(k, v)
	}
	if p.CurrentAnswerIndex == nil {
		patch.Remove(playerPath(role, fieldAnswerIndex))
	}
}

func clearPlayer(patch *domain.Patch, role domain.Role) {
	for _, f := range playerFields {
		patch.Remove(playerPath(role, f))
	}
}

func encodeQuestions(qs []domain.Question) (string, error) {
	if qs == nil {
		qs = []domain.Question{}
	}
	raw, err := json.Marshal(qs)
	if err != nil {
		return "", fmt.Errorf("encode questions: %w", err)
	}
	return string(raw), nil
}

// decodeSession rebuilds a session from its flattened document. A player slot
// exists only when its userId field is present.
func decodeSession(doc domain.Document) (*domain.GameSession, error) {
	s := &domain.GameSession{
		GameID: doc[fieldGameID],
		Status: domain.Status(doc[fieldStatus]),
	}
	if s.Status == "" {
		s.Status = domain.StatusWaiting
	}
	var err error
	if s.CurrentQuestionIndex, err = atoiField(doc, fieldQuestionIndex); err != nil {
		return nil, err
	}
	if raw := doc[fieldQuestions]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	s.CreatedAt = parseTime(doc[fieldCreatedAt])
	s.UpdatedAt = parseTime(doc[fieldUpdatedAt])
	if s.Player1, err = decodePlayer(doc, domain.RolePlayer1); err != nil {
		return nil, err
	}
	if s.Player2, err = decodePlayer(doc, domain.RolePlayer2); err != nil {
		return nil, err
	}
	return s, nil
}

func decodePlayer(doc domain.Document, role domain.Role) (*domain.PlayerState, error) {
	userID, ok := doc[playerPath(role, fieldUserID)]
	if !ok || userID == "" {
		return nil, nil
	}
	p := &domain.PlayerState{
		UserID:      userID,
		DisplayName: doc[playerPath(role, fieldDisplayName)],
		AvatarURL:   doc[playerPath(role, fieldAvatarURL)],
	}
	var err error
	if p.Score, err = atoiField(doc, playerPath(role, fieldScore)); err != nil {
		return nil, err
	}
	p.HasAnsweredThisRound = doc[playerPath(role, fieldHasAnswered)] == "true"
	if raw, ok := doc[playerPath(role, fieldAnswerIndex)]; ok && raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", playerPath(role, fieldAnswerIndex), err)
		}
		p.CurrentAnswerIndex = &idx
	}
	return p, nil
}

func atoiField(doc domain.Document, field string) (int, error) {
	raw, ok := doc[field]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", field, err)
	}
	return n, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
