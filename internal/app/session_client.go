package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"quizwiz-service/internal/domain"
)

const (
	// GamesCollection holds one document per score-attack session.
	GamesCollection = "multiplayerGames"
	// UsersCollection holds per-user documents with cumulative points.
	UsersCollection = "users"
	// TotalPointsField is the cumulative points field of a user document.
	TotalPointsField = "totalQuizPoints"
)

// SessionClient scopes the document store primitives to score-attack sessions.
type SessionClient struct {
	store DocumentStore
}

func NewSessionClient(store DocumentStore) *SessionClient {
	return &SessionClient{store: store}
}

// PlayerUpdate names the player sub-fields to merge. Nil fields are left alone.
type PlayerUpdate struct {
	DisplayName          *string
	AvatarURL            *string
	Score                *int
	HasAnsweredThisRound *bool
	// AnswerSet marks CurrentAnswerIndex as part of the update; a nil index
	// clears the stored answer.
	AnswerSet          bool
	CurrentAnswerIndex *int
}

func gameKey(gameID string) domain.DocKey {
	return domain.DocKey{Collection: GamesCollection, ID: gameID}
}

func newPlayer(user domain.User) *domain.PlayerState {
	return &domain.PlayerState{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}
}

// GetOrCreate joins user to the session gameID. An absent or terminal session
// is (re)initialised with the caller as player1. Otherwise the caller gets the
// slot they already hold, claims a free slot, or is told the session is full
// (observer when spectate is set).
func (c *SessionClient) GetOrCreate(ctx context.Context, gameID string, user domain.User, spectate bool) (*domain.GameSession, domain.Role, error) {
	key := gameKey(gameID)
	doc, err := c.store.Get(ctx, key)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return c.create(ctx, gameID, user)
	}
	if err != nil {
		return nil, "", fmt.Errorf("get session %s: %w", gameID, err)
	}

	session, err := decodeSession(doc)
	if err != nil {
		return nil, "", fmt.Errorf("decode session %s: %w", gameID, err)
	}
	if session.Status.IsTerminal() {
		log.Info().Str("game_id", gameID).Str("previous_status", string(session.Status)).Msg("recycling finished session")
		return c.create(ctx, gameID, user)
	}

	role := NegotiateRole(session, user.ID)
	if role == domain.RoleFull {
		if spectate {
			return session, domain.RoleObserver, nil
		}
		return session, domain.RoleFull, nil
	}
	if held := session.Player(role); held != nil {
		c.refreshProfile(ctx, gameID, role, held, user)
		return session, role, nil
	}

	player := newPlayer(user)
	patch := domain.NewPatch().
		Put(fieldStatus, string(domain.StatusWaiting)).
		Put(fieldUpdatedAt, domain.ServerTimestamp)
	putPlayer(patch, role, player)
	if err := c.store.Update(ctx, key, patch); err != nil {
		return nil, "", fmt.Errorf("claim %s in session %s: %w", role, gameID, err)
	}
	if role == domain.RolePlayer1 {
		session.Player1 = player
	} else {
		session.Player2 = player
	}
	session.Status = domain.StatusWaiting
	return session, role, nil
}

// refreshProfile copies a changed display name or avatar onto the slot the
// user already holds. A failed write is logged and the join proceeds.
func (c *SessionClient) refreshProfile(ctx context.Context, gameID string, role domain.Role, held *domain.PlayerState, user domain.User) {
	var u PlayerUpdate
	if user.DisplayName != "" && user.DisplayName != held.DisplayName {
		u.DisplayName = &user.DisplayName
	}
	if user.AvatarURL != "" && user.AvatarURL != held.AvatarURL {
		u.AvatarURL = &user.AvatarURL
	}
	if u.DisplayName == nil && u.AvatarURL == nil {
		return
	}
	if err := c.UpdatePlayerField(ctx, gameID, role, u); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("profile refresh failed")
		return
	}
	if u.DisplayName != nil {
		held.DisplayName = *u.DisplayName
	}
	if u.AvatarURL != nil {
		held.AvatarURL = *u.AvatarURL
	}
}

func (c *SessionClient) create(ctx context.Context, gameID string, user domain.User) (*domain.GameSession, domain.Role, error) {
	session := &domain.GameSession{
		GameID:    gameID,
		Player1:   newPlayer(user),
		Questions: []domain.Question{},
		Status:    domain.StatusWaiting,
	}
	doc, err := encodeSession(session)
	if err != nil {
		return nil, "", err
	}
	if err := c.store.Set(ctx, gameKey(gameID), doc); err != nil {
		return nil, "", fmt.Errorf("create session %s: %w", gameID, err)
	}
	return session, domain.RolePlayer1, nil
}

// Subscribe streams decoded sessions. A nil session means the document is gone,
// unreadable, or the listener failed. A slow reader only sees the latest
// session, except that an unread terminal session is never replaced by a later
// non-terminal one. The returned cancel function must be called.
func (c *SessionClient) Subscribe(ctx context.Context, gameID string) (<-chan *domain.GameSession, func(), error) {
	snapshots, cancel, err := c.store.Subscribe(ctx, gameKey(gameID))
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe session %s: %w", gameID, err)
	}

	out := make(chan *domain.GameSession, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for snap := range snapshots {
			if !deliverSession(out, c.toSession(gameID, snap), done) {
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cancel()
		})
	}
	return out, stop, nil
}

// deliverSession is offerLatest for sessions, except that a pending terminal
// session is handed over before s replaces it. It reports false once done is
// closed.
func deliverSession(out chan *domain.GameSession, s *domain.GameSession, done <-chan struct{}) bool {
	select {
	case out <- s:
		return true
	default:
	}
	select {
	case prev := <-out:
		if prev != nil && prev.Status.IsTerminal() && (s == nil || !s.Status.IsTerminal()) {
			select {
			case out <- prev:
			case <-done:
				return false
			}
		}
	default:
	}
	select {
	case out <- s:
		return true
	case <-done:
		return false
	}
}

func (c *SessionClient) toSession(gameID string, snap domain.Snapshot) *domain.GameSession {
	if snap.Err != nil {
		log.Error().Err(snap.Err).Str("game_id", gameID).Msg("session listener failed")
		return nil
	}
	if snap.Doc == nil {
		return nil
	}
	session, err := decodeSession(snap.Doc)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("unreadable session snapshot")
		return nil
	}
	return session
}

// UpdatePlayerField merges the named sub-fields of role's slot only.
func (c *SessionClient) UpdatePlayerField(ctx context.Context, gameID string, role domain.Role, u PlayerUpdate) error {
	if !role.IsPlayer() {
		return fmt.Errorf("update player field: role %q holds no slot", role)
	}
	patch := domain.NewPatch().Put(fieldUpdatedAt, domain.ServerTimestamp)
	if u.DisplayName != nil {
		patch.Put(playerPath(role, fieldDisplayName), *u.DisplayName)
	}
	if u.AvatarURL != nil {
		patch.Put(playerPath(role, fieldAvatarURL), *u.AvatarURL)
	}
	if u.Score != nil {
		patch.Put(playerPath(role, fieldScore), strconv.Itoa(*u.Score))
	}
	if u.HasAnsweredThisRound != nil {
		patch.Put(playerPath(role, fieldHasAnswered), strconv.FormatBool(*u.HasAnsweredThisRound))
	}
	if u.AnswerSet {
		if u.CurrentAnswerIndex == nil {
			patch.Remove(playerPath(role, fieldAnswerIndex))
		} else {
			patch.Put(playerPath(role, fieldAnswerIndex), strconv.Itoa(*u.CurrentAnswerIndex))
		}
	}
	return c.update(ctx, gameID, "update player field", patch)
}

// SetStatus overwrites the session status.
func (c *SessionClient) SetStatus(ctx context.Context, gameID string, status domain.Status) error {
	patch := domain.NewPatch().
		Put(fieldStatus, string(status)).
		Put(fieldUpdatedAt, domain.ServerTimestamp)
	return c.update(ctx, gameID, "set status", patch)
}

// SetQuestionIndex moves to question index and opens a fresh round for both players.
func (c *SessionClient) SetQuestionIndex(ctx context.Context, gameID string, index int) error {
	patch := domain.NewPatch().
		Put(fieldQuestionIndex, strconv.Itoa(index)).
		Put(fieldUpdatedAt, domain.ServerTimestamp)
	clearRound(patch)
	return c.update(ctx, gameID, "set question index", patch)
}

// SetQuestions populates the match questions, rewinds to the first question,
// opens a fresh round and flips the session to active.
func (c *SessionClient) SetQuestions(ctx context.Context, gameID string, questions []domain.Question) error {
	raw, err := encodeQuestions(questions)
	if err != nil {
		return err
	}
	patch := domain.NewPatch().
		Put(fieldQuestions, raw).
		Put(fieldQuestionIndex, "0").
		Put(fieldStatus, string(domain.StatusActive)).
		Put(fieldUpdatedAt, domain.ServerTimestamp)
	clearRound(patch)
	return c.update(ctx, gameID, "set questions", patch)
}

// Reset reinitialises a finished match in place: scores and round fields are
// zeroed, questions cleared and status set back to waiting. Player identities
// are kept; player2 is dropped unless player2ID still matches the slot.
func (c *SessionClient) Reset(ctx context.Context, gameID, player1ID, player2ID string) error {
	doc, err := c.store.Get(ctx, gameKey(gameID))
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reset session %s: %w", gameID, err)
	}
	session, err := decodeSession(doc)
	if err != nil {
		return fmt.Errorf("reset session %s: %w", gameID, err)
	}

	patch := domain.NewPatch().
		Put(fieldQuestionIndex, "0").
		Put(fieldQuestions, "[]").
		Put(fieldStatus, string(domain.StatusWaiting)).
		Put(fieldUpdatedAt, domain.ServerTimestamp)
	if p1 := session.Player1; p1 != nil && (player1ID == "" || p1.UserID == player1ID) {
		putPlayer(patch, domain.RolePlayer1, freshRound(p1))
	}
	if p2 := session.Player2; p2 != nil && player2ID != "" && p2.UserID == player2ID {
		putPlayer(patch, domain.RolePlayer2, freshRound(p2))
	} else {
		clearPlayer(patch, domain.RolePlayer2)
	}
	return c.update(ctx, gameID, "reset", patch)
}

func freshRound(p *domain.PlayerState) *domain.PlayerState {
	return &domain.PlayerState{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

func clearRound(patch *domain.Patch) {
	for _, role := range []domain.Role{domain.RolePlayer1, domain.RolePlayer2} {
		patch.Put(playerPath(role, fieldHasAnswered), "false")
		patch.Remove(playerPath(role, fieldAnswerIndex))
	}
}

func (c *SessionClient) update(ctx context.Context, gameID, op string, patch *domain.Patch) error {
	if err := c.store.Update(ctx, gameKey(gameID), patch); err != nil {
		return fmt.Errorf("%s %s: %w", op, gameID, err)
	}
	return nil
}

// offerLatest delivers v on a single-slot channel, replacing an unread value.
// Only safe with a single sender.
func offerLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}
