package domain

import "errors"

var (
	// ErrInvalidGameID is returned when a join is attempted without a session id.
	ErrInvalidGameID = errors.New("invalid game id")
	// ErrNotAuthenticated is returned when a join is attempted without a user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionFull is returned when both player slots belong to other users.
	ErrSessionFull = errors.New("game session is full")
	// ErrDocumentNotFound indicates the addressed document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoQuestions indicates the question source produced nothing usable.
	ErrNoQuestions = errors.New("no questions available")
	// ErrInvalidDifficulty indicates an unknown difficulty name.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrInvalidQuestion indicates a question without four answers or a valid correct index.
	ErrInvalidQuestion = errors.New("invalid question")
)
