package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoQuestions indicates a quiz has no questions; no session can start.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrSessionNotFound is returned when a session ID does not resolve.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrDuelNotFound indicates the duel record could not be loaded.
	ErrDuelNotFound = errors.New("duel not found")
	// ErrNotDuelParticipant is returned when a player tries to attach a
	// session to a duel they are not part of.
	ErrNotDuelParticipant = errors.New("player is not a duel participant")
	// ErrProgressNotFound indicates a player profile row is missing.
	ErrProgressNotFound = errors.New("player progress not found")
	// ErrBadgeNotFound indicates a badge ID does not resolve.
	ErrBadgeNotFound = errors.New("badge not found")
)
