package engine

import (
	"context"

	"quiz-arena-service/internal/domain"
)

// QuizStore loads quiz content (from cache/backing store).
type QuizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error)
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	IncrementQuizPlayStats(ctx context.Context, quizID string, newAverage float64, newTotalPlays int) error
}

// SessionStore persists play-throughs and their answer records.
type SessionStore interface {
	CreateSession(ctx context.Context, quizID, playerID string, mode domain.PlayMode) (string, error)
	AppendAnswer(ctx context.Context, sessionID string, rec domain.AnswerRecord) error
	CompleteSession(ctx context.Context, sessionID string, result domain.SessionResult) error
	ReadSession(ctx context.Context, sessionID string) (domain.QuizSession, error)
}

// DuelStore persists two-player contests. AttachDuelSession must be a single
// atomic conditional update: it sets the caller's slot and returns the duel
// as it stands after the write, so whichever side finishes second observes
// the other slot in the same round trip. FinalizeDuel must be a no-op when
// the duel is already completed.
type DuelStore interface {
	ReadDuel(ctx context.Context, duelID string) (domain.Duel, error)
	AttachDuelSession(ctx context.Context, duelID, playerID, sessionID string) (domain.Duel, error)
	FinalizeDuel(ctx context.Context, duelID, winnerID string) error
}

// ProgressStore persists player progression and the monthly leaderboard.
type ProgressStore interface {
	ReadPlayerProgress(ctx context.Context, playerID string) (domain.PlayerProgress, error)
	WritePlayerProgress(ctx context.Context, progress domain.PlayerProgress) error
	ReadTop10ByMonthlyScore(ctx context.Context) ([]domain.RankedPlayer, error)
	WriteMonthlyRankingSnapshot(ctx context.Context, snap domain.MonthlyRankingSnapshot) error
	IncrementTop10Streak(ctx context.Context, playerID string) error
}

// BadgeStore persists badge definitions and grants.
type BadgeStore interface {
	FindBadgesByLevel(ctx context.Context, level int) ([]domain.Badge, error)
	HasBadge(ctx context.Context, playerID, badgeID string) (bool, error)
	GrantBadge(ctx context.Context, playerID, badgeID string) error
}

// Store is the full persistence collaborator the engine runs against.
type Store interface {
	QuizStore
	SessionStore
	DuelStore
	ProgressStore
	BadgeStore
}
