package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"quiz-arena-service/internal/domain"
)

const (
	// xpPerLevel is the experience span of one level.
	xpPerLevel = 1000
	// monthTokenLayout renders the stable year-month identifier.
	monthTokenLayout = "2006-01"
)

// MonthToken returns the year-month identifier for t, e.g. "2024-06".
func MonthToken(t time.Time) string {
	return t.Format(monthTokenLayout)
}

// ProgressionService updates player experience, level and monthly
// leaderboard score after a completed session, and performs the monthly
// rollover (snapshot of the outgoing month's top 10, then reset) exactly
// once per boundary crossing.
type ProgressionService struct {
	store ProgressStore
	clock func() time.Time
}

func NewProgressionService(store ProgressStore, clock func() time.Time) *ProgressionService {
	if clock == nil {
		clock = time.Now
	}
	return &ProgressionService{store: store, clock: clock}
}

// Apply runs the progression effects for one completed session. It reports
// applied=false without touching the profile when the session is ineligible:
// only completed sessions on public-or-global quizzes feed progression.
// Training play-throughs never reach this code path at all.
func (s *ProgressionService) Apply(ctx context.Context, quiz domain.QuizConfig, session domain.QuizSession) (domain.PlayerProgress, bool, error) {
	if !session.Completed || !quiz.Ranked() {
		return domain.PlayerProgress{}, false, nil
	}

	progress, err := s.store.ReadPlayerProgress(ctx, session.PlayerID)
	if err != nil {
		return domain.PlayerProgress{}, false, fmt.Errorf("read progress for %s: %w", session.PlayerID, err)
	}

	earnedXP := int(math.Round(float64(session.Score) / 10))
	progress.XP += earnedXP
	progress.Level = progress.XP/xpPerLevel + 1

	currentMonth := MonthToken(s.clock())
	if progress.LastResetMonth == currentMonth {
		progress.MonthlyScore += session.Score
		progress.MonthlyGames++
	} else {
		// Crossing a month boundary: snapshot the outgoing month before any
		// counter for the new month is written, so the snapshot never mixes
		// pre- and post-reset scores.
		if progress.LastResetMonth != "" {
			if err := s.snapshotMonth(ctx, progress.LastResetMonth); err != nil {
				return domain.PlayerProgress{}, false, err
			}
		}
		progress.MonthlyScore = session.Score
		progress.MonthlyGames = 1
	}
	progress.LastResetMonth = currentMonth

	// One write carries the new token together with the xp/level/monthly
	// fields, so a crash cannot leave a half-rolled-over profile.
	if err := s.store.WritePlayerProgress(ctx, progress); err != nil {
		return domain.PlayerProgress{}, false, fmt.Errorf("write progress for %s: %w", session.PlayerID, err)
	}
	return progress, true, nil
}

// snapshotMonth freezes the current top 10 as the given month's final
// ranking and bumps each ranked player's streak counter.
func (s *ProgressionService) snapshotMonth(ctx context.Context, month string) error {
	top, err := s.store.ReadTop10ByMonthlyScore(ctx)
	if err != nil {
		return fmt.Errorf("read top 10 for %s snapshot: %w", month, err)
	}
	for i, player := range top {
		snap := domain.MonthlyRankingSnapshot{
			PlayerID: player.PlayerID,
			Month:    month,
			Rank:     i + 1,
			Score:    player.MonthlyScore,
		}
		if err := s.store.WriteMonthlyRankingSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("write snapshot for %s/%s: %w", player.PlayerID, month, err)
		}
		if err := s.store.IncrementTop10Streak(ctx, player.PlayerID); err != nil {
			return fmt.Errorf("increment streak for %s: %w", player.PlayerID, err)
		}
	}
	return nil
}
