package engine_test

import (
	"context"
	"testing"
	"time"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/engine"
	"quiz-arena-service/internal/infra/memory"
)

func fixedClock(year int, month time.Month) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)
	}
}

func rankedSession(playerID string, score int) domain.QuizSession {
	return domain.QuizSession{
		ID:        "s1",
		QuizID:    "geo",
		PlayerID:  playerID,
		Mode:      domain.ModeSolo,
		Score:     score,
		Completed: true,
	}
}

func TestProgressionAccumulatesWithinMonth(t *testing.T) {
	store := memory.NewStore()
	store.SeedProgress(domain.PlayerProgress{PlayerID: "alice", XP: 950, Level: 1, MonthlyScore: 120, MonthlyGames: 2, LastResetMonth: "2024-06"})
	svc := engine.NewProgressionService(store, fixedClock(2024, time.June))

	progress, applied, err := svc.Apply(context.Background(), domain.QuizConfig{ID: "geo", IsPublic: true}, rankedSession("alice", 70))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !applied {
		t.Fatalf("expected progression to apply")
	}
	if progress.XP != 957 {
		t.Fatalf("expected xp 957, got %d", progress.XP)
	}
	if progress.Level != 1 {
		t.Fatalf("expected level 1, got %d", progress.Level)
	}
	if progress.MonthlyScore != 190 || progress.MonthlyGames != 3 {
		t.Fatalf("expected monthly accumulation, got score=%d games=%d", progress.MonthlyScore, progress.MonthlyGames)
	}
	if progress.LastResetMonth != "2024-06" {
		t.Fatalf("unexpected month token %q", progress.LastResetMonth)
	}
}

func TestProgressionLevelsUpAcrossThreshold(t *testing.T) {
	store := memory.NewStore()
	store.SeedProgress(domain.PlayerProgress{PlayerID: "alice", XP: 995, Level: 1, LastResetMonth: "2024-06"})
	svc := engine.NewProgressionService(store, fixedClock(2024, time.June))

	progress, _, err := svc.Apply(context.Background(), domain.QuizConfig{ID: "geo", IsGlobal: true}, rankedSession("alice", 100))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if progress.XP != 1005 {
		t.Fatalf("expected xp 1005, got %d", progress.XP)
	}
	if progress.Level != 2 {
		t.Fatalf("expected level 2, got %d", progress.Level)
	}
}

func TestProgressionRollsOverAcrossMonthBoundary(t *testing.T) {
	store := memory.NewStore()
	// May standings: alice and two others on the board.
	store.SeedProgress(domain.PlayerProgress{PlayerID: "alice", XP: 200, Level: 1, MonthlyScore: 150, MonthlyGames: 3, LastResetMonth: "2024-05"})
	store.SeedProgress(domain.PlayerProgress{PlayerID: "bob", XP: 400, Level: 1, MonthlyScore: 310, MonthlyGames: 5, LastResetMonth: "2024-05"})
	store.SeedProgress(domain.PlayerProgress{PlayerID: "carol", XP: 100, Level: 1, MonthlyScore: 90, MonthlyGames: 1, LastResetMonth: "2024-05"})
	svc := engine.NewProgressionService(store, fixedClock(2024, time.June))

	progress, applied, err := svc.Apply(context.Background(), domain.QuizConfig{ID: "geo", IsPublic: true}, rankedSession("alice", 70))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !applied {
		t.Fatalf("expected progression to apply")
	}
	if progress.MonthlyScore != 70 || progress.MonthlyGames != 1 {
		t.Fatalf("expected monthly reset to 70/1, got %d/%d", progress.MonthlyScore, progress.MonthlyGames)
	}
	if progress.LastResetMonth != "2024-06" {
		t.Fatalf("expected token 2024-06, got %q", progress.LastResetMonth)
	}

	// The May snapshot must hold the pre-reset standings.
	for i, expect := range []struct {
		player string
		rank   int
		score  int
	}{
		{"bob", 1, 310},
		{"alice", 2, 150},
		{"carol", 3, 90},
	} {
		snap, ok := store.Snapshot(expect.player, "2024-05")
		if !ok {
			t.Fatalf("missing snapshot %d for %s", i, expect.player)
		}
		if snap.Rank != expect.rank || snap.Score != expect.score {
			t.Fatalf("snapshot for %s: expected rank %d score %d, got %+v", expect.player, expect.rank, expect.score, snap)
		}
	}

	ctx := context.Background()
	bob, err := store.ReadPlayerProgress(ctx, "bob")
	if err != nil {
		t.Fatalf("read bob: %v", err)
	}
	if bob.Top10Streak != 1 {
		t.Fatalf("expected bob's streak to be 1, got %d", bob.Top10Streak)
	}
}

func TestProgressionFirstEverPlaySkipsSnapshot(t *testing.T) {
	store := memory.NewStore()
	svc := engine.NewProgressionService(store, fixedClock(2024, time.June))

	progress, applied, err := svc.Apply(context.Background(), domain.QuizConfig{ID: "geo", IsPublic: true}, rankedSession("newbie", 50))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !applied {
		t.Fatalf("expected progression to apply")
	}
	if progress.MonthlyScore != 50 || progress.MonthlyGames != 1 {
		t.Fatalf("unexpected monthly fields %d/%d", progress.MonthlyScore, progress.MonthlyGames)
	}
	if _, ok := store.Snapshot("newbie", ""); ok {
		t.Fatalf("snapshot written for empty prior month")
	}
}

func TestProgressionSkipsUnrankedQuizzes(t *testing.T) {
	store := memory.NewStore()
	store.SeedProgress(domain.PlayerProgress{PlayerID: "alice", XP: 500, Level: 1, MonthlyScore: 40, MonthlyGames: 1, LastResetMonth: "2024-06"})
	svc := engine.NewProgressionService(store, fixedClock(2024, time.June))

	_, applied, err := svc.Apply(context.Background(), domain.QuizConfig{ID: "private"}, rankedSession("alice", 90))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if applied {
		t.Fatalf("expected private quiz to be ineligible")
	}
	progress, _ := store.ReadPlayerProgress(context.Background(), "alice")
	if progress.XP != 500 || progress.MonthlyScore != 40 {
		t.Fatalf("profile mutated for ineligible session: %+v", progress)
	}
}

func TestProgressionSkipsIncompleteSessions(t *testing.T) {
	store := memory.NewStore()
	svc := engine.NewProgressionService(store, fixedClock(2024, time.June))
	session := rankedSession("alice", 90)
	session.Completed = false

	_, applied, err := svc.Apply(context.Background(), domain.QuizConfig{ID: "geo", IsPublic: true}, session)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if applied {
		t.Fatalf("expected incomplete session to be ineligible")
	}
}
