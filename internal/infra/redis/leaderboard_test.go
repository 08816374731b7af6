package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/memory"
)

func juneClock() func() time.Time {
	return func() time.Time { return time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC) }
}

func TestProgressMirrorMirrorsScoresIntoSortedSet(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backend := memory.NewStore()
	mirror := NewProgressMirrorWithClock(newClient(mr), backend, time.Hour, juneClock())
	ctx := context.Background()

	for _, p := range []domain.PlayerProgress{
		{PlayerID: "alice", MonthlyScore: 150, LastResetMonth: "2024-06"},
		{PlayerID: "bob", MonthlyScore: 310, LastResetMonth: "2024-06"},
		{PlayerID: "carol", MonthlyScore: 90, LastResetMonth: "2024-06"},
	} {
		if err := mirror.WritePlayerProgress(ctx, p); err != nil {
			t.Fatalf("write progress: %v", err)
		}
	}

	top, err := mirror.ReadTop10ByMonthlyScore(ctx)
	if err != nil {
		t.Fatalf("read top 10: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top))
	}
	if top[0].PlayerID != "bob" || top[0].MonthlyScore != 310 {
		t.Fatalf("expected bob on top, got %+v", top[0])
	}
	if top[2].PlayerID != "carol" {
		t.Fatalf("expected carol last, got %+v", top[2])
	}
}

func TestProgressMirrorResetOverwritesScore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	mirror := NewProgressMirrorWithClock(newClient(mr), memory.NewStore(), time.Hour, juneClock())
	ctx := context.Background()

	_ = mirror.WritePlayerProgress(ctx, domain.PlayerProgress{PlayerID: "alice", MonthlyScore: 250, LastResetMonth: "2024-05"})
	// Rollover: the reset score replaces, not accumulates.
	_ = mirror.WritePlayerProgress(ctx, domain.PlayerProgress{PlayerID: "alice", MonthlyScore: 70, LastResetMonth: "2024-06"})

	top, err := mirror.ReadTop10ByMonthlyScore(ctx)
	if err != nil {
		t.Fatalf("read top 10: %v", err)
	}
	if len(top) != 1 || top[0].MonthlyScore != 70 {
		t.Fatalf("expected overwritten score 70, got %+v", top)
	}
}

func TestProgressMirrorKeysSetsByMonth(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	mirror := NewProgressMirrorWithClock(newClient(mr), memory.NewStore(), time.Hour, juneClock())
	ctx := context.Background()

	// Alice last played in May and never rolled over; her score must not
	// appear in June's ranking.
	_ = mirror.WritePlayerProgress(ctx, domain.PlayerProgress{PlayerID: "alice", MonthlyScore: 500, LastResetMonth: "2024-05"})
	_ = mirror.WritePlayerProgress(ctx, domain.PlayerProgress{PlayerID: "bob", MonthlyScore: 40, LastResetMonth: "2024-06"})

	top, err := mirror.ReadTop10ByMonthlyScore(ctx)
	if err != nil {
		t.Fatalf("read top 10: %v", err)
	}
	if len(top) != 1 || top[0].PlayerID != "bob" || top[0].MonthlyScore != 40 {
		t.Fatalf("expected only bob in June's set, got %+v", top)
	}

	if !mr.Exists("arena:monthly:2024-05") || !mr.Exists("arena:monthly:2024-06") {
		t.Fatalf("expected one sorted set per month token")
	}
}

func TestProgressMirrorFallsBackToBackend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backend := memory.NewStore()
	backend.SeedProgress(domain.PlayerProgress{PlayerID: "alice", MonthlyScore: 120, LastResetMonth: "2024-06"})
	mirror := NewProgressMirrorWithClock(newClient(mr), backend, time.Hour, juneClock())

	// Empty sorted set: the read must come from the backing store.
	top, err := mirror.ReadTop10ByMonthlyScore(context.Background())
	if err != nil {
		t.Fatalf("read top 10: %v", err)
	}
	if len(top) != 1 || top[0].PlayerID != "alice" {
		t.Fatalf("expected backend fallback, got %+v", top)
	}
}
