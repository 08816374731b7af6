package redis

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/engine"
)

const leaderboardKeyPrefix = "arena:monthly:"

// ProgressMirror decorates a ProgressStore with a Redis sorted-set mirror of
// monthly scores, so the top-10 read that backs rollover snapshots is a
// single ZREVRANGE instead of a full profile scan. Each month gets its own
// sorted set keyed by month token, so a player who stops playing ages out
// with the old month's key instead of lingering in the current ranking.
// The backing store stays the source of truth; mirror writes are best
// effort, and reads fall back to the backend when Redis is unavailable or
// empty — in particular during a rollover, when the new month's set does
// not exist yet but the backend still holds the outgoing month's scores.
type ProgressMirror struct {
	client  *redis.Client
	backend engine.ProgressStore
	ttl     time.Duration
	clock   func() time.Time
}

func NewProgressMirror(client *redis.Client, backend engine.ProgressStore, ttl time.Duration) *ProgressMirror {
	return NewProgressMirrorWithClock(client, backend, ttl, time.Now)
}

func NewProgressMirrorWithClock(client *redis.Client, backend engine.ProgressStore, ttl time.Duration, clock func() time.Time) *ProgressMirror {
	return &ProgressMirror{client: client, backend: backend, ttl: ttl, clock: clock}
}

func leaderboardKey(token string) string {
	return leaderboardKeyPrefix + token
}

func (m *ProgressMirror) ReadPlayerProgress(ctx context.Context, playerID string) (domain.PlayerProgress, error) {
	return m.backend.ReadPlayerProgress(ctx, playerID)
}

// WritePlayerProgress writes through and mirrors the player's monthly score
// into the set for the month the profile was written under. A reset
// overwrites the member's score, matching the profile column.
func (m *ProgressMirror) WritePlayerProgress(ctx context.Context, progress domain.PlayerProgress) error {
	if err := m.backend.WritePlayerProgress(ctx, progress); err != nil {
		return err
	}
	token := progress.LastResetMonth
	if token == "" {
		token = engine.MonthToken(m.clock())
	}
	key := leaderboardKey(token)
	pipe := m.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(progress.MonthlyScore), Member: progress.PlayerID})
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("mirror monthly score for %s: %v", progress.PlayerID, err)
	}
	return nil
}

func (m *ProgressMirror) ReadTop10ByMonthlyScore(ctx context.Context) ([]domain.RankedPlayer, error) {
	key := leaderboardKey(engine.MonthToken(m.clock()))
	entries, err := m.client.ZRevRangeWithScores(ctx, key, 0, 9).Result()
	if err != nil || len(entries) == 0 {
		return m.backend.ReadTop10ByMonthlyScore(ctx)
	}
	ranked := make([]domain.RankedPlayer, 0, len(entries))
	for _, entry := range entries {
		playerID, ok := entry.Member.(string)
		if !ok {
			continue
		}
		ranked = append(ranked, domain.RankedPlayer{
			PlayerID:     playerID,
			MonthlyScore: int(entry.Score),
		})
	}
	return ranked, nil
}

func (m *ProgressMirror) WriteMonthlyRankingSnapshot(ctx context.Context, snap domain.MonthlyRankingSnapshot) error {
	return m.backend.WriteMonthlyRankingSnapshot(ctx, snap)
}

func (m *ProgressMirror) IncrementTop10Streak(ctx context.Context, playerID string) error {
	return m.backend.IncrementTop10Streak(ctx, playerID)
}
