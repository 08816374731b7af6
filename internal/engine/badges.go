package engine

import (
	"context"
	"fmt"

	"quiz-arena-service/internal/domain"
)

// BadgeService grants level-threshold badges after a level change.
type BadgeService struct {
	store BadgeStore
}

func NewBadgeService(store BadgeStore) *BadgeService {
	return &BadgeService{store: store}
}

// GrantForLevel grants every badge whose threshold the player's level now
// meets and that the player does not already hold. Idempotent: a repeat call
// with the same or a higher level grants nothing twice. Returns the badges
// newly granted by this call.
func (s *BadgeService) GrantForLevel(ctx context.Context, playerID string, level int) ([]domain.Badge, error) {
	badges, err := s.store.FindBadgesByLevel(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("find badges for level %d: %w", level, err)
	}

	var granted []domain.Badge
	for _, badge := range badges {
		held, err := s.store.HasBadge(ctx, playerID, badge.ID)
		if err != nil {
			return granted, fmt.Errorf("check badge %s for %s: %w", badge.ID, playerID, err)
		}
		if held {
			continue
		}
		if err := s.store.GrantBadge(ctx, playerID, badge.ID); err != nil {
			return granted, fmt.Errorf("grant badge %s to %s: %w", badge.ID, playerID, err)
		}
		granted = append(granted, badge)
	}
	return granted, nil
}
