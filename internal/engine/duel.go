package engine

import (
	"context"
	"fmt"

	"quiz-arena-service/internal/domain"
)

// ReconcileDuel attaches a freshly completed session to its duel and, when
// the other participant has already finished, computes the outcome and
// finalizes the contest. The attach is a single atomic store operation, so
// reconciliation is commutative: whichever side finishes second sees both
// slots filled and performs the winner computation. The returned duel
// reflects the record as this side observed it after attaching.
func ReconcileDuel(ctx context.Context, store Store, duelID string, session domain.QuizSession) (domain.Duel, error) {
	duel, err := store.AttachDuelSession(ctx, duelID, session.PlayerID, session.ID)
	if err != nil {
		return domain.Duel{}, fmt.Errorf("attach session to duel %s: %w", duelID, err)
	}

	opponentSessionID := duel.OpponentSession(session.PlayerID)
	if opponentSessionID == "" {
		// First finisher: leave the duel in progress for the other side.
		return duel, nil
	}

	opponent, err := store.ReadSession(ctx, opponentSessionID)
	if err != nil {
		return duel, fmt.Errorf("read opponent session %s: %w", opponentSessionID, err)
	}

	winnerID := ""
	switch {
	case session.Score > opponent.Score:
		winnerID = session.PlayerID
	case opponent.Score > session.Score:
		winnerID = opponent.PlayerID
	}
	// FinalizeDuel is conditional on the duel not being completed yet, so a
	// losing racer's write cannot overwrite a result the other side already
	// finalized.
	if err := store.FinalizeDuel(ctx, duelID, winnerID); err != nil {
		return duel, fmt.Errorf("finalize duel %s: %w", duelID, err)
	}
	duel.WinnerID = winnerID
	duel.Status = domain.DuelCompleted
	return duel, nil
}
