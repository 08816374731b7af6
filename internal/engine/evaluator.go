package engine

import (
	"math"
	"strings"

	"quiz-arena-service/internal/domain"
)

// Evaluation is the outcome of scoring one submitted answer.
type Evaluation struct {
	Correct      bool
	PointsEarned int
}

// Evaluate scores a submitted answer against a question. It is a pure
// function: correctness is case-insensitive, whitespace-trimmed equality
// against the primary answer or any accepted variant; an empty submission
// (timeout) is always incorrect. A correct answer earns the question's base
// points scaled by a speed bonus that decays linearly from 0.5 at instant
// submission to 0 at the deadline.
func Evaluate(q domain.Question, submitted string, elapsedSeconds, timeLimitSeconds float64) Evaluation {
	trimmed := strings.TrimSpace(submitted)
	if trimmed == "" {
		return Evaluation{}
	}
	if !matchesAnswer(q, trimmed) {
		return Evaluation{}
	}

	bonus := 0.0
	if timeLimitSeconds > 0 {
		bonus = math.Max(0, 1-elapsedSeconds/timeLimitSeconds) * 0.5
	}
	points := int(math.Round(float64(q.Points) * (1 + bonus)))
	return Evaluation{Correct: true, PointsEarned: points}
}

func matchesAnswer(q domain.Question, trimmed string) bool {
	if strings.EqualFold(trimmed, strings.TrimSpace(q.Answer)) {
		return true
	}
	for _, variant := range q.AnswerVariants {
		if strings.EqualFold(trimmed, strings.TrimSpace(variant)) {
			return true
		}
	}
	return false
}
