package engine

import (
	"context"
	"fmt"
	"math/rand"

	"quiz-arena-service/internal/domain"
)

// LoadOptions tunes how a question set is prepared before play.
type LoadOptions struct {
	// Training forces a shuffle regardless of the quiz's randomize flag and
	// marks the play-through as unpersisted practice.
	Training bool
	// Limit truncates the set to a prefix of this length after shuffling.
	// Truncation is a training-mode feature; the limit is ignored for
	// ranked play so solo and duel sessions always see the full set. Zero
	// means no truncation.
	Limit int
}

// QuestionSet is a ready-to-play quiz: config plus pre-processed questions.
type QuestionSet struct {
	Quiz      domain.QuizConfig
	Questions []domain.Question
}

// LoadQuestionSet fetches a quiz and prepares its questions for a session:
// shuffle when the quiz randomizes question order (or in training mode),
// truncate training sets to a prefix after shuffling, and independently shuffle each
// choice-type question's options when the quiz randomizes answer order.
// Correctness is never tied to option position; the evaluator matches by
// value, so option shuffling cannot break scoring.
func LoadQuestionSet(ctx context.Context, store QuizStore, quizID string, opts LoadOptions, rnd *rand.Rand) (QuestionSet, error) {
	quiz, err := store.LoadQuiz(ctx, quizID)
	if err != nil {
		return QuestionSet{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	questions, err := store.LoadQuestions(ctx, quizID)
	if err != nil {
		return QuestionSet{}, fmt.Errorf("load questions for %s: %w", quizID, err)
	}
	if len(questions) == 0 {
		return QuestionSet{}, domain.ErrNoQuestions
	}

	// Work on a copy; the store may hand out shared slices.
	prepared := make([]domain.Question, len(questions))
	copy(prepared, questions)

	if quiz.RandomizeQuestions || opts.Training {
		rnd.Shuffle(len(prepared), func(i, j int) {
			prepared[i], prepared[j] = prepared[j], prepared[i]
		})
	}
	if opts.Training && opts.Limit > 0 && opts.Limit < len(prepared) {
		prepared = prepared[:opts.Limit]
	}
	if quiz.RandomizeAnswers {
		for i := range prepared {
			if !prepared[i].Type.HasOptions() {
				continue
			}
			prepared[i].Options = shuffledOptions(prepared[i].Options, rnd)
		}
	}
	return QuestionSet{Quiz: quiz, Questions: prepared}, nil
}

func shuffledOptions(options []string, rnd *rand.Rand) []string {
	out := make([]string, len(options))
	copy(out, options)
	rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
