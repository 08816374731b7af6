package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"quiz-arena-service/internal/domain"
)

// SessionState is the controller's lifecycle position. Transitions are
// guarded by the current state, so duplicate starts, double submissions,
// submission-vs-timeout races and repeated completion triggers are no-ops
// rather than duplicate side effects.
type SessionState int

const (
	StateLoading SessionState = iota
	StateAwaitingAnswer
	StateScored
	StateCompleted
	StateAbandoned
)

func (s SessionState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateScored:
		return "scored"
	case StateCompleted:
		return "completed"
	case StateAbandoned:
		return "abandoned"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SessionEvents are optional hooks for a transport layer driving the
// session. They are invoked with the controller's lock held and must not
// call back into the controller.
type SessionEvents struct {
	OnQuestion  func(index int, q domain.Question, timeLimitSeconds int)
	OnAnswered  func(index int, rec domain.AnswerRecord, totalScore int)
	OnCompleted func(summary domain.QuizSession)
}

// SessionOptions configures one play-through.
type SessionOptions struct {
	QuizID   string
	PlayerID string
	Mode     domain.PlayMode
	// DuelID links a duel-mode session to its contest record.
	DuelID string
	// Training runs an untimed, unpersisted practice play-through with no
	// progression effects.
	Training bool
	// TrainingLimit truncates the shuffled question set in training mode.
	TrainingLimit int

	Clock  func() time.Time
	Rand   *rand.Rand
	Events SessionEvents
}

// SessionController drives one player through one play-through: it owns the
// current question index, the per-question countdown, the growing answer
// list and the running score, and it fires completion exactly once.
type SessionController struct {
	store  Store
	clock  func() time.Time
	rnd    *rand.Rand
	events SessionEvents

	quizID   string
	playerID string
	mode     domain.PlayMode
	duelID   string
	training bool
	limit    int

	mu            sync.Mutex
	state         SessionState
	quiz          domain.QuizConfig
	questions     []domain.Question
	sessionID     string
	index         int
	answers       []domain.AnswerRecord
	rawScore      int
	questionStart time.Time
	timer         *time.Timer
	summary       domain.QuizSession
}

// NewSessionController builds a controller in the Loading state. Call Start
// to load the question set and begin play.
func NewSessionController(store Store, opts SessionOptions) *SessionController {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.ModeSolo
	}
	return &SessionController{
		store:    store,
		clock:    clock,
		rnd:      rnd,
		events:   opts.Events,
		quizID:   opts.QuizID,
		playerID: opts.PlayerID,
		mode:     mode,
		duelID:   opts.DuelID,
		training: opts.Training,
		limit:    opts.TrainingLimit,
		state:    StateLoading,
	}
}

// Start loads the quiz, creates the persisted session row (outside training)
// and presents the first question. A second Start while one is in flight or
// after a successful one is a no-op; Start may be retried after a load error.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoading {
		return nil
	}

	set, err := LoadQuestionSet(ctx, c.store, c.quizID, LoadOptions{Training: c.training, Limit: c.limit}, c.rnd)
	if err != nil {
		return err
	}
	if !c.training {
		sessionID, err := c.store.CreateSession(ctx, c.quizID, c.playerID, c.mode)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		c.sessionID = sessionID
	}

	c.quiz = set.Quiz
	c.questions = set.Questions
	c.answers = make([]domain.AnswerRecord, 0, len(set.Questions))
	c.beginQuestionLocked(0)
	return nil
}

// Submit records an explicit answer for the current question, scores it and
// advances play. It reports false when no question is awaiting an answer
// (not started, already answered, timed out, or completed); a suppressed
// submission has no side effects.
func (c *SessionController) Submit(ctx context.Context, answer string) (domain.AnswerRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingAnswer {
		return domain.AnswerRecord{}, false
	}

	c.stopTimerLocked()
	q := c.questions[c.index]
	elapsed := c.clock().Sub(c.questionStart).Seconds()
	eval := Evaluate(q, answer, elapsed, float64(c.quiz.TimeLimitSeconds))
	rec := domain.AnswerRecord{
		QuestionID:       q.ID,
		Answer:           answer,
		Correct:          eval.Correct,
		TimeTakenSeconds: elapsed,
		PointsEarned:     eval.PointsEarned,
	}
	c.scoreLocked(ctx, rec)
	return rec, true
}

// State returns the controller's current lifecycle state.
func (c *SessionController) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Quiz returns the loaded quiz config. Valid after Start.
func (c *SessionController) Quiz() domain.QuizConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quiz
}

// CurrentQuestion returns the question awaiting an answer, if any.
func (c *SessionController) CurrentQuestion() (int, domain.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingAnswer {
		return 0, domain.Question{}, false
	}
	return c.index, c.questions[c.index], true
}

// Summary returns the completed session, once play has finished.
func (c *SessionController) Summary() (domain.QuizSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCompleted {
		return domain.QuizSession{}, false
	}
	return c.summary, true
}

// Close stops the countdown and abandons an unfinished session. Abandoned
// is terminal: a countdown callback that fired before the timer was stopped
// finds the state guard closed and cannot score or complete the session.
// Any partially written rows are left behind.
func (c *SessionController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	if c.state != StateCompleted {
		c.state = StateAbandoned
	}
}

func (c *SessionController) beginQuestionLocked(index int) {
	c.index = index
	c.state = StateAwaitingAnswer
	c.questionStart = c.clock()
	limit := c.quiz.TimeLimitSeconds
	if !c.training && limit > 0 {
		c.timer = time.AfterFunc(time.Duration(limit)*time.Second, func() {
			c.timeoutQuestion(index)
		})
	}
	if c.events.OnQuestion != nil {
		timeLimit := limit
		if c.training {
			timeLimit = 0
		}
		c.events.OnQuestion(index, c.questions[index], timeLimit)
	}
}

// timeoutQuestion fires from the countdown. The state and index checks make
// it mutually exclusive with an explicit submission for the same question.
func (c *SessionController) timeoutQuestion(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingAnswer || c.index != index {
		return
	}
	q := c.questions[index]
	rec := domain.AnswerRecord{
		QuestionID:       q.ID,
		Answer:           "",
		Correct:          false,
		TimeTakenSeconds: float64(c.quiz.TimeLimitSeconds),
		PointsEarned:     0,
	}
	c.scoreLocked(context.Background(), rec)
}

func (c *SessionController) scoreLocked(ctx context.Context, rec domain.AnswerRecord) {
	c.state = StateScored
	c.answers = append(c.answers, rec)
	c.rawScore += rec.PointsEarned

	if !c.training {
		// Best-effort: the in-memory answer list stays the source of truth
		// for the end-of-session summary even if this row fails to persist.
		if err := c.store.AppendAnswer(ctx, c.sessionID, rec); err != nil {
			log.Printf("append answer for session %s: %v", c.sessionID, err)
		}
	}
	if c.events.OnAnswered != nil {
		c.events.OnAnswered(c.index, rec, c.rawScore)
	}

	if c.index == len(c.questions)-1 {
		c.completeLocked(ctx)
		return
	}
	c.beginQuestionLocked(c.index + 1)
}

// completeLocked runs the completion path at most once: the Completed state
// is entered before any persistence side effect, so re-entry is a no-op.
func (c *SessionController) completeLocked(ctx context.Context) {
	if c.state == StateCompleted {
		return
	}
	c.state = StateCompleted
	c.stopTimerLocked()

	total := len(c.questions)
	correct := 0
	elapsed := 0.0
	for _, rec := range c.answers {
		if rec.Correct {
			correct++
		}
		elapsed += rec.TimeTakenSeconds
	}
	normalized := normalizeScore(c.rawScore, total)
	summary := domain.QuizSession{
		ID:             c.sessionID,
		QuizID:         c.quizID,
		PlayerID:       c.playerID,
		Mode:           c.mode,
		Answers:        c.answers,
		RawScore:       c.rawScore,
		Score:          normalized,
		Accuracy:       float64(correct) / float64(total) * 100,
		ElapsedSeconds: elapsed,
		CorrectCount:   correct,
		TotalQuestions: total,
		Completed:      true,
		CompletedAt:    c.clock(),
	}
	c.summary = summary

	if c.training {
		if c.events.OnCompleted != nil {
			c.events.OnCompleted(summary)
		}
		return
	}

	result := domain.SessionResult{
		RawScore:       summary.RawScore,
		Score:          summary.Score,
		Accuracy:       summary.Accuracy,
		ElapsedSeconds: summary.ElapsedSeconds,
		CorrectCount:   summary.CorrectCount,
		TotalQuestions: summary.TotalQuestions,
	}
	if err := c.store.CompleteSession(ctx, c.sessionID, result); err != nil {
		// Progression and badges must not run when the completion write
		// failed; the player still gets the local summary.
		log.Printf("complete session %s: %v", c.sessionID, err)
		if c.events.OnCompleted != nil {
			c.events.OnCompleted(summary)
		}
		return
	}

	c.updateQuizStats(ctx, summary)

	if c.mode == domain.ModeDuel && c.duelID != "" {
		if _, err := ReconcileDuel(ctx, c.store, c.duelID, summary); err != nil {
			log.Printf("reconcile duel %s: %v", c.duelID, err)
		}
	}

	progression := NewProgressionService(c.store, c.clock)
	progress, applied, err := progression.Apply(ctx, c.quiz, summary)
	if err != nil {
		log.Printf("apply progression for player %s: %v", c.playerID, err)
	} else if applied {
		badges := NewBadgeService(c.store)
		if _, err := badges.GrantForLevel(ctx, c.playerID, progress.Level); err != nil {
			log.Printf("grant badges for player %s: %v", c.playerID, err)
		}
	}

	if c.events.OnCompleted != nil {
		c.events.OnCompleted(summary)
	}
}

func (c *SessionController) updateQuizStats(ctx context.Context, summary domain.QuizSession) {
	newPlays := c.quiz.TotalPlays + 1
	newAverage := (c.quiz.AverageScore*float64(c.quiz.TotalPlays) + float64(summary.Score)) / float64(newPlays)
	if err := c.store.IncrementQuizPlayStats(ctx, c.quizID, newAverage, newPlays); err != nil {
		log.Printf("update play stats for quiz %s: %v", c.quizID, err)
	}
}

func (c *SessionController) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// normalizeScore rescales a raw point total to 0-100 for cross-quiz
// comparability. 150 is the per-question ceiling (full speed bonus).
func normalizeScore(rawScore, totalQuestions int) int {
	if totalQuestions == 0 {
		return 0
	}
	normalized := int(math.Round(float64(rawScore) / float64(totalQuestions*150) * 100))
	if normalized > 100 {
		normalized = 100
	}
	return normalized
}
