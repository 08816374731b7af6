package domain

import "time"

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionSingleAnswer   QuestionType = "single_answer"
	QuestionFreeText       QuestionType = "free_text"
	QuestionMapClick       QuestionType = "map_click"
	QuestionTrueFalse      QuestionType = "true_false"
)

// HasOptions reports whether the question renders a fixed option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Question is one quiz question. Immutable once a session starts.
type Question struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"`
	OptionImages   []string     `json:"optionImages,omitempty"`
	Answer         string       `json:"answer"`
	AnswerVariants []string     `json:"answerVariants,omitempty"`
	Points         int          `json:"points"` // base points, before speed bonus
	Position       int          `json:"position"`
}

// QuizConfig carries the playable settings and running stats of a quiz.
type QuizConfig struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	TimeLimitSeconds   int     `json:"timeLimitSeconds"`
	RandomizeQuestions bool    `json:"randomizeQuestions"`
	RandomizeAnswers   bool    `json:"randomizeAnswers"`
	IsPublic           bool    `json:"isPublic"`
	IsGlobal           bool    `json:"isGlobal"`
	TotalPlays         int     `json:"totalPlays"`
	AverageScore       float64 `json:"averageScore"`
}

// Ranked reports whether sessions on this quiz feed progression and the
// monthly leaderboard.
func (c QuizConfig) Ranked() bool {
	return c.IsPublic || c.IsGlobal
}

// PlayMode distinguishes solo play from a head-to-head duel.
type PlayMode string

const (
	ModeSolo PlayMode = "solo"
	ModeDuel PlayMode = "duel"
)

// AnswerRecord captures the outcome of a single question within a session.
// Exactly one record per question, in question order; an empty Answer means
// the question timed out.
type AnswerRecord struct {
	QuestionID       string  `json:"questionId"`
	Answer           string  `json:"answer"`
	Correct          bool    `json:"correct"`
	TimeTakenSeconds float64 `json:"timeTakenSeconds"`
	PointsEarned     int     `json:"pointsEarned"`
}

// QuizSession is one player's play-through of a quiz.
type QuizSession struct {
	ID             string         `json:"id"`
	QuizID         string         `json:"quizId"`
	PlayerID       string         `json:"playerId"`
	Mode           PlayMode       `json:"mode"`
	Answers        []AnswerRecord `json:"answers"`
	RawScore       int            `json:"rawScore"`
	Score          int            `json:"score"` // normalized 0-100
	Accuracy       float64        `json:"accuracy"`
	ElapsedSeconds float64        `json:"elapsedSeconds"`
	CorrectCount   int            `json:"correctCount"`
	TotalQuestions int            `json:"totalQuestions"`
	Completed      bool           `json:"completed"`
	CompletedAt    time.Time      `json:"completedAt,omitempty"`
}

// SessionResult is the completion payload persisted onto a session.
type SessionResult struct {
	RawScore       int     `json:"rawScore"`
	Score          int     `json:"score"`
	Accuracy       float64 `json:"accuracy"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	CorrectCount   int     `json:"correctCount"`
	TotalQuestions int     `json:"totalQuestions"`
}

// DuelStatus tracks the lifecycle of a two-player contest.
type DuelStatus string

const (
	DuelPending    DuelStatus = "pending"
	DuelInProgress DuelStatus = "in_progress"
	DuelCompleted  DuelStatus = "completed"
)

// Duel pairs two independent sessions on the same quiz. An empty session ID
// means that slot has not finished yet; an empty WinnerID on a completed duel
// means a draw.
type Duel struct {
	ID             string     `json:"id"`
	QuizID         string     `json:"quizId"`
	HostID         string     `json:"hostId"`
	GuestID        string     `json:"guestId"`
	HostSessionID  string     `json:"hostSessionId,omitempty"`
	GuestSessionID string     `json:"guestSessionId,omitempty"`
	WinnerID       string     `json:"winnerId,omitempty"`
	Status         DuelStatus `json:"status"`
	CompletedAt    time.Time  `json:"completedAt,omitempty"`
}

// SessionFor returns the session attached for the given participant.
func (d Duel) SessionFor(playerID string) string {
	if playerID == d.HostID {
		return d.HostSessionID
	}
	if playerID == d.GuestID {
		return d.GuestSessionID
	}
	return ""
}

// OpponentSession returns the session attached for the other participant.
func (d Duel) OpponentSession(playerID string) string {
	if playerID == d.HostID {
		return d.GuestSessionID
	}
	if playerID == d.GuestID {
		return d.HostSessionID
	}
	return ""
}

// PlayerProgress is the subset of a player profile touched by progression.
type PlayerProgress struct {
	PlayerID       string `json:"playerId"`
	XP             int    `json:"xp"`
	Level          int    `json:"level"`
	MonthlyScore   int    `json:"monthlyScore"`
	MonthlyGames   int    `json:"monthlyGames"`
	LastResetMonth string `json:"lastResetMonth"` // "2006-01" month token
	Top10Streak    int    `json:"top10Streak"`
}

// RankedPlayer is one row of the monthly leaderboard.
type RankedPlayer struct {
	PlayerID     string `json:"playerId"`
	MonthlyScore int    `json:"monthlyScore"`
}

// MonthlyRankingSnapshot freezes one player's final standing for a month.
// Write-once per (player, month).
type MonthlyRankingSnapshot struct {
	PlayerID string `json:"playerId"`
	Month    string `json:"month"`
	Rank     int    `json:"rank"`
	Score    int    `json:"score"`
}

// Badge is a level-threshold award.
type Badge struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LevelRequired int    `json:"levelRequired"`
}
