package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-arena-service/internal/domain"
)

// Store is the Postgres implementation of engine.Store.
type Store struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, clock: time.Now}
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error) {
	var cfg domain.QuizConfig
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, time_limit_seconds, randomize_questions, randomize_answers,
		       is_public, is_global, total_plays, average_score
		FROM quizzes WHERE id=$1`, quizID).
		Scan(&cfg.ID, &cfg.Title, &cfg.TimeLimitSeconds, &cfg.RandomizeQuestions, &cfg.RandomizeAnswers,
			&cfg.IsPublic, &cfg.IsGlobal, &cfg.TotalPlays, &cfg.AverageScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizConfig{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizConfig{}, fmt.Errorf("load quiz: %w", err)
	}
	return cfg, nil
}

func (s *Store) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, prompt, options, option_images, answer, answer_variants, points, position
		FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var qType string
		var options, images, variants []byte
		if err := rows.Scan(&q.ID, &qType, &q.Prompt, &options, &images, &variants, &q.Points, &q.Position); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(qType)
		if err := unmarshalStrings(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for %s: %w", q.ID, err)
		}
		if err := unmarshalStrings(images, &q.OptionImages); err != nil {
			return nil, fmt.Errorf("decode option images for %s: %w", q.ID, err)
		}
		if err := unmarshalStrings(variants, &q.AnswerVariants); err != nil {
			return nil, fmt.Errorf("decode answer variants for %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) IncrementQuizPlayStats(ctx context.Context, quizID string, newAverage float64, newTotalPlays int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quizzes SET average_score=$2, total_plays=$3 WHERE id=$1`,
		quizID, newAverage, newTotalPlays)
	if err != nil {
		return fmt.Errorf("update play stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, quizID, playerID string, mode domain.PlayMode) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_sessions (id, quiz_id, player_id, mode, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, quizID, playerID, string(mode), s.clock())
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *Store) AppendAnswer(ctx context.Context, sessionID string, rec domain.AnswerRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_answers (session_id, question_id, answer, correct, time_taken_seconds, points_earned)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, rec.QuestionID, rec.Answer, rec.Correct, rec.TimeTakenSeconds, rec.PointsEarned)
	if err != nil {
		return fmt.Errorf("append answer: %w", err)
	}
	return nil
}

func (s *Store) CompleteSession(ctx context.Context, sessionID string, result domain.SessionResult) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quiz_sessions
		SET raw_score=$2, score=$3, accuracy=$4, elapsed_seconds=$5,
		    correct_count=$6, total_questions=$7, completed=TRUE, completed_at=$8
		WHERE id=$1`,
		sessionID, result.RawScore, result.Score, result.Accuracy, result.ElapsedSeconds,
		result.CorrectCount, result.TotalQuestions, s.clock())
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) ReadSession(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var (
		session     domain.QuizSession
		mode        string
		completedAt sql.NullTime
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, player_id, mode, raw_score, score, accuracy, elapsed_seconds,
		       correct_count, total_questions, completed, completed_at
		FROM quiz_sessions WHERE id=$1`, sessionID).
		Scan(&session.ID, &session.QuizID, &session.PlayerID, &mode, &session.RawScore,
			&session.Score, &session.Accuracy, &session.ElapsedSeconds,
			&session.CorrectCount, &session.TotalQuestions, &session.Completed, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("read session: %w", err)
	}
	session.Mode = domain.PlayMode(mode)
	if completedAt.Valid {
		session.CompletedAt = completedAt.Time
	}

	rows, err := s.pool.Query(ctx, `
		SELECT question_id, answer, correct, time_taken_seconds, points_earned
		FROM session_answers WHERE session_id=$1 ORDER BY id`, sessionID)
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("read answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec domain.AnswerRecord
		if err := rows.Scan(&rec.QuestionID, &rec.Answer, &rec.Correct, &rec.TimeTakenSeconds, &rec.PointsEarned); err != nil {
			return domain.QuizSession{}, fmt.Errorf("scan answer: %w", err)
		}
		session.Answers = append(session.Answers, rec)
	}
	return session, rows.Err()
}

func (s *Store) ReadDuel(ctx context.Context, duelID string) (domain.Duel, error) {
	duel, err := s.scanDuel(ctx, s.pool, duelID, false)
	if err != nil {
		return domain.Duel{}, err
	}
	return duel, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (s *Store) scanDuel(ctx context.Context, q queryRower, duelID string, forUpdate bool) (domain.Duel, error) {
	query := `
		SELECT id, quiz_id, host_id, guest_id,
		       COALESCE(host_session_id, ''), COALESCE(guest_session_id, ''),
		       COALESCE(winner_id, ''), status, completed_at
		FROM duels WHERE id=$1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var (
		duel        domain.Duel
		status      string
		completedAt sql.NullTime
	)
	err := q.QueryRow(ctx, query, duelID).
		Scan(&duel.ID, &duel.QuizID, &duel.HostID, &duel.GuestID,
			&duel.HostSessionID, &duel.GuestSessionID, &duel.WinnerID, &status, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Duel{}, domain.ErrDuelNotFound
	}
	if err != nil {
		return domain.Duel{}, fmt.Errorf("read duel: %w", err)
	}
	duel.Status = domain.DuelStatus(status)
	if completedAt.Valid {
		duel.CompletedAt = completedAt.Time
	}
	return duel, nil
}

// AttachDuelSession runs the attach as a transaction holding a row lock on
// the duel, so two finishers cannot both observe the other slot as empty.
func (s *Store) AttachDuelSession(ctx context.Context, duelID, playerID, sessionID string) (domain.Duel, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Duel{}, fmt.Errorf("begin attach: %w", err)
	}
	defer tx.Rollback(ctx)

	duel, err := s.scanDuel(ctx, tx, duelID, true)
	if err != nil {
		return domain.Duel{}, err
	}

	var column string
	switch playerID {
	case duel.HostID:
		column = "host_session_id"
		if duel.HostSessionID == "" {
			duel.HostSessionID = sessionID
		}
	case duel.GuestID:
		column = "guest_session_id"
		if duel.GuestSessionID == "" {
			duel.GuestSessionID = sessionID
		}
	default:
		return domain.Duel{}, domain.ErrNotDuelParticipant
	}
	if duel.Status == domain.DuelPending {
		duel.Status = domain.DuelInProgress
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE duels SET %s = COALESCE(%s, $2),
		       status = CASE WHEN status = 'pending' THEN 'in_progress' ELSE status END
		WHERE id=$1`, column, column), duelID, sessionID)
	if err != nil {
		return domain.Duel{}, fmt.Errorf("attach duel session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Duel{}, fmt.Errorf("commit attach: %w", err)
	}
	return duel, nil
}

// FinalizeDuel flips the duel to completed unless the other side already
// did; a lost race is a silent no-op.
func (s *Store) FinalizeDuel(ctx context.Context, duelID, winnerID string) error {
	var winner interface{}
	if winnerID != "" {
		winner = winnerID
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE duels SET status='completed', winner_id=$2, completed_at=$3
		WHERE id=$1 AND status <> 'completed'`,
		duelID, winner, s.clock())
	if err != nil {
		return fmt.Errorf("finalize duel: %w", err)
	}
	return nil
}

func (s *Store) ReadPlayerProgress(ctx context.Context, playerID string) (domain.PlayerProgress, error) {
	var p domain.PlayerProgress
	err := s.pool.QueryRow(ctx, `
		SELECT player_id, xp, level, monthly_score, monthly_games, last_reset_month, top10_streak
		FROM player_progress WHERE player_id=$1`, playerID).
		Scan(&p.PlayerID, &p.XP, &p.Level, &p.MonthlyScore, &p.MonthlyGames, &p.LastResetMonth, &p.Top10Streak)
	if errors.Is(err, pgx.ErrNoRows) {
		// First play: start from a zeroed profile.
		return domain.PlayerProgress{PlayerID: playerID, Level: 1}, nil
	}
	if err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("read progress: %w", err)
	}
	return p, nil
}

func (s *Store) WritePlayerProgress(ctx context.Context, p domain.PlayerProgress) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_progress (player_id, xp, level, monthly_score, monthly_games, last_reset_month, top10_streak)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (player_id) DO UPDATE SET
		  xp=EXCLUDED.xp, level=EXCLUDED.level, monthly_score=EXCLUDED.monthly_score,
		  monthly_games=EXCLUDED.monthly_games, last_reset_month=EXCLUDED.last_reset_month,
		  top10_streak=EXCLUDED.top10_streak`,
		p.PlayerID, p.XP, p.Level, p.MonthlyScore, p.MonthlyGames, p.LastResetMonth, p.Top10Streak)
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

func (s *Store) ReadTop10ByMonthlyScore(ctx context.Context) ([]domain.RankedPlayer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT player_id, monthly_score FROM player_progress
		ORDER BY monthly_score DESC, player_id LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("read top 10: %w", err)
	}
	defer rows.Close()
	var ranked []domain.RankedPlayer
	for rows.Next() {
		var p domain.RankedPlayer
		if err := rows.Scan(&p.PlayerID, &p.MonthlyScore); err != nil {
			return nil, fmt.Errorf("scan ranked player: %w", err)
		}
		ranked = append(ranked, p)
	}
	return ranked, rows.Err()
}

// WriteMonthlyRankingSnapshot is write-once per (player, month); a repeated
// write keeps the first snapshot.
func (s *Store) WriteMonthlyRankingSnapshot(ctx context.Context, snap domain.MonthlyRankingSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO monthly_rankings (player_id, month, rank, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id, month) DO NOTHING`,
		snap.PlayerID, snap.Month, snap.Rank, snap.Score)
	if err != nil {
		return fmt.Errorf("write ranking snapshot: %w", err)
	}
	return nil
}

func (s *Store) IncrementTop10Streak(ctx context.Context, playerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE player_progress SET top10_streak = top10_streak + 1 WHERE player_id=$1`, playerID)
	if err != nil {
		return fmt.Errorf("increment streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProgressNotFound
	}
	return nil
}

func (s *Store) FindBadgesByLevel(ctx context.Context, level int) ([]domain.Badge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, level_required FROM badges
		WHERE level_required <= $1 ORDER BY level_required`, level)
	if err != nil {
		return nil, fmt.Errorf("find badges: %w", err)
	}
	defer rows.Close()
	var badges []domain.Badge
	for rows.Next() {
		var b domain.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.LevelRequired); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (s *Store) HasBadge(ctx context.Context, playerID, badgeID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM player_badges WHERE player_id=$1 AND badge_id=$2)`,
		playerID, badgeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check badge: %w", err)
	}
	return exists, nil
}

func (s *Store) GrantBadge(ctx context.Context, playerID, badgeID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_badges (player_id, badge_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, badge_id) DO NOTHING`,
		playerID, badgeID, s.clock())
	if err != nil {
		return fmt.Errorf("grant badge: %w", err)
	}
	return nil
}

func unmarshalStrings(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
