package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-arena-service/internal/domain"
)

// Store is an in-memory implementation of engine.Store, used for tests and
// for running the server without Postgres. All operations take one lock, so
// the duel attach is naturally atomic.
type Store struct {
	clock func() time.Time

	mu           sync.RWMutex
	quizzes      map[string]domain.QuizConfig
	questions    map[string][]domain.Question
	sessions     map[string]*domain.QuizSession
	duels        map[string]*domain.Duel
	progress     map[string]*domain.PlayerProgress
	snapshots    map[string]domain.MonthlyRankingSnapshot
	badges       []domain.Badge
	playerBadges map[string]map[string]bool
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(clock func() time.Time) *Store {
	return &Store{
		clock:        clock,
		quizzes:      make(map[string]domain.QuizConfig),
		questions:    make(map[string][]domain.Question),
		sessions:     make(map[string]*domain.QuizSession),
		duels:        make(map[string]*domain.Duel),
		progress:     make(map[string]*domain.PlayerProgress),
		snapshots:    make(map[string]domain.MonthlyRankingSnapshot),
		playerBadges: make(map[string]map[string]bool),
	}
}

// SeedQuiz registers a quiz and its questions.
func (s *Store) SeedQuiz(cfg domain.QuizConfig, questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[cfg.ID] = cfg
	s.questions[cfg.ID] = questions
}

// SeedDuel registers a pending duel.
func (s *Store) SeedDuel(duel domain.Duel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if duel.Status == "" {
		duel.Status = domain.DuelPending
	}
	copied := duel
	s.duels[duel.ID] = &copied
}

// SeedProgress registers a player profile.
func (s *Store) SeedProgress(progress domain.PlayerProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := progress
	s.progress[progress.PlayerID] = &copied
}

// SeedBadges registers the badge catalog.
func (s *Store) SeedBadges(badges []domain.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges = append([]domain.Badge(nil), badges...)
}

func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.QuizConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.quizzes[quizID]
	if !ok {
		return domain.QuizConfig{}, domain.ErrQuizNotFound
	}
	return cfg, nil
}

func (s *Store) LoadQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	questions := s.questions[quizID]
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out, nil
}

func (s *Store) IncrementQuizPlayStats(_ context.Context, quizID string, newAverage float64, newTotalPlays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	cfg.AverageScore = newAverage
	cfg.TotalPlays = newTotalPlays
	s.quizzes[quizID] = cfg
	return nil
}

func (s *Store) CreateSession(_ context.Context, quizID, playerID string, mode domain.PlayMode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return "", domain.ErrQuizNotFound
	}
	id := uuid.NewString()
	s.sessions[id] = &domain.QuizSession{
		ID:       id,
		QuizID:   quizID,
		PlayerID: playerID,
		Mode:     mode,
	}
	return id, nil
}

func (s *Store) AppendAnswer(_ context.Context, sessionID string, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Answers = append(session.Answers, rec)
	return nil
}

func (s *Store) CompleteSession(_ context.Context, sessionID string, result domain.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.RawScore = result.RawScore
	session.Score = result.Score
	session.Accuracy = result.Accuracy
	session.ElapsedSeconds = result.ElapsedSeconds
	session.CorrectCount = result.CorrectCount
	session.TotalQuestions = result.TotalQuestions
	session.Completed = true
	session.CompletedAt = s.clock()
	return nil
}

func (s *Store) ReadSession(_ context.Context, sessionID string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	copied := *session
	copied.Answers = append([]domain.AnswerRecord(nil), session.Answers...)
	return copied, nil
}

func (s *Store) ReadDuel(_ context.Context, duelID string) (domain.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duel, ok := s.duels[duelID]
	if !ok {
		return domain.Duel{}, domain.ErrDuelNotFound
	}
	return *duel, nil
}

// AttachDuelSession sets the caller's slot under the store lock and returns
// the duel as it stands after the write, other slot included.
func (s *Store) AttachDuelSession(_ context.Context, duelID, playerID, sessionID string) (domain.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	duel, ok := s.duels[duelID]
	if !ok {
		return domain.Duel{}, domain.ErrDuelNotFound
	}
	switch playerID {
	case duel.HostID:
		if duel.HostSessionID == "" {
			duel.HostSessionID = sessionID
		}
	case duel.GuestID:
		if duel.GuestSessionID == "" {
			duel.GuestSessionID = sessionID
		}
	default:
		return domain.Duel{}, domain.ErrNotDuelParticipant
	}
	if duel.Status == domain.DuelPending {
		duel.Status = domain.DuelInProgress
	}
	return *duel, nil
}

func (s *Store) FinalizeDuel(_ context.Context, duelID, winnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	duel, ok := s.duels[duelID]
	if !ok {
		return domain.ErrDuelNotFound
	}
	if duel.Status == domain.DuelCompleted {
		// Already finalized by the other side; losing the race is fine.
		return nil
	}
	duel.WinnerID = winnerID
	duel.Status = domain.DuelCompleted
	duel.CompletedAt = s.clock()
	return nil
}

func (s *Store) ReadPlayerProgress(_ context.Context, playerID string) (domain.PlayerProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.progress[playerID]
	if !ok {
		// First play: start from a zeroed profile.
		return domain.PlayerProgress{PlayerID: playerID, Level: 1}, nil
	}
	return *progress, nil
}

func (s *Store) WritePlayerProgress(_ context.Context, progress domain.PlayerProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := progress
	s.progress[progress.PlayerID] = &copied
	return nil
}

func (s *Store) ReadTop10ByMonthlyScore(_ context.Context) ([]domain.RankedPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ranked := make([]domain.RankedPlayer, 0, len(s.progress))
	for _, p := range s.progress {
		ranked = append(ranked, domain.RankedPlayer{PlayerID: p.PlayerID, MonthlyScore: p.MonthlyScore})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MonthlyScore != ranked[j].MonthlyScore {
			return ranked[i].MonthlyScore > ranked[j].MonthlyScore
		}
		return ranked[i].PlayerID < ranked[j].PlayerID
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	return ranked, nil
}

func (s *Store) WriteMonthlyRankingSnapshot(_ context.Context, snap domain.MonthlyRankingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snap.PlayerID + "|" + snap.Month
	// Write-once per (player, month): keep the first snapshot.
	if _, ok := s.snapshots[key]; ok {
		return nil
	}
	s.snapshots[key] = snap
	return nil
}

// Snapshot returns the frozen ranking for a (player, month) pair, if any.
func (s *Store) Snapshot(playerID, month string) (domain.MonthlyRankingSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[playerID+"|"+month]
	return snap, ok
}

func (s *Store) IncrementTop10Streak(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	progress, ok := s.progress[playerID]
	if !ok {
		return domain.ErrProgressNotFound
	}
	progress.Top10Streak++
	return nil
}

func (s *Store) FindBadgesByLevel(_ context.Context, level int) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Badge
	for _, badge := range s.badges {
		if badge.LevelRequired <= level {
			out = append(out, badge)
		}
	}
	return out, nil
}

func (s *Store) HasBadge(_ context.Context, playerID, badgeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerBadges[playerID][badgeID], nil
}

func (s *Store) GrantBadge(_ context.Context, playerID, badgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, badge := range s.badges {
		if badge.ID == badgeID {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrBadgeNotFound
	}
	if s.playerBadges[playerID] == nil {
		s.playerBadges[playerID] = make(map[string]bool)
	}
	s.playerBadges[playerID][badgeID] = true
	return nil
}

// BadgeCount returns how many badges a player holds (test helper).
func (s *Store) BadgeCount(playerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.playerBadges[playerID])
}
