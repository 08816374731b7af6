package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-arena-service/internal/domain"
)

// QuizBackend is the slice of the persistence layer the cache wraps.
type QuizBackend interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error)
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	IncrementQuizPlayStats(ctx context.Context, quizID string, newAverage float64, newTotalPlays int) error
}

// QuizCache caches quiz configs and question sets with TTL to avoid
// repeated store hits on every session start. Writes to play stats
// invalidate the cached config so running averages stay fresh.
type QuizCache struct {
	backend QuizBackend
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.QuizConfig
	questions []domain.Question
	expiresAt time.Time
}

func NewQuizCache(backend QuizBackend, ttl time.Duration) *QuizCache {
	return &QuizCache{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedQuiz),
	}
}

func (c *QuizCache) LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error) {
	entry, err := c.load(ctx, quizID)
	if err != nil {
		return domain.QuizConfig{}, err
	}
	return entry.quiz, nil
}

func (c *QuizCache) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	entry, err := c.load(ctx, quizID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Question, len(entry.questions))
	copy(out, entry.questions)
	return out, nil
}

// IncrementQuizPlayStats writes through and drops the cached entry.
func (c *QuizCache) IncrementQuizPlayStats(ctx context.Context, quizID string, newAverage float64, newTotalPlays int) error {
	if err := c.backend.IncrementQuizPlayStats(ctx, quizID, newAverage, newTotalPlays); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
	return nil
}

func (c *QuizCache) load(ctx context.Context, quizID string) (cachedQuiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry, nil
		}
		c.mu.RUnlock()

		quiz, err := c.backend.LoadQuiz(ctx, quizID)
		if err != nil {
			return cachedQuiz{}, err
		}
		questions, err := c.backend.LoadQuestions(ctx, quizID)
		if err != nil {
			return cachedQuiz{}, err
		}

		entry := cachedQuiz{
			quiz:      quiz,
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Lock()
		c.cache[quizID] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return cachedQuiz{}, err
	}
	return result.(cachedQuiz), nil
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
