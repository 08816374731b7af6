package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/engine"
)

// QuizCache caches quiz content in Redis and falls back to a backing store
// on cache miss. Content is stored as:
//
//	SET quiz:{quizID}:config     {QuizConfig JSON}
//	SET quiz:{quizID}:questions  {[]Question JSON}
//
// Play-stat writes go through to the backend and drop the cached config so
// running averages stay fresh.
type QuizCache struct {
	client  *redis.Client
	backend engine.QuizStore
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
}

func NewQuizCache(client *redis.Client, backend engine.QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error) {
	raw, err := c.client.Get(ctx, c.configKey(quizID)).Bytes()
	if err == nil {
		var cfg domain.QuizConfig
		if err := json.Unmarshal(raw, &cfg); err == nil {
			return cfg, nil
		}
	}

	result, err, _ := c.sf.Do("config:"+quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := c.client.Get(ctx, c.configKey(quizID)).Bytes()
		if err == nil {
			var cfg domain.QuizConfig
			if err := json.Unmarshal(raw, &cfg); err == nil {
				return cfg, nil
			}
		}
		cfg, err := c.backend.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizConfig{}, err
		}
		c.set(ctx, c.configKey(quizID), cfg)
		return cfg, nil
	})
	if err != nil {
		return domain.QuizConfig{}, err
	}
	return result.(domain.QuizConfig), nil
}

func (c *QuizCache) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	raw, err := c.client.Get(ctx, c.questionsKey(quizID)).Bytes()
	if err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err == nil && len(questions) > 0 {
			return questions, nil
		}
	}

	result, err, _ := c.sf.Do("questions:"+quizID, func() (interface{}, error) {
		raw, err := c.client.Get(ctx, c.questionsKey(quizID)).Bytes()
		if err == nil {
			var questions []domain.Question
			if err := json.Unmarshal(raw, &questions); err == nil && len(questions) > 0 {
				return questions, nil
			}
		}
		questions, err := c.backend.LoadQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		c.set(ctx, c.questionsKey(quizID), questions)
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuizCache) IncrementQuizPlayStats(ctx context.Context, quizID string, newAverage float64, newTotalPlays int) error {
	if err := c.backend.IncrementQuizPlayStats(ctx, quizID, newAverage, newTotalPlays); err != nil {
		return err
	}
	_ = c.client.Del(ctx, c.configKey(quizID)).Err()
	return nil
}

func (c *QuizCache) set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	// best-effort: a failed cache fill just means the next load hits the backend
	_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
}

func (c *QuizCache) configKey(quizID string) string {
	return "quiz:" + quizID + ":config"
}

func (c *QuizCache) questionsKey(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
