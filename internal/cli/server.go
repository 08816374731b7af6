package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-arena-service/internal/config"
	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/engine"
	"quiz-arena-service/internal/infra/memory"
	pgstore "quiz-arena-service/internal/infra/postgres"
	redisinfra "quiz-arena-service/internal/infra/redis"
	transport "quiz-arena-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz arena server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	store, err := buildStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}

	wsHandler := transport.NewWSHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/play", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz arena service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// arenaStore lets the wiring below swap individual concerns (cached quiz
// loads, mirrored leaderboard) onto the base persistence layer.
type arenaStore struct {
	engine.QuizStore
	engine.SessionStore
	engine.DuelStore
	engine.ProgressStore
	engine.BadgeStore
}

func buildStore(ctx context.Context, cfg config.Config, redisClient *redis.Client) (engine.Store, error) {
	quizTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)

	if cfg.Postgres.URL == "" {
		// Demo mode: in-memory store seeded with sample content.
		base := memory.NewStore()
		seedSampleContent(base)
		store := &arenaStore{
			QuizStore:     memory.NewQuizCache(base, quizTTL),
			SessionStore:  base,
			DuelStore:     base,
			ProgressStore: base,
			BadgeStore:    base,
		}
		if redisClient != nil {
			store.QuizStore = redisinfra.NewQuizCache(redisClient, base, quizTTL)
			store.ProgressStore = redisinfra.NewProgressMirror(redisClient, base, leaderboardTTL(cfg))
		}
		return store, nil
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	base := pgstore.NewStore(pool)
	store := &arenaStore{
		QuizStore:     memory.NewQuizCache(base, quizTTL),
		SessionStore:  base,
		DuelStore:     base,
		ProgressStore: base,
		BadgeStore:    base,
	}
	if redisClient != nil {
		store.QuizStore = redisinfra.NewQuizCache(redisClient, base, quizTTL)
		store.ProgressStore = redisinfra.NewProgressMirror(redisClient, base, leaderboardTTL(cfg))
	}
	return store, nil
}

func leaderboardTTL(cfg config.Config) time.Duration {
	// Two months keeps the outgoing month's scores readable through the
	// rollover snapshot window.
	return config.TTLDuration(cfg.Redis.LeaderboardTTL, 62*24*time.Hour)
}

// seedSampleContent provides minimal demo data; swap in Postgres for
// production content.
func seedSampleContent(store *memory.Store) {
	store.SeedQuiz(domain.QuizConfig{
		ID:               "world-capitals",
		Title:            "World Capitals",
		TimeLimitSeconds: 30,
		IsPublic:         true,
	}, []domain.Question{
		{
			ID:      "q1",
			Type:    domain.QuestionMultipleChoice,
			Prompt:  "What is the capital of Peru?",
			Options: []string{"Lima", "Quito", "Bogota", "Santiago"},
			Answer:  "Lima",
			Points:  100,
		},
		{
			ID:             "q2",
			Type:           domain.QuestionFreeText,
			Prompt:         "What is the capital of Norway?",
			Answer:         "Oslo",
			AnswerVariants: []string{"Oslo, Norway"},
			Points:         100,
			Position:       1,
		},
	})
	store.SeedBadges([]domain.Badge{
		{ID: "rookie", Name: "Rookie", LevelRequired: 1},
		{ID: "scholar", Name: "Scholar", LevelRequired: 5},
		{ID: "master", Name: "Quiz Master", LevelRequired: 10},
	})
}
