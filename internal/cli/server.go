package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/config"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
	pgstore "exam-session-service/internal/infra/postgres"
	redisstore "exam-session-service/internal/infra/redis"
	transport "exam-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the assessment session server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.AssessmentLoader = memory.NewStaticAssessmentLoader(sampleAssessments())
	var roster app.Roster = memory.NewStaticRoster(sampleRoster())
	if pool != nil {
		loader = pgstore.NewAssessmentLoader(pool)
		roster = pgstore.NewRoster(pool)
	}

	cacheTTL := config.TTLDuration(cfg.Assessment.CacheTTL, 10*time.Minute)
	var assessments app.AssessmentRepository
	if redisClient != nil {
		assessments = redisstore.NewAssessmentRepository(redisClient, loader, cacheTTL)
	} else {
		assessments = memory.NewAssessmentRepository(loader, cacheTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient)
	} else {
		store = memory.NewSessionStore()
	}

	service := app.NewSessionService(store, assessments, roster,
		app.WithLeaderboardLimit(cfg.Leaderboard.Limit))
	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam session service on :%s", finalPort)
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

// sampleAssessments provides a minimal assessment so the server runs without
// Postgres; swap the loader for the Postgres-backed one in production.
func sampleAssessments() map[string]domain.Assessment {
	now := time.Now()
	return map[string]domain.Assessment{
		"demo-1": {
			ID:                  "demo-1",
			Title:               "Demo Assessment",
			StartTime:           now,
			EndTime:             now.Add(2 * time.Hour),
			DurationSec:         3600,
			StrictMode:          false,
			SubmissionWindowMin: 10,
			TotalQuestions:      2,
			MarksPerCorrect:     4,
			MarksPerWrong:       1,
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       domain.LocalizedText{"en": "What is 2 + 2?", "hi": "2 + 2 kitna hota hai?"},
					Options:      []domain.LocalizedText{{"en": "3"}, {"en": "4"}, {"en": "5"}, {"en": "6"}},
					CorrectIndex: 1,
				},
				{
					ID:           "q2",
					Prompt:       domain.LocalizedText{"en": "What is 3 * 3?", "hi": "3 * 3 kitna hota hai?"},
					Options:      []domain.LocalizedText{{"en": "6"}, {"en": "7"}, {"en": "9"}, {"en": "12"}},
					CorrectIndex: 2,
				},
			},
		},
	}
}

func sampleRoster() map[string][]domain.Participant {
	return map[string][]domain.Participant{
		"demo-1": {
			{ID: "u1", DisplayName: "Alice"},
			{ID: "u2", DisplayName: "Bob"},
		},
	}
}
