package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	pgstore "quiz-attempt-service/internal/infra/postgres"
	redisstore "quiz-attempt-service/internal/infra/redis"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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
	livenessTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var attempts app.AttemptRepository
	if redisClient != nil {
		attempts = redisstore.NewAttemptStore(redisClient, livenessTTL)
	} else {
		attempts = memory.NewAttemptStore()
	}

	var sink app.SubmissionSink = logSink{log: log}
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		sink = pgstore.NewSubmissionStore(db)
	}

	service := app.NewAttemptService(attempts, quizRepo, sink, app.SystemClock(), log)
	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting attempt service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// logSink is the default persistence sink when no Postgres is configured:
// finished attempts are logged, matching the fire-and-forget contract.
type logSink struct {
	log *zap.Logger
}

func (s logSink) Record(_ context.Context, submission domain.Submission) error {
	s.log.Info("submission received",
		zap.String("quizId", submission.QuizID),
		zap.String("userId", submission.UserID),
		zap.Int("totalScore", submission.TotalScore),
		zap.Int("maxScore", submission.MaxScore),
		zap.String("reason", string(submission.Reason)),
	)
	return nil
}

// sampleQuizzes seeds the static loader for demo runs without a database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"biology-101": {
			ID:          "biology-101",
			Title:       "Introduction to Biology",
			Description: "Test your knowledge of basic biology concepts",
			TimeLimit:   30,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is the powerhouse of the cell?",
					Type: domain.MultipleChoice,
					Choices: []domain.Choice{
						{ID: "a1", Text: "Mitochondria", Correct: true},
						{ID: "a2", Text: "Nucleus", Correct: false},
						{ID: "a3", Text: "Ribosome", Correct: false},
						{ID: "a4", Text: "Golgi Apparatus", Correct: false},
					},
					Explanation: "Mitochondria generate most of the cell's supply of ATP, used as a source of chemical energy.",
					Points:      1,
				},
				{
					ID:   "q2",
					Text: "DNA stands for:",
					Type: domain.MultipleChoice,
					Choices: []domain.Choice{
						{ID: "a1", Text: "Deoxyribonucleic Acid", Correct: true},
						{ID: "a2", Text: "Diribonucleic Acid", Correct: false},
						{ID: "a3", Text: "Deoxyribose Nucleic Acid", Correct: false},
						{ID: "a4", Text: "Dinucleotide Acid", Correct: false},
					},
					Explanation: "DNA carries the genetic instructions for development, functioning, growth and reproduction.",
					Points:      1,
				},
				{
					ID:   "q3",
					Text: "Photosynthesis occurs in which part of the plant cell?",
					Type: domain.MultipleChoice,
					Choices: []domain.Choice{
						{ID: "a1", Text: "Chloroplast", Correct: true},
						{ID: "a2", Text: "Mitochondria", Correct: false},
						{ID: "a3", Text: "Nucleus", Correct: false},
						{ID: "a4", Text: "Cell Wall", Correct: false},
					},
					Explanation: "Chloroplasts conduct photosynthesis, converting sunlight into chemical energy.",
					Points:      1,
				},
				{
					ID:   "q4",
					Text: "All living organisms are made up of cells.",
					Type: domain.TrueFalse,
					Choices: []domain.Choice{
						{ID: "a1", Text: "True", Correct: true},
						{ID: "a2", Text: "False", Correct: false},
					},
					Explanation: "Cell theory states that all living organisms are composed of cells.",
					Points:      1,
				},
				{
					ID:          "q5",
					Text:        "The process by which plants make food is called ________.",
					Type:        domain.FillBlank,
					Answer:      "photosynthesis",
					Explanation: "Photosynthesis turns sunlight into chemical energy.",
					Points:      2,
				},
			},
		},
	}
}
