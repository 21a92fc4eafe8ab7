package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizwiz-service/internal/app"
	"quizwiz-service/internal/config"
	"quizwiz-service/internal/domain"
	"quizwiz-service/internal/infra/memory"
	"quizwiz-service/internal/infra/postgres"
	redisstore "quizwiz-service/internal/infra/redis"
	transport "quizwiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the score-attack server",
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
	setupLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, true); err != nil {
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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	settings := matchSettings(cfg)

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(map[string][]domain.Question{
		settings.Topic: sampleQuestions(),
	})
	if pool != nil {
		loader = postgres.NewQuestionLoader(pool)
	}

	poolTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var pools app.QuestionPoolRepository
	if redisClient != nil {
		pools = redisstore.NewQuestionPoolRepository(redisClient, loader, poolTTL)
	} else {
		pools = memory.NewQuestionPoolRepository(loader, poolTTL)
	}

	var store app.DocumentStore
	if redisClient != nil {
		store = redisstore.NewDocumentStore(redisClient, redisTTL, app.GamesCollection)
	} else {
		store = memory.NewDocumentStore()
	}

	var points app.PointsRepository = app.NewDocumentPoints(store)
	if pool != nil {
		points = postgres.NewPointsStore(pool)
	}

	service := app.NewScoreAttackService(store, points, app.NewQuestionBank(pools), settings)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Hijacked websocket connections outlive Shutdown; cancelling the base
	// context tears their controllers down.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Bool("redis", redisClient != nil).Bool("postgres", pool != nil).Msg("starting score-attack service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		cancelBase()
		return err
	})
	return g.Wait()
}

func matchSettings(cfg config.Config) app.MatchSettings {
	settings := app.DefaultMatchSettings()
	m := cfg.Match
	if m.Topic != "" {
		settings.Topic = m.Topic
	}
	if d, err := domain.ParseDifficulty(m.Difficulty); err == nil {
		settings.Difficulty = d
	} else if m.Difficulty != "" {
		log.Warn().Str("difficulty", m.Difficulty).Msg("unknown difficulty, using default")
	}
	if m.QuestionCount > 0 {
		settings.QuestionCount = m.QuestionCount
	}
	if m.CountdownSeconds > 0 {
		settings.CountdownTicks = m.CountdownSeconds
	}
	if m.RoundSeconds > 0 {
		settings.RoundTicks = m.RoundSeconds
	}
	if m.AbandonPenalty > 0 {
		settings.AbandonPenalty = m.AbandonPenalty
	}
	settings.RevealDelay = config.TTLDuration(m.RevealDelay, settings.RevealDelay)
	settings.WriteTimeout = config.TTLDuration(m.WriteTimeout, settings.WriteTimeout)
	return settings
}
