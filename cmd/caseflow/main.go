package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/agent"
	"github.com/verityai/caseflow/internal/chat"
	"github.com/verityai/caseflow/internal/completion"
	"github.com/verityai/caseflow/internal/config"
	"github.com/verityai/caseflow/internal/review"
	"github.com/verityai/caseflow/internal/server"
	"github.com/verityai/caseflow/internal/status"
	"github.com/verityai/caseflow/internal/store/postgres"
	redisstore "github.com/verityai/caseflow/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("CASEFLOW_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("CASEFLOW_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Agent catalog and keyword routing.
	registry := agent.NewRegistry()
	router := agent.NewRouter(registry, cfg.Chat.IntentThreshold)

	// Upstream completion client. Availability is checked but not required at
	// startup; the service may come up later.
	completer := completion.NewClient(cfg.Chat.UpstreamURL)
	if pingErr := completer.Ping(ctx); pingErr != nil {
		log.Warn().Err(pingErr).Msg("agent completion service unreachable")
	}

	// Chat orchestrator.
	orchestrator := chat.NewOrchestrator(registry, router, completer, store.Turns(), cfg.Chat.TurnTimeout)
	defer orchestrator.Shutdown()

	// Processing status tracker.
	tracker := status.NewTracker(store.Entities(), store.Steps())

	// Review room manager.
	rooms := review.NewManager(store.Entities(), store, orchestrator, pubsub, review.Config{
		HeartbeatInterval: cfg.Review.HeartbeatInterval,
		IdleTimeout:       cfg.Review.IdleTimeout,
		ActionTimeout:     cfg.Review.ActionTimeout,
	})
	defer rooms.Shutdown()

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Consume pipeline push notifications in the background.
	go func() {
		if runErr := rooms.Run(ctx); runErr != nil {
			log.Error().Err(runErr).Msg("pipeline subscriber error")
		}
	}()

	// Create HTTP server with all routes wired.
	srv := server.New(cfg, server.Deps{
		Chat:     orchestrator,
		Status:   tracker,
		Review:   rooms,
		Entities: store.Entities(),
	})

	// Start server in background goroutine.
	go func() {
		if startErr := srv.Start(); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
