package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"ai-interview-session-service/internal/analysis"
	"ai-interview-session-service/internal/api/httpapi"
	"ai-interview-session-service/internal/config"
	"ai-interview-session-service/internal/events"
	"ai-interview-session-service/internal/observability"
	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/provision"
	"ai-interview-session-service/internal/realtime"
	"ai-interview-session-service/internal/session"
	"ai-interview-session-service/internal/store"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg := config.Load()
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logging.Init(logCfg)
	log := logging.WithComponent("main")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("opening assessment store")
	}

	publisher := events.NewPublisher(cfg.Kafka)
	defer publisher.Close()

	chatClient := openai.NewClient(cfg.Realtime.APIKey)
	analyzer := analysis.NewAnalyzer(chatClient, cfg.Analysis.Model, cfg.Analysis.MaxAttempts, cfg.Analysis.Backoff)
	submitter := analysis.NewSubmitter(analyzer, st)

	dial := func(ctx context.Context, opts realtime.Options) (realtime.Conn, error) {
		opts.BaseURL = cfg.Realtime.BaseURL
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Realtime.ConnectTimeout)
		defer cancel()
		return realtime.Dial(dialCtx, opts)
	}

	manager := session.NewManager(session.ManagerDeps{
		Tokens:    provision.NewStaticSource(cfg.Realtime, cfg.Interview),
		Dial:      dial,
		Submitter: submitter,
		Publisher: publisher,
	})

	obs := observability.NewServer(":" + cfg.Service.ObservabilityPort)
	obs.Start()

	api := httpapi.New(manager, st)
	server := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           api.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("interview session service started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	manager.Shutdown(ctx)
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("observability shutdown")
	}
}
