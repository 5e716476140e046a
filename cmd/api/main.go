package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/zhouzirui/happymac/backend/internal/config"
	"github.com/zhouzirui/happymac/backend/internal/handler"
	"github.com/zhouzirui/happymac/backend/internal/handler/live"
	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
	"github.com/zhouzirui/happymac/backend/internal/service/ai"
	"github.com/zhouzirui/happymac/backend/internal/service/speech"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides LOG_LEVEL)")
	cli.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("err", err))
		os.Exit(1)
	}

	level := cfg.Server.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger := logging.New(os.Stdout, level)
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Warn("env file not loaded, using process environment", slog.String("file", *envFile), slog.Any("err", envErr))
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	scrlk := persona.DefaultOf(personaStore)

	deps := handler.Deps{
		Personas: personaStore,
		Live: live.Options{
			Rate:         cfg.Voice.Rate,
			Pitch:        cfg.Voice.Pitch,
			StripEmoji:   cfg.Voice.StripEmoji,
			VoiceEnabled: cfg.Voice.Enabled,
			Lang:         cfg.Speech.ASRLanguage,
		},
		Logger: logger,
	}

	aiService, err := ai.NewService(ctx, cfg.AI, scrlk, logger)
	if err != nil {
		logger.Warn("continuing without AI", slog.String("provider", cfg.AI.Provider), slog.Any("err", err))
	} else {
		defer aiService.Close()
		deps.Chat = aiService
		logger.Info("ai service ready", slog.String("provider", cfg.AI.Provider))
	}

	speechService, err := speech.NewService(cfg.Speech.Model(), logger)
	if err != nil {
		logger.Warn("continuing without speech", slog.Any("err", err))
	} else {
		deps.Speech = speechService
		if !cfg.Speech.Enabled {
			logger.Info("speech credentials not configured, serving voice catalog only")
		}
	}

	startServer(ctx, cfg.Server, handler.NewRouter(deps), logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Happy Mac backend listening", slog.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", slog.Any("err", err))
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
