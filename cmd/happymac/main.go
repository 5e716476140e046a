// Command happymac runs the Happy Mac chat widget in the terminal against a
// running backend.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/zhouzirui/happymac/backend/internal/client"
	"github.com/zhouzirui/happymac/backend/internal/config"
	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
	"github.com/zhouzirui/happymac/backend/internal/service/session"
	"github.com/zhouzirui/happymac/backend/internal/service/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
	"github.com/zhouzirui/happymac/backend/internal/ui/app"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logFile := cli.StringP("log", "l", "", "Write logs to this file (the terminal belongs to the widget)")
	server := cli.StringP("server", "s", "", "Backend URL (overrides HAPPYMAC_SERVER)")
	mute := cli.Bool("mute", false, "Start with voice output disabled")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	if err := run(*logFile, *server, *mute); err != nil {
		fmt.Fprintln(os.Stderr, "happymac:", err)
		os.Exit(1)
	}
}

func run(logFile, server string, mute bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.New(logOut, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if server == "" {
		server = cfg.Client.ServerURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := client.New(server, nil, logger)

	p := loadPersona(ctx, backend, logger)

	registry := voice.NewRegistry()
	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := registry.Refresh(refreshCtx, backend); err != nil {
			logger.Warn("voice catalog unavailable", slog.Any("err", err))
		}
	}()

	synth := voice.NewSynthesizer(speech.NewVoiceEngine(backend, client.NewPlayer(0)), registry, logger)
	defer synth.Close()

	voiceEnabled := cfg.Voice.Enabled && !mute
	bridge := &app.Bridge{}
	controller := session.NewController(backend, synth, bridge, session.Options{
		StripEmoji:   cfg.Voice.StripEmoji,
		Rate:         cfg.Voice.Rate,
		Pitch:        cfg.Voice.Pitch,
		VoiceEnabled: &voiceEnabled,
		Logger:       logger,
	})
	unsubscribe := controller.Subscribe(bridge.OnState)
	defer unsubscribe()
	stopSpeaking := synth.OnSpeakingChange(func(bool) { controller.Refresh() })
	defer stopSpeaking()

	program := tea.NewProgram(app.New(ctx, controller, p), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program)

	logger.Info("widget started", slog.String("server", server))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run widget: %w", err)
	}
	return nil
}

func loadPersona(ctx context.Context, backend *client.Client, logger *slog.Logger) persona.Persona {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := backend.Persona(ctx)
	if err != nil {
		logger.Warn("persona unavailable, using built-in", slog.Any("err", err))
		return persona.Default()
	}
	return p
}
