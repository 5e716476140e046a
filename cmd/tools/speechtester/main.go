// Command speechtester exercises the Volcengine speech clients from the
// command line: transcribe a file, synthesize text, or list the catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/zhouzirui/happymac/backend/internal/client"
	"github.com/zhouzirui/happymac/backend/internal/config"
	"github.com/zhouzirui/happymac/backend/internal/logging"
	speechmodel "github.com/zhouzirui/happymac/backend/internal/model/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
)

type options struct {
	mode      string
	audioPath string
	text      string
	out       string
	format    string
	lang      string
	voice     string
	session   string
	play      bool
	timeout   time.Duration
}

func main() {
	var opts options
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.StringVarP(&opts.mode, "mode", "m", "", "Mode: asr, tts or voices")
	cli.StringVar(&opts.audioPath, "audio", "", "Input audio file for asr")
	cli.StringVarP(&opts.text, "text", "t", "", "Text to synthesize for tts")
	cli.StringVarP(&opts.out, "out", "o", "", "Output file for tts (default tts-<unix>.<format>)")
	cli.StringVar(&opts.format, "format", "", "Audio format (asr input, tts output)")
	cli.StringVar(&opts.lang, "lang", "", "Language code, defaults to the configured one")
	cli.StringVar(&opts.voice, "voice", "", "TTS voice, defaults to the selected catalog voice")
	cli.StringVar(&opts.session, "session", "", "Session id, generated when empty")
	cli.BoolVar(&opts.play, "play", false, "Play synthesized audio on the local speaker")
	cli.DurationVar(&opts.timeout, "timeout", 45*time.Second, "Request timeout")
	cli.Parse()

	logger := logging.New(os.Stderr, *logLevel)

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warn("env file not loaded, using process environment", slog.Any("err", err))
	}

	if err := run(logger, opts); err != nil {
		logger.Error("speechtester failed", slog.String("mode", opts.mode), slog.Any("err", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, err := speech.NewService(cfg.Speech.Model(), logger)
	if err != nil {
		return err
	}

	if opts.session == "" {
		opts.session = "manual-" + uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	switch opts.mode {
	case "voices":
		return listVoices(ctx, svc)
	case "asr":
		if !svc.Enabled() {
			return speech.ErrMissingCredentials
		}
		return runASR(ctx, logger, svc, cfg, opts)
	case "tts":
		if !svc.Enabled() {
			return speech.ErrMissingCredentials
		}
		return runTTS(ctx, logger, svc, cfg, opts)
	default:
		cli.Usage()
		return errors.New("choose --mode asr, tts or voices")
	}
}

func listVoices(ctx context.Context, svc *speech.Service) error {
	voices, err := svc.Voices(ctx)
	if err != nil {
		return err
	}
	selected, ok := voice.SelectVoice(voices)
	for _, v := range voices {
		mark := " "
		if ok && v.ID == selected.ID {
			mark = "*"
		}
		fmt.Printf("%s %-40s %-20s %s\n", mark, v.ID, v.Name, v.Lang)
	}
	return nil
}

func runASR(ctx context.Context, logger *slog.Logger, svc *speech.Service, cfg *config.Config, opts options) error {
	if opts.audioPath == "" {
		return errors.New("asr needs --audio")
	}
	audio, err := os.ReadFile(opts.audioPath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	format := opts.format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.audioPath)), ".")
		if format == "" {
			format = "wav"
		}
	}
	lang := opts.lang
	if lang == "" {
		lang = cfg.Speech.ASRLanguage
	}

	logger.Info("transcribing",
		slog.String("session", opts.session),
		slog.String("format", format),
		slog.String("lang", lang),
		slog.Int("bytes", len(audio)),
	)

	resp, err := svc.TranscribeBuffer(ctx, opts.session, audio, format, lang)
	if err != nil {
		return err
	}

	logger.Info("transcribed",
		slog.Float64("confidence", resp.Confidence),
		slog.Int64("duration_ms", resp.Duration),
	)
	fmt.Println(resp.Text)
	return nil
}

func runTTS(ctx context.Context, logger *slog.Logger, svc *speech.Service, cfg *config.Config, opts options) error {
	text := strings.TrimSpace(opts.text)
	if text == "" {
		return errors.New("tts needs --text")
	}

	req := &speechmodel.TTSRequest{
		SessionID: opts.session,
		Text:      text,
		Voice:     opts.voice,
		Speed:     float32(cfg.Voice.Rate),
		Pitch:     float32(cfg.Voice.Pitch),
		Format:    opts.format,
		Language:  opts.lang,
	}
	if req.Format == "" {
		req.Format = "mp3"
	}
	if req.Voice == "" {
		voices, _ := svc.Voices(ctx)
		if v, ok := voice.SelectVoice(voices); ok {
			req.Voice, req.Language = v.ID, v.Lang
		}
	}
	if req.Language == "" {
		req.Language = "en-US"
	}

	logger.Info("synthesizing",
		slog.String("session", opts.session),
		slog.String("voice", req.Voice),
		slog.String("format", req.Format),
	)

	resp, err := svc.SynthesizeSpeech(ctx, req)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = fmt.Sprintf("tts-%d.%s", time.Now().Unix(), resp.Format)
	}
	if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	logger.Info("wrote audio", slog.String("file", out), slog.Int64("duration_ms", resp.Duration))

	if opts.play {
		if err := client.NewPlayer(0).Play(ctx, resp); err != nil {
			return fmt.Errorf("play: %w", err)
		}
	}
	return nil
}
