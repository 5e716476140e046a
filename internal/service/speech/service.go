package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
)

// Service fronts the Volcengine speech clients.
type Service struct {
	config *speech.SpeechConfig
	tts    *VolcengineTTSClient
	asr    *VolcengineASRClient
	voices []voice.Info
	logger *slog.Logger
}

// NewService builds the speech service. The voice catalog comes from
// config.Voices when set, the built-in list otherwise.
func NewService(config *speech.SpeechConfig, logger *slog.Logger) (*Service, error) {
	voices, err := ParseCatalog(config.Voices)
	if err != nil {
		return nil, fmt.Errorf("invalid SPEECH_VOICES: %w", err)
	}
	if len(voices) == 0 {
		voices = BuiltinVoices()
	}

	return &Service{
		config: config,
		tts:    NewVolcengineTTSClient(config, logger),
		asr:    NewVolcengineASRClient(config, logger),
		voices: voices,
		logger: logging.Module(logger, "speech"),
	}, nil
}

// Enabled reports whether credentials are configured.
func (s *Service) Enabled() bool {
	_, _, err := resolveCredentials(s.config)
	return err == nil
}

// Voices implements voice.Source.
func (s *Service) Voices(context.Context) ([]voice.Info, error) {
	return append([]voice.Info(nil), s.voices...), nil
}

func (s *Service) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(s.config.Timeout)*time.Second)
}

// SynthesizeSpeech renders req to audio.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	started := time.Now()
	resp, err := s.tts.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("synthesized",
		slog.String("voice", resp.Voice),
		slog.Int("bytes", len(resp.AudioData)),
		slog.Duration("took", time.Since(started)),
	)
	return resp, nil
}

// TranscribeBuffer transcribes a complete audio buffer.
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	return s.asr.Transcribe(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audio),
		Format:    format,
		Language:  language,
	})
}
