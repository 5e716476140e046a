package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zhouzirui/happymac/backend/internal/config"
	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
)

var (
	// ErrClosed is returned by a Service after Close.
	ErrClosed = errors.New("ai service closed")
	// ErrDisabled is returned when the selected provider lacks credentials.
	ErrDisabled = errors.New("ai provider not configured")
)

// Service owns a text-generation provider and the persona it speaks for.
type Service struct {
	provider     Provider
	persona      persona.Persona
	prompts      *PersonaPromptManager
	historyLimit int
	logger       *slog.Logger
	pick         func(n int) int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewService builds the provider selected by cfg.
func NewService(ctx context.Context, cfg config.AIConfig, p persona.Persona, logger *slog.Logger) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: provider %s", ErrDisabled, cfg.Provider)
	}

	var (
		provider Provider
		err      error
	)
	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, cerr := cfg.NewChatModel(ctx)
		if cerr != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", cerr)
		}
		provider, err = NewArk(ctx, chatModel)
	case config.ProviderOpenAI:
		provider = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case config.ProviderOllama:
		provider, err = NewOllama(cfg.OllamaHost, cfg.OllamaModel, nil)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewServiceWithProvider(provider, p, cfg.HistoryLimit, logger), nil
}

// NewServiceWithProvider wraps an already constructed provider.
func NewServiceWithProvider(provider Provider, p persona.Persona, historyLimit int, logger *slog.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Service{
		provider:     provider,
		persona:      p,
		prompts:      NewPersonaPromptManager(),
		historyLimit: historyLimit,
		logger:       logging.Module(logger, "ai").With(slog.String("provider", provider.Name())),
		pick:         randomIndex,
	}
}

// Persona returns the persona the service speaks for.
func (s *Service) Persona() persona.Persona {
	return s.persona
}

// Close rejects new calls and waits for running ones to finish.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Service) acquire() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.wg.Add(1)
	return nil
}

// StreamChat streams a reply to messages through handlers. Errors that
// prevent the stream from starting are returned; failures after that are
// reported through OnError. Exactly one of OnDone or OnError fires when
// nil is returned.
func (s *Service) StreamChat(ctx context.Context, messages []chat.Message, handlers chat.StreamHandlers) error {
	if err := chat.Validate(messages); err != nil {
		return err
	}
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.wg.Done()

	history := s.trimHistory(messages)
	system := s.prompts.BuildSystemPrompt(s.persona)

	chunks := 0
	for chunk, err := range s.provider.Stream(ctx, system, history) {
		if err != nil {
			s.logger.Error("stream failed", slog.Any("err", err), slog.Int("chunks", chunks))
			handlers.Fail(err.Error())
			return nil
		}
		chunks++
		handlers.Delta(chunk)
	}

	if err := ctx.Err(); err != nil {
		handlers.Fail(err.Error())
		return nil
	}

	s.logger.Debug("stream finished", slog.Int("chunks", chunks), slog.Int("history", len(history)))
	handlers.Done()
	return nil
}

func (s *Service) trimHistory(messages []chat.Message) []chat.Message {
	if len(messages) <= s.historyLimit {
		return chat.Clone(messages)
	}
	return chat.Clone(messages[len(messages)-s.historyLimit:])
}
