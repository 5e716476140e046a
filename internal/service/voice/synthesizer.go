package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/zhouzirui/happymac/backend/internal/logging"
)

// Utterance is one request to vocalize a string.
type Utterance struct {
	Text     string
	Voice    Info
	HasVoice bool
	Lang     string
	Rate     float64
	Pitch    float64
	Volume   float64
}

// Engine plays utterances. Speak blocks until playback ends, fails, or ctx
// is cancelled.
type Engine interface {
	Speak(ctx context.Context, u Utterance) error
	Supported() bool
}

// Synthesizer drives an Engine as an idle/speaking state machine. At most
// one utterance is active: a new Speak preempts the current one.
type Synthesizer struct {
	engine   Engine
	registry *Registry
	logger   *slog.Logger

	mu         sync.Mutex
	speaking   bool
	cancel     context.CancelFunc
	generation uint64
	listeners  map[int]func(bool)
	nextID     int
	wg         sync.WaitGroup

	notifyMu sync.Mutex
}

// NewSynthesizer builds a synthesizer over engine. registry may be nil, in
// which case every utterance falls back to the en-US locale.
func NewSynthesizer(engine Engine, registry *Registry, logger *slog.Logger) *Synthesizer {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Synthesizer{
		engine:    engine,
		registry:  registry,
		logger:    logging.Module(logger, "voice.synth"),
		listeners: make(map[int]func(bool)),
	}
}

// Supported reports whether an engine is available.
func (s *Synthesizer) Supported() bool {
	return s.engine != nil && s.engine.Supported()
}

// IsSpeaking reports whether an utterance is in flight.
func (s *Synthesizer) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Registry exposes the voice registry used for selection.
func (s *Synthesizer) Registry() *Registry {
	return s.registry
}

// OnSpeakingChange registers fn to be called with the new flag after every
// transition. fn must not call Speak or Stop synchronously.
func (s *Synthesizer) OnSpeakingChange(fn func(bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Speak cancels any in-flight utterance and starts a new one. It never
// blocks on playback. Blank text still cancels, it just starts nothing.
func (s *Synthesizer) Speak(text string, rate, pitch float64) {
	if !s.Supported() {
		s.logger.Warn("speech synthesis not supported")
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.Stop()
		return
	}

	utterance := s.buildUtterance(text, rate, pitch)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.generation++
	gen := s.generation
	s.speaking = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.publish()

	go s.play(ctx, gen, utterance)
}

func (s *Synthesizer) buildUtterance(text string, rate, pitch float64) Utterance {
	u := Utterance{
		Text:   text,
		Rate:   rate,
		Pitch:  pitch,
		Volume: 1.0,
	}

	if v, ok := SelectVoice(s.registry.Voices()); ok {
		u.Voice = v
		u.HasVoice = true
		u.Lang = v.Lang
		s.logger.Debug("selected voice", slog.String("name", v.Name), slog.String("lang", v.Lang))
	} else {
		u.Lang = FallbackLang
		s.logger.Debug("no english voice found, forcing locale", slog.String("lang", FallbackLang))
	}
	return u
}

func (s *Synthesizer) play(ctx context.Context, gen uint64, u Utterance) {
	defer s.wg.Done()

	err := s.engine.Speak(ctx, u)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("speech synthesis error", slog.Any("err", err))
	}

	s.mu.Lock()
	current := s.generation == gen
	if current {
		s.speaking = false
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	s.mu.Unlock()

	if current {
		s.publish()
	}
}

// Stop cancels any in-flight utterance and clears the speaking flag before
// returning. Calling it while idle is a no-op apart from the notification.
func (s *Synthesizer) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	changed := s.speaking
	s.speaking = false
	s.mu.Unlock()

	if changed {
		s.publish()
	}
}

// Close stops playback and waits for the playback goroutine to exit.
func (s *Synthesizer) Close() {
	s.Stop()
	s.wg.Wait()
}

func (s *Synthesizer) publish() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	speaking := s.speaking
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(speaking)
	}
}
