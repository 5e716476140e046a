package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zhouzirui/happymac/backend/internal/logging"
)

const unsupportedMessage = "Speech recognition is not supported"

var (
	// ErrNotListening is returned when audio arrives outside a listening session.
	ErrNotListening = errors.New("recognizer is not listening")
	// ErrPermissionDenied is returned by transcribers that cannot access the microphone.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrUnsupported is returned when no transcriber is available.
	ErrUnsupported = errors.New(unsupportedMessage)
)

// Transcriber turns a finished audio buffer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format, lang string) (string, error)
	Supported() bool
}

// RecognizerOptions configures a Recognizer.
type RecognizerOptions struct {
	Format string
	Lang   string
	Logger *slog.Logger
}

// Recognizer drives a Transcriber as an idle/listening state machine. Audio
// is buffered while listening and transcribed once per utterance.
type Recognizer struct {
	engine Transcriber
	format string
	lang   string
	logger *slog.Logger

	mu        sync.Mutex
	listening bool
	buf       bytes.Buffer
	onResult  func(string)
	onError   func(string)
	onState   func(bool)
}

// NewRecognizer builds a recognizer over engine. engine may be nil.
func NewRecognizer(engine Transcriber, opts RecognizerOptions) *Recognizer {
	if opts.Format == "" {
		opts.Format = "wav"
	}
	if opts.Lang == "" {
		opts.Lang = FallbackLang
	}
	return &Recognizer{
		engine: engine,
		format: opts.Format,
		lang:   opts.Lang,
		logger: logging.Module(opts.Logger, "voice.recognizer"),
	}
}

// OnResult sets the finalized transcript callback.
func (r *Recognizer) OnResult(fn func(string)) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

// OnError sets the error callback.
func (r *Recognizer) OnError(fn func(string)) {
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
}

// OnListeningChange sets the state callback.
func (r *Recognizer) OnListeningChange(fn func(bool)) {
	r.mu.Lock()
	r.onState = fn
	r.mu.Unlock()
}

// Supported reports whether a transcriber is available.
func (r *Recognizer) Supported() bool {
	return r.engine != nil && r.engine.Supported()
}

// Listening reports whether a session is open.
func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// StartListening opens a session. Calling it while a session is open is a
// no-op, so two calls never produce two sessions.
func (r *Recognizer) StartListening() error {
	if !r.Supported() {
		r.reportError(unsupportedMessage)
		return ErrUnsupported
	}

	r.mu.Lock()
	if r.listening {
		r.mu.Unlock()
		return nil
	}
	r.listening = true
	r.buf.Reset()
	onState := r.onState
	r.mu.Unlock()

	if onState != nil {
		onState(true)
	}
	return nil
}

// Feed appends an audio chunk to the open session.
func (r *Recognizer) Feed(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.listening {
		return ErrNotListening
	}
	r.buf.Write(chunk)
	return nil
}

// StopListening aborts the session without producing a result.
func (r *Recognizer) StopListening() {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return
	}
	r.listening = false
	r.buf.Reset()
	onState := r.onState
	r.mu.Unlock()

	if onState != nil {
		onState(false)
	}
}

// Finish closes the session and transcribes the buffered audio. The result
// callback fires once with the trimmed transcript unless it is empty.
func (r *Recognizer) Finish(ctx context.Context) error {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return ErrNotListening
	}
	audio := bytes.Clone(r.buf.Bytes())
	r.buf.Reset()
	r.listening = false
	onState := r.onState
	onResult := r.onResult
	r.mu.Unlock()

	if onState != nil {
		onState(false)
	}

	if len(audio) == 0 {
		return nil
	}

	text, err := r.engine.Transcribe(ctx, audio, r.format, r.lang)
	if err != nil {
		r.logger.Error("transcription failed", slog.Any("err", err))
		r.reportError(describeError(err))
		return fmt.Errorf("transcribe: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	r.logger.Debug("transcript ready", slog.Int("length", len(text)))
	if onResult != nil {
		onResult(text)
	}
	return nil
}

func (r *Recognizer) reportError(message string) {
	r.mu.Lock()
	onError := r.onError
	r.mu.Unlock()

	if onError != nil {
		onError(message)
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access was denied"
	case errors.Is(err, context.DeadlineExceeded):
		return "Speech recognition timed out"
	default:
		return "Speech recognition error: " + err.Error()
	}
}
