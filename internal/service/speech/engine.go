package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/happymac/backend/internal/model/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
)

// Synthesizer renders text to audio.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// AudioSink plays synthesized audio. Play blocks until playback ends or ctx
// is cancelled.
type AudioSink interface {
	Play(ctx context.Context, audio *speech.TTSResponse) error
}

// AudioSinkFunc adapts a function to AudioSink.
type AudioSinkFunc func(ctx context.Context, audio *speech.TTSResponse) error

func (f AudioSinkFunc) Play(ctx context.Context, audio *speech.TTSResponse) error { return f(ctx, audio) }

// VoiceEngine drives a cloud synthesizer and a local sink as a voice.Engine.
type VoiceEngine struct {
	synth Synthesizer
	sink  AudioSink
}

// NewVoiceEngine pairs synth with sink. Either may be nil, in which case the
// engine reports itself unsupported.
func NewVoiceEngine(synth Synthesizer, sink AudioSink) *VoiceEngine {
	return &VoiceEngine{synth: synth, sink: sink}
}

func (e *VoiceEngine) Supported() bool {
	return e.synth != nil && e.sink != nil
}

// Speak synthesizes u and plays it.
func (e *VoiceEngine) Speak(ctx context.Context, u voice.Utterance) error {
	req := &speech.TTSRequest{
		Text:     u.Text,
		Speed:    float32(u.Rate),
		Pitch:    float32(u.Pitch),
		Volume:   float32(u.Volume),
		Language: u.Lang,
		Format:   "mp3",
	}
	if u.HasVoice {
		req.Voice = u.Voice.ID
	}

	audio, err := e.synth.SynthesizeSpeech(ctx, req)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	return e.sink.Play(ctx, audio)
}

// TranscriberFunc is the shape of Service.TranscribeBuffer.
type TranscriberFunc func(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error)

// Transcriber adapts a transcription call to voice.Transcriber.
type Transcriber struct {
	transcribe TranscriberFunc
	sessionID  string
	supported  func() bool
}

// NewTranscriber adapts svc for one session.
func NewTranscriber(svc *Service, sessionID string) *Transcriber {
	if svc == nil {
		return &Transcriber{}
	}
	return &Transcriber{transcribe: svc.TranscribeBuffer, sessionID: sessionID, supported: svc.Enabled}
}

// NewTranscriberFunc adapts fn for one session. A nil fn yields an
// unsupported transcriber.
func NewTranscriberFunc(fn TranscriberFunc, sessionID string) *Transcriber {
	return &Transcriber{transcribe: fn, sessionID: sessionID}
}

func (t *Transcriber) Supported() bool {
	return t.transcribe != nil && (t.supported == nil || t.supported())
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format, lang string) (string, error) {
	resp, err := t.transcribe(ctx, t.sessionID, audio, format, lang)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
