package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"github.com/zhouzirui/happymac/backend/internal/model/speech"
)

// ErrUnsupportedFormat is returned for audio the player cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Player plays mp3 audio on the local sound device.
type Player struct {
	once    sync.Once
	initErr error
	rate    beep.SampleRate
}

// NewPlayer returns a player that opens the device on first use at rate.
func NewPlayer(rate beep.SampleRate) *Player {
	if rate <= 0 {
		rate = 24000
	}
	return &Player{rate: rate}
}

func (p *Player) init() error {
	p.once.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(time.Second/10))
	})
	return p.initErr
}

// Play decodes audio and blocks until playback ends or ctx is cancelled, in
// which case the device is silenced.
func (p *Player) Play(ctx context.Context, audio *speech.TTSResponse) error {
	if audio.Format != "" && audio.Format != "mp3" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, audio.Format)
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(audio.AudioData)))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	if err := p.init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != p.rate {
		s = beep.Resample(4, format.SampleRate, p.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
