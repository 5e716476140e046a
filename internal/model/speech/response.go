package speech

import "time"

// mp3BytesPerSecond is 32kbps, the rate Volcengine uses for mp3 output.
const mp3BytesPerSecond = 4000

// ASRResponse is a finished transcription.
type ASRResponse struct {
	SessionID  string    `json:"sessionId"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Duration   int64     `json:"duration"` // ms
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TTSResponse is one synthesized utterance.
type TTSResponse struct {
	SessionID string    `json:"sessionId"`
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration"` // ms, 0 when the engine did not report it
	Format    string    `json:"format"`
	Voice     string    `json:"voice"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlaybackTime is the reported duration, or an estimate from the audio size.
func (r *TTSResponse) PlaybackTime() time.Duration {
	if r.Duration > 0 {
		return time.Duration(r.Duration) * time.Millisecond
	}
	return time.Duration(len(r.AudioData)) * time.Second / mp3BytesPerSecond
}
