package speech

import (
	"io"
)

// ASRRequest asks for one transcription.
type ASRRequest struct {
	SessionID string    `json:"sessionId"`
	AudioData io.Reader `json:"-"`
	Format    string    `json:"format"`   // wav, mp3, ogg, pcm
	Language  string    `json:"language"` // en-US, zh-CN, ...
}

// TTSRequest asks for one synthesized utterance.
type TTSRequest struct {
	SessionID string  `json:"sessionId"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Speed     float32 `json:"speed"` // 0.5-2.0
	Pitch     float32 `json:"pitch"` // 0.5-2.0
	Volume    float32 `json:"volume"`
	Format    string  `json:"format"`
	Language  string  `json:"language"`
}
