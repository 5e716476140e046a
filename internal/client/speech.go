package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/zhouzirui/happymac/backend/internal/model/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
)

// Voices implements voice.Source with the backend catalog.
func (c *Client) Voices(ctx context.Context) ([]voice.Info, error) {
	var out struct {
		Voices []voice.Info `json:"voices"`
	}
	if err := c.getJSON(ctx, "/api/voices", &out); err != nil {
		return nil, err
	}
	return out.Voices, nil
}

// SynthesizeSpeech asks the backend to render req and returns the audio.
func (c *Client) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/speech/synthesize", map[string]any{
		"sessionId": req.SessionID,
		"text":      req.Text,
		"voice":     req.Voice,
		"lang":      req.Language,
		"rate":      req.Speed,
		"pitch":     req.Pitch,
		"volume":    req.Volume,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	out := &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Format:    formatFromContentType(resp.Header.Get("Content-Type")),
		Voice:     resp.Header.Get("X-Voice"),
	}
	if d, err := strconv.ParseInt(resp.Header.Get("X-Audio-Duration"), 10, 64); err == nil {
		out.Duration = d
	}
	return out, nil
}

func formatFromContentType(ct string) string {
	sub, ok := strings.CutPrefix(ct, "audio/")
	if !ok {
		return ""
	}
	if sub == "mpeg" {
		return "mp3"
	}
	return sub
}
