package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/speech"
)

const (
	asrPath = "/api/v3/sauc/bigmodel_nostream"

	// 200ms of 16kHz 16bit mono audio
	asrChunkSize = 6400
)

// ErrNoAudio is returned when a transcription request carries no audio.
var ErrNoAudio = errors.New("no audio data to send")

// VolcengineASRClient transcribes audio over the Volcengine websocket API.
type VolcengineASRClient struct {
	config *speech.SpeechConfig
	dialer *websocket.Dialer
	logger *slog.Logger

	// chunkInterval paces audio packets to mimic a live stream.
	chunkInterval time.Duration
}

type asrUtterance struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Definite  bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

// NewVolcengineASRClient returns a client for config.
func NewVolcengineASRClient(config *speech.SpeechConfig, logger *slog.Logger) *VolcengineASRClient {
	return &VolcengineASRClient{
		config:        config,
		dialer:        &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger:        logging.Module(logger, "speech.asr"),
		chunkInterval: 200 * time.Millisecond,
	}
}

// Transcribe sends the whole of req.AudioData and waits for the final result.
func (c *VolcengineASRClient) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resourceID := "volc.bigasr.sauc.duration"
	if c.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent"
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", sessionID)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint(c.config, defaultSpeechHost, asrPath), header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ASR websocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.logger.Debug("connected", slog.String("logid", logid))
		}
	}

	payload, err := json.Marshal(c.buildASRRequest(req, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeMessage(CreateFullClientRequest(compressed, GzipCompression))); err != nil {
		return nil, fmt.Errorf("failed to send ASR request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// receive concurrently so a server error aborts sending early
	type result struct {
		resp *speech.ASRResponse
		err  error
	}
	recvCh := make(chan result, 1)
	go func() {
		resp, err := c.receive(ctx, conn, sessionID)
		if err != nil {
			cancel()
		}
		recvCh <- result{resp, err}
	}()

	if sendErr := c.sendAudio(ctx, conn, audio); sendErr != nil {
		cancel()
		if r := <-recvCh; r.err != nil && !errors.Is(r.err, context.Canceled) {
			return nil, r.err
		}
		return nil, fmt.Errorf("failed to send audio data: %w", sendErr)
	}

	r := <-recvCh
	return r.resp, r.err
}

func (c *VolcengineASRClient) buildASRRequest(req *speech.ASRRequest, sessionID string) *asrRequest {
	out := &asrRequest{}
	out.User.UID = sessionID

	out.Audio.Format = req.Format
	if out.Audio.Format == "" {
		out.Audio.Format = "wav"
	}
	out.Audio.Language = req.Language
	if out.Audio.Language == "" {
		out.Audio.Language = c.config.ASRLanguage
	}
	out.Audio.Codec = "raw"
	out.Audio.Rate = 16000
	out.Audio.Bits = 16
	out.Audio.Channel = 1

	out.Request.ModelName = c.config.ASRModel
	if out.Request.ModelName == "" {
		out.Request.ModelName = "bigmodel"
	}
	out.Request.EnableITN = true
	out.Request.EnablePunc = true
	out.Request.ShowUtterances = true
	out.Request.ResultType = "full"
	out.Request.EndWindowSize = 800
	return out
}

func (c *VolcengineASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	// the full client request took sequence 1
	sequence := int32(2)

	for start := 0; start < len(audio); start += asrChunkSize {
		end := min(start+asrChunkSize, len(audio))
		isLast := end == len(audio)

		chunk, err := CompressPayload(audio[start:end], GzipCompression)
		if err != nil {
			return fmt.Errorf("failed to compress audio chunk: %w", err)
		}
		frame := EncodeMessage(CreateAudioOnlyRequest(chunk, sequence, isLast, GzipCompression))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		sequence++

		if isLast || c.chunkInterval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.chunkInterval):
		}
	}
	return nil
}

func (c *VolcengineASRClient) receive(ctx context.Context, conn *websocket.Conn, sessionID string) (*speech.ASRResponse, error) {
	var (
		finalText string
		duration  int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read ASR response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode ASR message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("ASR error message decode failed: %w", err)
			}
			return nil, fmt.Errorf("ASR error %d: %s", msg.ErrorCode, string(body))

		case FullServerResponse:
			body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress ASR payload: %w", err)
			}

			var serverResp asrServerMessage
			if err := json.Unmarshal(body, &serverResp); err != nil {
				c.logger.Warn("unreadable response payload", slog.Any("err", err))
				continue
			}
			if serverResp.Code != 0 && serverResp.Code != 20000000 {
				return nil, fmt.Errorf("ASR API error %d: %s", serverResp.Code, serverResp.Message)
			}

			text := serverResp.Result.Text
			if text == "" {
				text = joinUtterances(serverResp.Result.Utterances)
			}
			if text != "" {
				finalText = text
			}
			if serverResp.AudioInfo.Duration > 0 {
				duration = serverResp.AudioInfo.Duration
			}

			if msg.IsLastPacket() || serverResp.Sequence < 0 {
				if finalText == "" {
					c.logger.Info("empty transcript", slog.String("session", sessionID))
				}
				return &speech.ASRResponse{
					SessionID:  sessionID,
					Text:       finalText,
					Confidence: estimateASRConfidence(finalText),
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func estimateASRConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}
