package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/speech"
)

const (
	defaultSpeechHost = "wss://openspeech.bytedance.com"
	ttsPath           = "/api/v3/tts/unidirectional/stream"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("tts text is empty")

// VolcengineTTSClient synthesizes speech over the Volcengine websocket API.
type VolcengineTTSClient struct {
	config *speech.SpeechConfig
	dialer *websocket.Dialer
	logger *slog.Logger
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

// NewVolcengineTTSClient returns a client for config.
func NewVolcengineTTSClient(config *speech.SpeechConfig, logger *slog.Logger) *VolcengineTTSClient {
	return &VolcengineTTSClient{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: logging.Module(logger, "speech.tts"),
	}
}

type volcengineTTSRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string                   `json:"speaker"`
		Text        string                   `json:"text"`
		AudioParams volcengineTTSAudioParams `json:"audio_params"`
		Additions   string                   `json:"additions,omitempty"`
		Language    string                   `json:"language,omitempty"`
	} `json:"req_params"`
}

type volcengineTTSAudioParams struct {
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	EnableTimestamp bool    `json:"enable_timestamp"`
	SpeedRatio      float32 `json:"speed_ratio,omitempty"`
	PitchRatio      float32 `json:"pitch_ratio,omitempty"`
	VolumeRatio     float32 `json:"volume_ratio,omitempty"`
}

// Synthesize renders req to audio. A speaker/resource mismatch reported by
// the service moves on to the next candidate pair.
func (c *VolcengineTTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	appKey, accessKey, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	wsURL := endpoint(c.config, defaultSpeechHost, ttsPath)
	speakers := resolveTTSSpeakerCandidates(strings.TrimSpace(req.Voice), strings.TrimSpace(c.config.TTSVoice))

	var lastMismatch error
	for _, speaker := range speakers {
		for _, resourceID := range resolveTTSResourceCandidates(speaker) {
			resp, err := c.synthesizeWithResource(ctx, wsURL, req, appKey, accessKey, speaker, resourceID)
			if err == nil {
				return resp, nil
			}
			if !isResourceMismatchError(err) {
				return nil, err
			}
			c.logger.Warn("speaker resource mismatch",
				slog.String("speaker", speaker),
				slog.String("resource", resourceID),
				slog.Any("err", err),
			)
			lastMismatch = err
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("tts synthesis failed: no compatible resource for voices %v", speakers)
}

func (c *VolcengineTTSClient) synthesizeWithResource(
	ctx context.Context,
	wsURL string,
	req *speech.TTSRequest,
	appKey, accessKey, speaker, resourceID string,
) (*speech.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Access-Key", accessKey)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS websocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.logger.Debug("connected", slog.String("logid", logid))
		}
	}

	// unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	ttsReq, userUID := c.buildTTSRequest(req, speaker)
	payload, err := json.Marshal(ttsReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	frame := EncodeMessage(CreateFullClientRequest(payload, NoCompression))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = userUID
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("TTS error message decode failed: %w", err)
			}
			return nil, fmt.Errorf("TTS error %d: %s", msg.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			chunk, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress audio chunk: %w", err)
			}
			audio.Write(chunk)

		case FullServerResponse:
			body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress TTS response payload: %w", err)
			}

			var serverResp ttsServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &serverResp); err != nil {
					c.logger.Warn("unreadable response payload", slog.Any("err", err))
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.ReqID != "" {
						reqID = serverResp.ReqID
					}
					if serverResp.Addition.Duration != "" {
						if parsed, err := strconv.ParseInt(serverResp.Addition.Duration, 10, 64); err == nil {
							duration = parsed
						}
					}
					if serverResp.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(serverResp.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finishedByEvent := hasEvent(msg.Header.MessageFlags) && msg.EventType == EventTypeSessionFinished
			if finishedByEvent || msg.IsLastPacket() || serverResp.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, errors.New("TTS audio is empty")
				}
				if reqID == "" {
					reqID = connectID
				}
				return &speech.TTSResponse{
					SessionID: sessionID,
					AudioData: audio.Bytes(),
					Duration:  duration,
					Format:    ttsReq.ReqParams.AudioParams.Format,
					Voice:     speaker,
					RequestID: reqID,
					CreatedAt: time.Now(),
				}, nil
			}

		default:
			c.logger.Debug("unexpected message type", slog.Int("type", int(msg.Header.MessageType)))
		}
	}
}

func (c *VolcengineTTSClient) buildTTSRequest(req *speech.TTSRequest, speaker string) (*volcengineTTSRequest, string) {
	ttsReq := &volcengineTTSRequest{}

	userUID := strings.TrimSpace(req.SessionID)
	if userUID == "" {
		userUID = uuid.NewString()
	}
	ttsReq.User.UID = userUID

	ttsReq.ReqParams.Speaker = speaker
	if ttsReq.ReqParams.Speaker == "" {
		ttsReq.ReqParams.Speaker = strings.TrimSpace(c.config.TTSVoice)
	}
	ttsReq.ReqParams.Text = req.Text

	// the unidirectional endpoint has no wav output
	format := strings.TrimSpace(req.Format)
	if format == "" || format == "wav" {
		format = "mp3"
	}
	ttsReq.ReqParams.AudioParams.Format = format
	ttsReq.ReqParams.AudioParams.SampleRate = 24000
	ttsReq.ReqParams.AudioParams.EnableTimestamp = true

	ttsReq.ReqParams.AudioParams.SpeedRatio = ratio(req.Speed, c.config.TTSSpeed)
	ttsReq.ReqParams.AudioParams.PitchRatio = ratio(req.Pitch, 0)
	ttsReq.ReqParams.AudioParams.VolumeRatio = ratio(req.Volume, c.config.TTSVolume)

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(c.config.TTSLanguage)
	}
	ttsReq.ReqParams.Language = language

	ttsReq.ReqParams.Additions = `{"disable_markdown_filter":false}`
	return ttsReq, userUID
}

// ratio picks requested, then fallback, and omits the neutral 1.0.
func ratio(requested, fallback float32) float32 {
	v := requested
	if v <= 0 {
		v = fallback
	}
	if v <= 0 || v == 1.0 {
		return 0
	}
	return v
}

func resolveTTSResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if normalized != "" && strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

var speakerAliases = map[string]string{
	"happy-mac":  "en_female_amy_jupiter_bigtts",
	"en_default": "en_female_amy_jupiter_bigtts",
	"zh_default": "zh_female_vv_uranus_bigtts",
}

func resolveTTSSpeakerCandidates(requested, fallback string) []string {
	var candidates []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if mapped, ok := speakerAliases[strings.ToLower(s)]; ok {
			s = mapped
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)
	return candidates
}

func isResourceMismatchError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
