package ai

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
)

const (
	replyMarker   = "ScrLk:"
	minReplyLen   = 5
	shortFallback = "That's interesting! Tell me more."
)

var generationFallbacks = []string{
	"I'm having trouble thinking right now, but I'm still happy to chat!",
	"Hmm, let me think about that differently...",
	"That's a great question! Could you rephrase it?",
	"My circuits are warming up. What else can I help with?",
}

func randomIndex(n int) int { return rand.IntN(n) }

// GenerateResponse answers userMessage in a single shot. historyText is a
// transcript flattened by chat.FormatTranscript. It never fails: generation
// errors resolve to a canned reply.
func (s *Service) GenerateResponse(ctx context.Context, userMessage, historyText string) string {
	if err := s.acquire(); err != nil {
		s.logger.Warn("generate rejected", slog.Any("err", err))
		return s.fallback()
	}
	defer s.wg.Done()

	prompt := historyText + "User: " + strings.TrimSpace(userMessage) + "\n" + replyMarker
	raw, err := s.provider.Generate(ctx, s.prompts.CorePrompt(s.persona), []chat.Message{chat.UserMessage(prompt)})
	if err != nil {
		s.logger.Error("error generating response", slog.Any("err", err))
		return s.fallback()
	}

	return cleanReply(raw)
}

func (s *Service) fallback() string {
	return generationFallbacks[s.pick(len(generationFallbacks))]
}

// cleanReply keeps the first line after the last reply marker.
func cleanReply(raw string) string {
	reply := raw
	if idx := strings.LastIndex(reply, replyMarker); idx >= 0 {
		reply = strings.TrimSpace(reply[idx+len(replyMarker):])
	}

	reply, _, _ = strings.Cut(reply, "\n")
	reply = strings.TrimSpace(reply)

	if len([]rune(reply)) < minReplyLen {
		return shortFallback
	}
	return reply
}
