package ai

import (
	"context"
	"iter"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
)

// Provider is a text-generation backend.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Stream yields reply chunks in order. A non-nil error ends the stream.
	Stream(ctx context.Context, system string, history []chat.Message) iter.Seq2[string, error]
	// Generate returns the whole reply at once.
	Generate(ctx context.Context, system string, history []chat.Message) (string, error)
}
