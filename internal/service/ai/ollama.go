package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
)

// Ollama streams replies from a local Ollama server.
type Ollama struct {
	model  string
	client *api.Client
}

// NewOllama returns a provider for host, e.g. http://127.0.0.1:11434.
func NewOllama(host, model string, httpClient *http.Client) (*Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Ollama{
		model:  model,
		client: api.NewClient(u, httpClient),
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func ollamaMessages(system string, history []chat.Message) []api.Message {
	msgs := make([]api.Message, 0, len(history)+1)
	msgs = append(msgs, api.Message{Role: "system", Content: system})
	for _, msg := range history {
		msgs = append(msgs, api.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return msgs
}

func (o *Ollama) Stream(ctx context.Context, system string, history []chat.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: ollamaMessages(system, history),
			Stream:   &stream,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		})
		if err != nil && !stopped {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}

func (o *Ollama) Generate(ctx context.Context, system string, history []chat.Message) (string, error) {
	stream := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: ollamaMessages(system, history),
		Stream:   &stream,
	}

	var reply string
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		reply += res.Message.Content
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	return reply, nil
}
