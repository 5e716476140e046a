package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
)

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	model  string
	client *goopenai.Client
}

// NewOpenAI creates a client for apiKey. An empty baseURL keeps the public endpoint.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		model:  model,
		client: goopenai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAI) Name() string { return "openai" }

func openAIMessages(system string, history []chat.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, msg := range history {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return msgs
}

func (o *OpenAI) Stream(ctx context.Context, system string, history []chat.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
			Model:    o.model,
			Messages: openAIMessages(system, history),
			Stream:   true,
		})
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			if content := response.Choices[0].Delta.Content; content != "" {
				if !yield(content, nil) {
					return
				}
			}
		}
	}
}

func (o *OpenAI) Generate(ctx context.Context, system string, history []chat.Message) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: openAIMessages(system, history),
	})
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}
	return resp.Choices[0].Message.Content, nil
}
