package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
)

// Ark runs a Volcengine Ark chat model behind an eino prompt chain.
type Ark struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArk compiles the prompt chain around chatModel.
func NewArk(ctx context.Context, chatModel model.BaseChatModel) (*Ark, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &Ark{chain: runnable}, nil
}

func (a *Ark) Name() string { return "ark" }

func (a *Ark) Stream(ctx context.Context, system string, history []chat.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := a.chain.Stream(ctx, chainInput(system, history))
		if err != nil {
			yield("", fmt.Errorf("failed to stream AI chain output: %w", err))
			return
		}
		defer stream.Close()

		for {
			msg, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("failed to receive chunk: %w", err))
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			if !yield(msg.Content, nil) {
				return
			}
		}
	}
}

func (a *Ark) Generate(ctx context.Context, system string, history []chat.Message) (string, error) {
	msg, err := a.chain.Invoke(ctx, chainInput(system, history))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	return msg.Content, nil
}

func chainInput(system string, history []chat.Message) map[string]any {
	return map[string]any{
		"system":  system,
		"history": schemaMessages(history),
	}
}

func schemaMessages(messages []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
