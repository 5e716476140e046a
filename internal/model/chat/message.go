package chat

import (
	"strings"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Label returns the capitalised role name used in flattened transcripts.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Clone returns an independent copy of messages.
func Clone(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	return append([]Message(nil), messages...)
}

// FormatTranscript flattens messages into "<Role>: <content>\n" lines.
func FormatTranscript(messages []Message) string {
	var builder strings.Builder
	for _, msg := range messages {
		builder.WriteString(msg.Role.Label())
		builder.WriteString(": ")
		builder.WriteString(msg.Content)
		builder.WriteByte('\n')
	}
	return builder.String()
}

// Validate checks that every message carries a known role.
func Validate(messages []Message) error {
	if len(messages) == 0 {
		return ErrEmptyConversation
	}
	for i, msg := range messages {
		if !msg.Role.Valid() {
			return &InvalidRoleError{Index: i, Role: msg.Role}
		}
	}
	return nil
}
