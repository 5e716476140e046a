package chat

import (
	"errors"
	"fmt"
)

// ErrEmptyConversation is returned when no messages are supplied.
var ErrEmptyConversation = errors.New("conversation has no messages")

// InvalidRoleError reports a message with an unknown role.
type InvalidRoleError struct {
	Index int
	Role  Role
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("message %d has invalid role %q", e.Index, string(e.Role))
}
