// Package transcript persists the ordered list of messages that make up a conversation.
package transcript

import "fmt"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid returns true if r is a role the transcript can hold
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single role-tagged entry in a transcript
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// UserMessage returns a message authored by the operator
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message authored by the model
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func validate(msgs []Message) error {
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrMalformedData, i, m.Role)
		}
	}
	return nil
}
