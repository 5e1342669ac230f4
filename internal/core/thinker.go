package core

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the wire shape sent to chat-completion backends.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIProvider is a chat-completion backend.
type AIProvider interface {
	Chat(ctx context.Context, history []ChatMessage) (ChatMessage, error)
}

// Thinker produces a text response to a prompt. The deadline of ctx is the
// per-call timeout; failures are ErrTimeout or ErrBackend.
type Thinker interface {
	Name() string
	Respond(ctx context.Context, prompt string) (string, error)
}
