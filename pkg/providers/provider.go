// Package providers holds the LLM transport. One implementation speaks the
// Ollama-style chat endpoint; the brain only sees the interface.
package providers

import "context"

// ChatMessage is one turn in the wire-format conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMProvider produces one completion for a message list.
type LLMProvider interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
	Name() string
}
