// Package llm talks to chat-completion backends and turns sheet rows into
// short analyst summaries.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to a backend.
type Message struct {
	Role    string
	Content string
}

// Response is the first completion returned by a backend plus token usage.
// Model is the model that actually answered, which may differ from the
// configured one behind a router.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client makes a single completion call. Implementations do not retry.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
