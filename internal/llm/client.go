package llm

import "context"

// Client is the chat model interface the agent loop drives.
type Client interface {
	// Chat sends the full transcript (system message first) plus the
	// advertised tools, and returns the assistant's next message.
	Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResponse, error)

	// Model returns the configured model name, for logging and usage
	// records.
	Model() string

	// Ping verifies the endpoint is reachable.
	Ping(ctx context.Context) error
}
