// Package llm defines the chat model abstraction and the
// OpenAI-compatible client used to drive it.
package llm

// Message roles in a conversation transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID correlates a tool-result message (role "tool") with the
	// assistant tool call that requested it.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a model request to execute a named tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its decoded arguments.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Tool describes a callable tool advertised to the model.
type Tool struct {
	Type     string       `json:"type"` // always "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction is the schema half of a tool definition.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage reports provider token accounting for one chat call.
// Providers that omit usage leave it nil and callers fall back to
// local estimation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the result of one model invocation.
type ChatResponse struct {
	Message Message
	Usage   *Usage
	Model   string
}

// HasToolCalls reports whether the response requests tool execution.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}
