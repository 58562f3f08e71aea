package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dossier-ai/dossier-agent/internal/httpkit"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint
// (OpenAI itself, or a gateway exposing the same wire format).
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// baseURL is the API root (e.g. "https://api.openai.com/v1").
func NewOpenAIClient(baseURL, apiKey, model string, temperature float64) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		// Model calls with tool round-trips can run long.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(5 * time.Minute)),
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Wire types. The OpenAI format carries tool-call arguments as a JSON
// string, unlike the decoded map used internally.

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	Tools       []Tool          `json:"tools,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func toWire(messages []Message) ([]openAIMessage, error) {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		wm := openAIMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				return nil, fmt.Errorf("marshal tool call arguments: %w", err)
			}
			wc := openAIToolCall{ID: tc.ID, Type: "function"}
			wc.Function.Name = tc.Function.Name
			wc.Function.Arguments = string(args)
			wm.ToolCalls = append(wm.ToolCalls, wc)
		}
		out = append(out, wm)
	}
	return out, nil
}

func fromWire(m openAIMessage) (Message, error) {
	msg := Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, wc := range m.ToolCalls {
		tc := ToolCall{ID: wc.ID}
		tc.Function.Name = wc.Function.Name
		if wc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(wc.Function.Arguments), &tc.Function.Arguments); err != nil {
				return Message{}, fmt.Errorf("decode tool call arguments for %s: %w", wc.Function.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, tc)
	}
	return msg, nil
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResponse, error) {
	wireMessages, err := toWire(messages)
	if err != nil {
		return nil, err
	}

	reqBody := openAIChatRequest{
		Model:       c.model,
		Messages:    wireMessages,
		Temperature: c.temperature,
		Tools:       tools,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response: no choices returned")
	}

	msg, err := fromWire(chatResp.Choices[0].Message)
	if err != nil {
		return nil, err
	}

	model := chatResp.Model
	if model == "" {
		model = c.model
	}

	return &ChatResponse{
		Message: msg,
		Usage:   chatResp.Usage,
		Model:   model,
	}, nil
}

// Ping checks if the endpoint is reachable by listing models.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}

	return nil
}
