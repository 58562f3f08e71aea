// Package agent implements the research loop that drives a profile
// request to completion: invoke the model over the thread transcript,
// execute the tool calls it asks for, feed the results back, and
// repeat until the model produces a final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dossier-ai/dossier-agent/internal/events"
	"github.com/dossier-ai/dossier-agent/internal/llm"
	"github.com/dossier-ai/dossier-agent/internal/prompts"
	"github.com/dossier-ai/dossier-agent/internal/session"
	"github.com/dossier-ai/dossier-agent/internal/tokenizer"
	"github.com/dossier-ai/dossier-agent/internal/tools"
	"github.com/dossier-ai/dossier-agent/internal/usage"
)

// DefaultMaxTurns bounds model invocations per request when the
// configuration does not set one.
const DefaultMaxTurns = 10

// throttleThreshold is the transcript length above which the loop
// pauses before invoking the model. A fresh thread's first call
// (system + user) runs unthrottled; everything after that pays the
// pause.
const throttleThreshold = 2

// ErrMaxTurns is returned when a request exceeds its model invocation
// bound without producing a final answer. The partial transcript
// remains in the store.
var ErrMaxTurns = errors.New("max turns exceeded")

// Result is the outcome of one completed request.
type Result struct {
	Answer       string `json:"answer"`
	Turns        int    `json:"turns"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Options tune loop behavior.
type Options struct {
	// Throttle is the fixed pause before each model call once the
	// transcript has grown past the first exchange. Zero disables it.
	Throttle time.Duration

	// MaxTurns caps model invocations per request. Zero means
	// DefaultMaxTurns.
	MaxTurns int
}

// Loop orchestrates model calls and tool execution over a thread.
type Loop struct {
	logger     *slog.Logger
	llm        llm.Client
	registry   *tools.Registry
	store      session.Store
	counter    tokenizer.Counter
	bus        *events.Bus
	usageStore *usage.Store
	opts       Options

	// sleep is swappable so tests can observe throttling without
	// waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a loop. bus and usageStore may be nil.
func New(logger *slog.Logger, llmClient llm.Client, registry *tools.Registry, store session.Store, bus *events.Bus, usageStore *usage.Store, opts Options) *Loop {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	return &Loop{
		logger:     logger,
		llm:        llmClient,
		registry:   registry,
		store:      store,
		counter:    tokenizer.Estimator{},
		bus:        bus,
		usageStore: usageStore,
		opts:       opts,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run processes one profile request on a thread: seeds the system
// message for new threads, appends the human prompt, and iterates
// model calls and tool executions until the model answers without
// requesting tools. The tracker accumulates token usage across all
// model calls of this request.
func (l *Loop) Run(ctx context.Context, threadID, humanPrompt string, tracker *usage.Tracker) (*Result, error) {
	startTime := time.Now()

	exists, err := l.store.Exists(threadID)
	if err != nil {
		// A failed read is treated like an absent thread; seeding a
		// healthy non-empty thread is a no-op anyway.
		l.logger.Warn("thread state read failed, treating as new",
			"thread_id", threadID,
			"error", err,
		)
		exists = false
	}
	if !exists {
		l.logger.Info("initializing new thread", "thread_id", threadID)
	} else {
		l.logger.Info("continuing existing thread", "thread_id", threadID)
	}
	if err := l.store.Seed(threadID, prompts.SystemPrompt()); err != nil {
		return nil, fmt.Errorf("seed thread %s: %w", threadID, err)
	}

	transcript, err := l.store.Append(threadID, []session.Message{
		session.NewMessage(llm.Message{Role: llm.RoleUser, Content: humanPrompt}),
	})
	if err != nil {
		return nil, fmt.Errorf("append human message: %w", err)
	}

	toolDefs := l.registry.Definitions()
	var totalInput, totalOutput int

	for turn := 1; turn <= l.opts.MaxTurns; turn++ {
		if len(transcript) > throttleThreshold && l.opts.Throttle > 0 {
			l.logger.Info("throttling before model call",
				"thread_id", threadID,
				"pause", l.opts.Throttle,
			)
			if err := l.sleep(ctx, l.opts.Throttle); err != nil {
				return nil, fmt.Errorf("request cancelled: %w", err)
			}
		}

		messages := make([]llm.Message, len(transcript))
		for i, m := range transcript {
			messages[i] = m.LLMMessage()
		}
		inputTokens := tokenizer.CountMessages(l.counter, messages)

		l.logger.Info("invoking model",
			"thread_id", threadID,
			"turn", turn,
			"model", l.llm.Model(),
			"msgs", len(messages),
		)
		l.bus.Publish(events.Event{
			Source: events.SourceAgent,
			Kind:   events.KindLLMCall,
			Data: map[string]any{
				"thread_id":      threadID,
				"turn":           turn,
				"model":          l.llm.Model(),
				"transcript_len": len(messages),
			},
		})

		tracker.IncrementRequests()

		resp, err := l.llm.Chat(ctx, messages, toolDefs)
		if err != nil {
			return nil, fmt.Errorf("model call failed (turn %d): %w", turn, err)
		}

		outputTokens := l.counter.Count(resp.Message.Content)
		if resp.Usage != nil {
			inputTokens = resp.Usage.PromptTokens
			outputTokens = resp.Usage.CompletionTokens
		}
		tracker.Add(inputTokens, outputTokens)
		totalInput += inputTokens
		totalOutput += outputTokens

		l.recordUsage(ctx, threadID, turn, inputTokens, outputTokens)

		l.logger.Info("model response",
			"thread_id", threadID,
			"turn", turn,
			"input_tokens", inputTokens,
			"output_tokens", outputTokens,
			"tool_calls", len(resp.Message.ToolCalls),
		)
		l.bus.Publish(events.Event{
			Source: events.SourceAgent,
			Kind:   events.KindLLMResponse,
			Data: map[string]any{
				"thread_id":  threadID,
				"turn":       turn,
				"tokens_in":  inputTokens,
				"tokens_out": outputTokens,
				"tool_calls": len(resp.Message.ToolCalls),
			},
		})

		transcript, err = l.store.Append(threadID, []session.Message{session.NewMessage(resp.Message)})
		if err != nil {
			return nil, fmt.Errorf("append assistant message: %w", err)
		}

		// No tool calls means the final answer.
		if !resp.HasToolCalls() {
			l.bus.Publish(events.Event{
				Source: events.SourceAgent,
				Kind:   events.KindRequestComplete,
				Data: map[string]any{
					"thread_id":        threadID,
					"turns":            turn,
					"total_tokens_in":  totalInput,
					"total_tokens_out": totalOutput,
					"elapsed_ms":       time.Since(startTime).Milliseconds(),
				},
			})
			return &Result{
				Answer:       resp.Message.Content,
				Turns:        turn,
				InputTokens:  totalInput,
				OutputTokens: totalOutput,
			}, nil
		}

		toolMessages := make([]session.Message, 0, len(resp.Message.ToolCalls))
		for _, tc := range resp.Message.ToolCalls {
			toolMessages = append(toolMessages, l.executeToolCall(ctx, threadID, tc))
		}

		// One append per turn so the tool results land atomically.
		transcript, err = l.store.Append(threadID, toolMessages)
		if err != nil {
			return nil, fmt.Errorf("append tool results: %w", err)
		}
	}

	l.logger.Warn("request aborted at turn bound",
		"thread_id", threadID,
		"max_turns", l.opts.MaxTurns,
	)
	return nil, fmt.Errorf("%w: aborted after %d turns", ErrMaxTurns, l.opts.MaxTurns)
}

// executeToolCall runs one tool call and converts it to a tool-result
// message. Handler failures become error-content results so the model
// can recover; they never abort the thread.
func (l *Loop) executeToolCall(ctx context.Context, threadID string, tc llm.ToolCall) session.Message {
	toolStart := time.Now()

	l.logger.Info("executing tool",
		"thread_id", threadID,
		"tool", tc.Function.Name,
	)
	l.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindToolCall,
		Data: map[string]any{
			"thread_id": threadID,
			"tool":      tc.Function.Name,
		},
	})

	result, err := l.registry.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
	if err != nil {
		result = "Error: " + err.Error()
		l.logger.Error("tool execution failed",
			"thread_id", threadID,
			"tool", tc.Function.Name,
			"error", err,
		)
	}

	l.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindToolDone,
		Data: map[string]any{
			"thread_id":   threadID,
			"tool":        tc.Function.Name,
			"ok":          err == nil,
			"duration_ms": time.Since(toolStart).Milliseconds(),
		},
	})

	return session.NewMessage(llm.Message{
		Role:       llm.RoleTool,
		Content:    result,
		ToolCallID: tc.ID,
	})
}

func (l *Loop) recordUsage(ctx context.Context, threadID string, turn, inputTokens, outputTokens int) {
	if l.usageStore == nil {
		return
	}
	err := l.usageStore.Record(ctx, usage.Record{
		ThreadID:     threadID,
		Model:        l.llm.Model(),
		Turn:         turn,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	})
	if err != nil {
		l.logger.Warn("failed to persist usage record",
			"thread_id", threadID,
			"error", err,
		)
	}
}
