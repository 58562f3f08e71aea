// Package tokenizer estimates token counts for transcripts. Exact
// counts come from the provider when available; this package is the
// local estimate used for logging and accounting when they are not.
package tokenizer

import "github.com/dossier-ai/dossier-agent/internal/llm"

// messageOverhead approximates the per-message token cost of role and
// framing metadata.
const messageOverhead = 4

// Counter estimates token counts for text.
type Counter interface {
	// Count returns the estimated token count of text. It never fails;
	// implementations fall back to approximation on any internal error.
	Count(text string) int
}

// Estimator is the default Counter: roughly 4 characters per token.
// Good enough for throttling decisions and usage logging.
type Estimator struct{}

// Count estimates tokens as len(text)/4.
func (Estimator) Count(text string) int {
	return len(text) / 4
}

// CountMessages sums the estimated tokens of all message contents plus
// a fixed per-message overhead.
func CountMessages(c Counter, messages []llm.Message) int {
	total := 0
	for _, m := range messages {
		total += c.Count(m.Content) + messageOverhead
	}
	return total
}
