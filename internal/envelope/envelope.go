// Package envelope packages the model's final answer into the
// transaction response returned to callers.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dossier-ai/dossier-agent/internal/catalog"
)

// ErrMalformedOutput indicates the model's final answer was not the
// requested JSON section array.
var ErrMalformedOutput = errors.New("model output is not a valid section array")

// Envelope is the external response shape. Field names are part of
// the wire contract consumed by the CV system.
type Envelope struct {
	TransactionID   string            `json:"TransactionId"`
	InfoSectionList []catalog.Section `json:"InfoSectionList"`
}

// StripFences removes a surrounding markdown code fence from s if
// present. Models often wrap JSON answers in ```json fences despite
// being told not to. Text without an opening fence is returned
// unchanged (apart from whitespace trimming), so backticks inside
// field values survive.
func StripFences(s string) string {
	out := strings.TrimSpace(s)
	if !strings.HasPrefix(out, "```") {
		return out
	}

	// Drop the opening fence line (``` or ```json).
	if idx := strings.Index(out, "\n"); idx >= 0 {
		out = out[idx+1:]
	} else {
		out = strings.TrimPrefix(out, "```json")
		out = strings.TrimPrefix(out, "```")
	}

	if idx := strings.LastIndex(out, "```"); idx >= 0 {
		out = out[:idx]
	}

	return strings.TrimSpace(out)
}

// Package parses the model's raw final answer and wraps it in an
// Envelope for the given transaction id. A fence-wrapped answer is
// unwrapped first. Unparseable output yields ErrMalformedOutput; no
// partial envelope is produced.
func Package(raw, transactionID string) (*Envelope, error) {
	clean := StripFences(raw)

	var sections []catalog.Section
	if err := json.Unmarshal([]byte(clean), &sections); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return &Envelope{
		TransactionID:   transactionID,
		InfoSectionList: sections,
	}, nil
}
