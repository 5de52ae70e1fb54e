package agents

import (
	"context"
	"encoding/json"
	"strings"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/models"
)

// Agent is a retrieval agent: given a query it returns a context summary
// plus citations. Implementations must honor ctx cancellation.
type Agent interface {
	Name() string
	Retrieve(ctx context.Context, query string) (*models.Retrieval, error)
}

// LLM is the slice of the Gemini client the reasoning agents need. Kept as
// an interface so tests can substitute canned responses.
type LLM interface {
	Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (*ai.Result, error)
}

// decodeJSONPayload unmarshals a model response into v, stripping markdown
// code fences and tolerating the payload arriving as a JSON-encoded string
// instead of an object.
func decodeJSONPayload(raw string, v interface{}) error {
	cleaned := stripCodeFence(raw)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	// Some responses double-encode: a JSON string whose content is the
	// actual object.
	var inner string
	if err := json.Unmarshal([]byte(cleaned), &inner); err != nil {
		// Report the original failure, not the string-probe one.
		return json.Unmarshal([]byte(cleaned), v)
	}
	return json.Unmarshal([]byte(inner), v)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
