package llm

import (
	"context"
	"strings"
)

// MockClient provides deterministic local completions when no provider is
// configured, and scripted completions in tests.
type MockClient struct {
	script func(Request) (string, error)
}

// NewMockClient builds a mock client. A nil script gets a canned reply that
// keeps the pipeline functional without a provider.
func NewMockClient(script func(Request) (string, error)) *MockClient {
	return &MockClient{script: script}
}

func (c *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if c.script != nil {
		return c.script(req)
	}
	return cannedReply(req), nil
}

func cannedReply(req Request) string {
	// SQL synthesis prompts get a trivially valid statement; everything else
	// gets a short canned narration.
	if strings.Contains(req.System, "SQL") {
		return "SELECT 1 AS ok"
	}
	return "Mock analysis: no text-generation provider is configured, so this is a canned response."
}
