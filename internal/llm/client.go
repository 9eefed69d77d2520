package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    Role
	Content string
}

// Request is the normalized completion request sent to the text-generation
// provider.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Client produces a single text completion for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode   string
	APIKey string
	Model  string
}

// NewClient picks a provider by mode. "auto" uses Anthropic when an API key
// is configured and falls back to the mock client otherwise.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
		}
		return NewMockClient(nil), nil
	case "anthropic":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("anthropic API key is required for anthropic mode")
		}
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	case "mock":
		return NewMockClient(nil), nil
	default:
		return nil, fmt.Errorf("unsupported llm client mode %q", cfg.Mode)
	}
}
