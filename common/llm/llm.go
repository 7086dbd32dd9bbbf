package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when the provider answers without any text.
var ErrEmptyCompletion = errors.New("llm returned no content")

// Config holds LLM client configuration.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string // Required: API key for the provider
	BaseURL  string // Optional: custom API endpoint
	Model    string // Optional: provider default when empty
}

// Client completes a conversation with a single text answer.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}

type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature *float64 // nil = model default
}

type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

type Response struct {
	Content          string
	FinishReason     string // "stop", "length", ...
	PromptTokens     int
	CompletionTokens int
}

// NewClient selects the provider implementation from cfg.Provider.
// Defaults to OpenAI if no provider is specified.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func Temp(t float64) *float64 {
	return &t
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 2048
	}
	return n
}
