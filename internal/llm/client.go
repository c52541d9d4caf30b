package llm

import (
	"context"
	"fmt"

	"github.com/lodestone-labs/synapse/internal/config"
)

// Client is the interface for text-generation providers. The synthesis and
// clustering engines expect (but never trust) JSON-shaped responses.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request holds one completion request.
type Request struct {
	Prompt      string
	MaxTokens   int     // 0 = provider default (2048)
	Temperature float64 // 0 = provider default (0.3)
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return 2048
	}
	return r.MaxTokens
}

func (r Request) temperature() float64 {
	if r.Temperature <= 0 {
		return 0.3
	}
	return r.Temperature
}

// Response holds the result of a completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewClient creates a client based on the config provider setting.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
