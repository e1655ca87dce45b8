// Package llm provides the text-generation collaborator used by anomaly
// detection. It supports a local Ollama runtime and hosted OpenAI models
// behind a single Generator interface; callers treat any failure as a
// signal to fall back to local heuristics.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/commitwatch/commitwatch-go/internal/config"
	"github.com/sashabaranov/go-openai"
)

// Generator is the narrow collaborator interface the detector depends on.
// Generate is a best-effort synchronous call; it may return an error on
// unavailability or timeout.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider identifies the configured LLM backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderNone   Provider = "none"
)

// Client is a multi-provider Generator.
type Client struct {
	provider     Provider
	ollamaClient *OllamaClient
	openaiClient *openai.Client
	openaiModel  string
	timeout      time.Duration
	logger       *slog.Logger
	enabled      bool
}

// NewClient creates an LLM client for the configured provider. A client is
// always returned; with no usable provider it is disabled and every
// Generate call fails fast so callers take their fallback path.
func NewClient(cfg *config.Config) (*Client, error) {
	logger := slog.Default().With("component", "llm")

	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch Provider(cfg.LLM.Provider) {
	case ProviderOllama:
		ollama := NewOllamaClient(cfg.LLM.OllamaBinary, cfg.LLM.OllamaModel, cfg.LLM.MaxOutputBytes, timeout)
		logger.Info("ollama client initialized", "model", cfg.LLM.OllamaModel, "timeout", timeout)
		return &Client{
			provider:     ProviderOllama,
			ollamaClient: ollama,
			timeout:      timeout,
			logger:       logger,
			enabled:      true,
		}, nil

	case ProviderOpenAI:
		key := cfg.ResolveOpenAIKey()
		if key == "" {
			logger.Warn("openai provider selected but no API key configured")
			return &Client{provider: ProviderNone, logger: logger}, nil
		}
		model := cfg.LLM.OpenAIModel
		if model == "" {
			model = "gpt-4o-mini"
		}
		logger.Info("openai client initialized", "model", model)
		return &Client{
			provider:     ProviderOpenAI,
			openaiClient: openai.NewClient(key),
			openaiModel:  model,
			timeout:      timeout,
			logger:       logger,
			enabled:      true,
		}, nil

	case ProviderNone, Provider(""):
		logger.Info("llm disabled, anomaly detection will use heuristics only")
		return &Client{provider: ProviderNone, logger: logger}, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// IsEnabled returns true if a provider is configured and ready.
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// GetProvider returns the active provider.
func (c *Client) GetProvider() Provider {
	return c.provider
}

// Generate sends a prompt to the configured provider and returns the raw
// response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("llm client not enabled")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch c.provider {
	case ProviderOllama:
		return c.ollamaClient.Generate(ctx, prompt)
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, prompt)
	default:
		return "", fmt.Errorf("no provider configured")
	}
}

func (c *Client) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.openaiModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1, // low temperature for consistent classification
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	response := resp.Choices[0].Message.Content
	c.logger.Debug("openai completion",
		"model", c.openaiModel,
		"prompt_length", len(prompt),
		"response_length", len(response),
		"tokens_used", resp.Usage.TotalTokens,
	)
	return response, nil
}
