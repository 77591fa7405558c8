// Package provider holds the language-model clients the query generators
// call when a provider is configured. The pipeline's rule tables are the
// fallback, so the whole service runs with zero providers.
package provider

import (
	"context"
	"time"
)

// Provider is a text-completion capable language-model backend.
type Provider interface {
	ID() string
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single-turn completion request.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Response carries the model's text and token accounting.
type Response struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Config holds the settings for one provider instance.
type Config struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Name     string        `json:"name"`
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}
