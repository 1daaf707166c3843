package ai

import "context"

// Runtime is a minimal interface implemented by AI backends/runtimes
// such as OpenAI, OpenRouter and local runtimes (e.g., Ollama).
// It aligns to the shared request/response types in this package.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI and server for selection.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

// Providers lists the registered provider names in display order.
var Providers = []string{ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic, ProviderOllama}
