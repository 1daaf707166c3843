package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ModelInfo is one catalog entry, used for context-window checks on dataset
// digests and for cost estimates in the inference log. Prices are
// illustrative; refresh them with `datalens models fetch`.
type ModelInfo struct {
	Name          string  `json:"Name"`
	Provider      string  `json:"Provider,omitempty"`
	ContextTokens int     `json:"ContextTokens"`
	InputPerK     float64 `json:"InputPerK"`  // USD per 1K input tokens
	OutputPerK    float64 `json:"OutputPerK"` // USD per 1K output tokens
}

// DefaultModel is the model of the default provider.
const DefaultModel = "gpt-4o"

// providerDefaults names the model used when neither config nor flags pick one.
var providerDefaults = map[string]string{
	ProviderOpenAI:     DefaultModel,
	ProviderOpenRouter: "openai/gpt-4o-mini",
	ProviderAnthropic:  "claude-3-5-haiku-latest",
	ProviderOllama:     "llama3.1:8b-instruct",
}

// DefaultModelFor returns the default model of provider, falling back to
// DefaultModel for unknown providers.
func DefaultModelFor(provider string) string {
	if m, ok := providerDefaults[provider]; ok {
		return m
	}
	return DefaultModel
}

func builtinCatalog() map[string]ModelInfo {
	entries := []ModelInfo{
		{"gpt-4o", ProviderOpenAI, 128000, 0.0025, 0.01},
		{"gpt-4o-mini", ProviderOpenAI, 128000, 0.00015, 0.0006},
		{"claude-3-5-sonnet-latest", ProviderAnthropic, 200000, 0.003, 0.015},
		{"claude-3-5-haiku-latest", ProviderAnthropic, 200000, 0.0008, 0.004},
		{"deepseek/deepseek-r1:free", ProviderOpenRouter, 128000, 0, 0},
		{"openai/gpt-4o-mini", ProviderOpenRouter, 128000, 0.0006, 0.0024},
		{"openai/gpt-4o", ProviderOpenRouter, 128000, 0.005, 0.015},
		{"openai/gpt-4.1-mini", ProviderOpenRouter, 128000, 0.0005, 0.0015},
		{"anthropic/claude-3.5-sonnet", ProviderOpenRouter, 200000, 0.003, 0.015},
		{"anthropic/claude-3-haiku", ProviderOpenRouter, 200000, 0.00025, 0.00125},
		{"google/gemini-1.5-flash", ProviderOpenRouter, 1000000, 0.0002, 0.0008},
		{"google/gemini-1.5-pro", ProviderOpenRouter, 1000000, 0.00125, 0.005},
		{"meta-llama/llama-3.1-8b-instruct", ProviderOpenRouter, 131072, 0, 0},
		{"meta-llama/llama-3.1-70b-instruct", ProviderOpenRouter, 131072, 0, 0},
		// Local tags; Ollama's default num_ctx is far below the model maximum.
		{"llama3:latest", ProviderOllama, 8192, 0, 0},
		{"llama3.1:8b-instruct", ProviderOllama, 8192, 0, 0},
		{"llama3.1:70b-instruct", ProviderOllama, 8192, 0, 0},
		{"mistral-nemo:latest", ProviderOllama, 8192, 0, 0},
		{"mistral:7b-instruct", ProviderOllama, 8192, 0, 0},
		{"phi3:mini-4k-instruct", ProviderOllama, 4096, 0, 0},
		{"phi3:mini-128k-instruct", ProviderOllama, 128000, 0, 0},
	}
	m := make(map[string]ModelInfo, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}

var (
	catalogMu sync.RWMutex
	models    = builtinCatalog()
)

// LookupModel returns ModelInfo and ok flag. A routed name such as
// "openai/gpt-4o" falls back to its bare model name.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	if mi, ok := models[name]; ok {
		return mi, true
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		mi, ok := models[name[i+1:]]
		return mi, ok
	}
	return ModelInfo{}, false
}

// EstimateCostUSD prices a call from its token usage. Unknown models return
// ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	return float64(promptTokens)/1000*mi.InputPerK + float64(completionTokens)/1000*mi.OutputPerK, true
}

// LoadCatalogFromJSON reads a name → ModelInfo object, e.g.
// {"openai/gpt-4o-mini": {"ContextTokens": 128000, "InputPerK": 0.0006, "OutputPerK": 0.0024}}.
// A missing Name is filled from the key.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes a catalog document and rejects entries without a
// context window.
func ParseCatalog(data []byte) (map[string]ModelInfo, error) {
	var m map[string]ModelInfo
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for k, v := range m {
		if v.ContextTokens <= 0 {
			return nil, fmt.Errorf("catalog entry %q has no ContextTokens", k)
		}
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	models = make(map[string]ModelInfo, len(m))
	for k, v := range m {
		models[k] = v
	}
}

// MergeCatalog adds or replaces entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		models[k] = v
	}
}

// ResetCatalog restores the built-in catalog.
func ResetCatalog() {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	models = builtinCatalog()
}

// Catalog returns a copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
