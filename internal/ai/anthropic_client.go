package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
)

// defaultAnthropicMaxTokens is sent when the request leaves MaxTokens unset;
// the Messages API requires one.
const defaultAnthropicMaxTokens = 1024

// AnthropicClient runs prompts against the Anthropic Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	apiKey  string
	backoff Backoff
}

// NewAnthropicClient builds a client. The SDK's own retries are disabled so
// the shared backoff policy applies.
func NewAnthropicClient(apiKey, baseURL string, httpTimeout time.Duration, backoff Backoff) *AnthropicClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: httpTimeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		apiKey:  apiKey,
		backoff: backoff.withDefaults(500*time.Millisecond, 4*time.Second),
	}
}

// Generate sends the conversation as one Messages call. System messages are
// joined into the system prompt. The API has no JSON mode, so
// ResponseFormat is left to the prompt.
func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, &ConfigError{Provider: ProviderAnthropic, Key: "ANTHROPIC_API_KEY"}
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaultAnthropicMaxTokens
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	var msg *anthropic.Message
	err := c.backoff.retry(ctx, func() error {
		m, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return fromAnthropicError(err)
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &GenerateResponse{
		ID:        msg.ID,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		Usage:     Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		RequestID: msg.ID,
	}, nil
}

func fromAnthropicError(err error) error {
	var sdkErr *anthropic.Error
	if !errors.As(err, &sdkErr) {
		return fmt.Errorf("anthropic request: %w", err)
	}
	raw := sdkErr.RawJSON()
	apiErr := &APIError{
		StatusCode: sdkErr.StatusCode,
		Code:       gjson.Get(raw, "error.type").String(),
		Message:    gjson.Get(raw, "error.message").String(),
	}
	var header http.Header
	if sdkErr.Response != nil {
		header = sdkErr.Response.Header
		apiErr.RequestID = extractRequestID(header)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(sdkErr.StatusCode)
	}
	// 529 is Anthropic's overloaded status.
	if sdkErr.StatusCode == 529 {
		return &ServerError{APIError: apiErr}
	}
	return classifyAPIError(apiErr, header)
}
