package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

// transient marks the failure as worth retrying after backoff.
func (e *RateLimitError) transient() bool { return true }

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError indicates the requested model is not available.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError indicates a 4xx request problem (e.g., 400 validation).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates billing/quota problems.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

func (e *ServerError) transient() bool { return true }

// UnreachableError indicates the target runtime is not reachable (e.g., local Ollama down).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

// ConfigError reports a runtime that cannot be used as configured, most often
// because its API key is missing. It is raised on first use, not at startup.
type ConfigError struct {
	Provider string
	Key      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s runtime is not configured: set %s or DATALENS_API_KEY", e.Provider, e.Key)
}

// Reason labels err with a short stable name for metrics and logs: "ok" for
// nil, the failure class for typed runtime errors, "error" otherwise.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, new(*ConfigError)):
		return "not_configured"
	case errors.As(err, new(*AuthError)):
		return "auth"
	case errors.As(err, new(*RateLimitError)):
		return "rate_limited"
	case errors.As(err, new(*QuotaExceededError)):
		return "quota"
	case errors.As(err, new(*ModelNotFoundError)):
		return "model_not_found"
	case errors.As(err, new(*BadRequestError)):
		return "bad_request"
	case errors.As(err, new(*ServerError)):
		return "provider_error"
	case errors.As(err, new(*UnreachableError)):
		return "unreachable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
