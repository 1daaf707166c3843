package insight

import "fmt"

// ServiceError is returned when an insight or query call fails for any
// reason: the runtime call itself, or a reply that could not be used.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ParseError describes a reply that is not valid JSON or does not match the
// expected shape. Raw holds the reply text, truncated for logging.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "unusable model reply: " + e.Reason
}
