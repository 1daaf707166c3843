package ingest

import "fmt"

// Kind classifies an ingestion failure.
type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported_format"
	KindDecode            Kind = "decode"
	KindParse             Kind = "parse"
	KindUnsupportedShape  Kind = "unsupported_shape"
)

// IngestionError is returned for any upload that cannot become a Table.
// No partial table accompanies it.
type IngestionError struct {
	Kind   Kind
	Format string
	Err    error
}

func (e *IngestionError) Error() string {
	if e == nil {
		return "ingestion failed"
	}
	switch e.Kind {
	case KindUnsupportedFormat:
		return fmt.Sprintf("unsupported file format: %v", e.Err)
	case KindUnsupportedShape:
		return fmt.Sprintf("%s structure not supported: %v", e.Format, e.Err)
	}
	if e.Format != "" {
		return fmt.Sprintf("error reading %s file: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("error processing file: %v", e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

func fail(kind Kind, format string, err error) *IngestionError {
	return &IngestionError{Kind: kind, Format: format, Err: err}
}
