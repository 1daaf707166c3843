package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/datalens/internal/table"
)

// Options controls decoding.
type Options struct {
	// Encodings is the CSV decode order. Empty means DefaultEncodings.
	Encodings []string
	// Delimiter for CSV. If 0, ',' is used, or '\t' for .tsv files.
	Delimiter rune
	// MaxRows limits data rows kept; 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns the decode settings used when none are configured.
func DefaultOptions() Options {
	return Options{Encodings: append([]string(nil), DefaultEncodings...)}
}

// Frame is the raw decoder output before normalization. Cells are nil,
// string or float64.
type Frame struct {
	Header   []string
	Rows     [][]any
	Encoding string
	Warnings []string
}

// Result is a normalized table plus what was learned producing it.
type Result struct {
	Table      *table.Table
	Inferences []Inference
	Format     string
	Encoding   string
	Warnings   []string
}

// Decoder turns raw upload bytes of one format into a Frame.
type Decoder interface {
	Format() string
	CanDecode(filename string) bool
	Decode(data []byte, opt Options) (*Frame, error)
}

var registry []Decoder

// Register adds a decoder implementation to the registry.
func Register(d Decoder) {
	registry = append(registry, d)
}

func init() {
	Register(csvDecoder{})
	Register(xlsxDecoder{})
	Register(jsonDecoder{})
}

// Supported reports whether any registered decoder accepts the filename.
func Supported(filename string) bool {
	_, ok := decoderFor(filename)
	return ok
}

func decoderFor(filename string) (Decoder, bool) {
	for _, d := range registry {
		if d.CanDecode(filename) {
			return d, true
		}
	}
	return nil, false
}

// ReadFile ingests a file from disk.
func ReadFile(ctx context.Context, path string, opt Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Ingest(ctx, filepath.Base(path), data, opt)
}

// Ingest picks a decoder by the file extension of name, decodes data and
// normalizes the result.
func Ingest(ctx context.Context, name string, data []byte, opt Options) (*Result, error) {
	d, ok := decoderFor(name)
	if !ok {
		ext := filepath.Ext(name)
		if ext == "" {
			ext = name
		}
		return nil, fail(KindUnsupportedFormat, "", fmt.Errorf("%q", ext))
	}
	if d.Format() == "csv" && opt.Delimiter == 0 && isTSV(name) {
		opt.Delimiter = '\t'
	}
	return run(ctx, d, data, opt)
}

// Decode ingests data as the named format ("csv", "spreadsheet" or "json"),
// bypassing extension detection.
func Decode(ctx context.Context, format string, data []byte, opt Options) (*Result, error) {
	for _, d := range registry {
		if d.Format() == format {
			return run(ctx, d, data, opt)
		}
	}
	return nil, fail(KindUnsupportedFormat, "", fmt.Errorf("%q", format))
}

func run(ctx context.Context, d Decoder, data []byte, opt Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{Format: d.Format()}
	if isBlank(data) {
		res.Table = table.New()
		return res, nil
	}
	fr, err := d.Decode(data, opt)
	if err != nil {
		var ie *IngestionError
		if errors.As(err, &ie) {
			return nil, ie
		}
		return nil, fail(KindParse, d.Format(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Encoding = fr.Encoding
	res.Warnings = append(res.Warnings, fr.Warnings...)
	if opt.MaxRows > 0 && len(fr.Rows) > opt.MaxRows {
		res.Warnings = append(res.Warnings, fmt.Sprintf("truncated to the first %d of %d rows", opt.MaxRows, len(fr.Rows)))
		fr.Rows = fr.Rows[:opt.MaxRows]
	}
	t, err := fr.table()
	if err != nil {
		return nil, fail(KindParse, d.Format(), err)
	}
	res.Table, res.Inferences = Normalize(t)
	if err := res.Table.Validate(); err != nil {
		return nil, fail(KindParse, d.Format(), err)
	}
	return res, nil
}

func isBlank(data []byte) bool {
	return len(bytes.TrimSpace(bytes.TrimPrefix(data, []byte(bom)))) == 0
}
