// Package export writes tables and insight reports as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/metrics"
	"github.com/KaramelBytes/datalens/internal/table"
)

// Format is an export file format.
type Format string

const (
	CSV      Format = "csv"
	XLSX     Format = "xlsx"
	JSON     Format = "json"
	Markdown Format = "md"
	HTML     Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{CSV, XLSX, JSON, Markdown, HTML}

// ErrUnsupportedFormat is returned for an unknown format name.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat resolves a format name; "markdown" and "excel" are accepted
// aliases.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case CSV, XLSX, JSON, Markdown, HTML:
		return f, nil
	case "markdown":
		return Markdown, nil
	case "excel":
		return XLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case JSON:
		return "application/json"
	case Markdown:
		return "text/markdown; charset=utf-8"
	case HTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// Filename names the download for a dataset, stamped with ts.
func (f Format) Filename(base string, ts time.Time) string {
	stem := "data_export"
	if f == Markdown || f == HTML {
		stem = "analysis_report"
	}
	if base != "" {
		base = strings.TrimSuffix(base, fileExt(base))
		stem = base + "_" + stem
	}
	return fmt.Sprintf("%s_%s.%s", stem, ts.Format("20060102_150405"), f)
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

// Writer renders exports. Output depends only on its inputs and the clock.
type Writer struct {
	Clock clockwork.Clock
}

// NewWriter returns a Writer using the wall clock.
func NewWriter() *Writer {
	return &Writer{Clock: clockwork.NewRealClock()}
}

func (w *Writer) now() time.Time {
	if w.Clock == nil {
		return time.Now()
	}
	return w.Clock.Now()
}

// Export renders t in format f. The payload is only used by report formats
// and may be nil.
func (w *Writer) Export(f Format, t *table.Table, p *insight.Payload) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch f {
	case CSV:
		out, err = w.CSV(t)
	case XLSX:
		out, err = w.XLSX(t)
	case JSON:
		out, err = w.JSON(t)
	case Markdown:
		out = []byte(w.Markdown(t, p))
	case HTML:
		out = w.HTML(t, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", f, err)
	}
	metrics.ExportsTotal.WithLabelValues(string(f)).Inc()
	return out, nil
}

// CSV writes a header row and one record per row. Nulls are empty cells.
func (w *Writer) CSV(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Names()); err != nil {
		return nil, err
	}
	record := make([]string, t.Width())
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			record[j] = table.Format(v)
		}
		if err := cw.Write(record); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

// JSON writes {"metadata": {...}, "data": [...]} with records keeping the
// table's column order.
func (w *Writer) JSON(t *table.Table) ([]byte, error) {
	types := make(object, 0, t.Width())
	for _, c := range t.Columns {
		types = append(types, field{c.Name, string(c.Type)})
	}
	records := make([]object, t.Len())
	for i := range records {
		rec := make(object, 0, t.Width())
		for _, c := range t.Columns {
			rec = append(rec, field{c.Name, jsonCell(c.Values[i])})
		}
		records[i] = rec
	}
	envelope := object{
		{"metadata", object{
			{"export_date", w.now().Format(time.RFC3339)},
			{"rows", t.Len()},
			{"columns", t.Width()},
			{"column_names", orEmpty(t.Names())},
			{"data_types", types},
		}},
		{"data", records},
	}
	return json.MarshalIndent(envelope, "", "  ")
}

func jsonCell(v any) any {
	if ts, ok := v.(time.Time); ok {
		return ts.Format(table.TimeLayout)
	}
	return v
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type field struct {
	Key   string
	Value any
}

// object is a JSON object that keeps its key order.
type object []field

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
