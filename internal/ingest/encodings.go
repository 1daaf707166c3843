package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncodings is the CSV decode order used when none is configured.
var DefaultEncodings = []string{"utf-8", "latin-1", "windows-1252", "iso-8859-1"}

const bom = "\ufeff"

// lookupEncoding resolves a label to a decoder. A nil encoding with a nil
// error means UTF-8, which is validated rather than transcoded.
func lookupEncoding(label string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1", "l1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252", "win-1252":
		return charmap.Windows1252, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q has no decoder", label)
	}
	return enc, nil
}

// decodeText tries each encoding in order and returns the text of the first
// that decodes cleanly, along with its label. When all fail the bytes are
// decoded as UTF-8 with invalid sequences dropped and the label is empty.
func decodeText(data []byte, labels []string) (string, string, []string) {
	if len(labels) == 0 {
		labels = DefaultEncodings
	}
	var warnings []string
	for _, label := range labels {
		enc, err := lookupEncoding(label)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping unknown encoding %q", label))
			continue
		}
		if enc == nil {
			if utf8.Valid(data) {
				return strings.TrimPrefix(string(data), bom), label, warnings
			}
			continue
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil || !utf8.Valid(out) {
			continue
		}
		return strings.TrimPrefix(string(out), bom), label, warnings
	}
	warnings = append(warnings, "no encoding decoded cleanly; undecodable bytes were dropped")
	return strings.TrimPrefix(strings.ToValidUTF8(string(data), ""), bom), "", warnings
}
