package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type csvDecoder struct{}

func (csvDecoder) Format() string { return "csv" }

func (csvDecoder) CanDecode(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || isTSV(name)
}

func isTSV(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".tsv")
}

// naTokens are cell values read as missing.
var naTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#NA": {}, "<NA>": {},
	"#N/A N/A": {}, "-1.#IND": {}, "1.#QNAN": {}, "-1.#QNAN": {}, "1.#IND": {},
}

func cellOrNull(s string) any {
	if _, ok := naTokens[s]; ok {
		return nil
	}
	return s
}

func (csvDecoder) Decode(data []byte, opt Options) (*Frame, error) {
	text, enc, warnings := decodeText(data, opt.Encodings)
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false
	if opt.Delimiter != 0 {
		r.Comma = opt.Delimiter
	}
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &Frame{Encoding: enc, Warnings: warnings}, nil
	}
	if err != nil {
		return nil, fail(KindParse, "csv", fmt.Errorf("read header: %w", err))
	}
	fr := &Frame{Header: header, Encoding: enc, Warnings: warnings}
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fail(KindParse, "csv", fmt.Errorf("record %d: %w", line, err))
		}
		if len(rec) > len(header) {
			return nil, fail(KindParse, "csv", fmt.Errorf("record %d has %d fields, header has %d", line, len(rec), len(header)))
		}
		row := make([]any, len(header))
		for i, v := range rec {
			row[i] = cellOrNull(v)
		}
		fr.Rows = append(fr.Rows, row)
	}
	return fr, nil
}
