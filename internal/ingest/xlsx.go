package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxDecoder struct{}

func (xlsxDecoder) Format() string { return "spreadsheet" }

func (xlsxDecoder) CanDecode(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xls")
}

// oleSignature opens legacy BIFF workbooks.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var errLegacyXLS = errors.New("legacy .xls (BIFF) workbooks are not supported; re-save the file as .xlsx")

func (xlsxDecoder) Decode(data []byte, opt Options) (*Frame, error) {
	if bytes.HasPrefix(data, oleSignature) {
		return nil, fail(KindDecode, "spreadsheet", errLegacyXLS)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fail(KindDecode, "spreadsheet", fmt.Errorf("open workbook: %w", err))
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Frame{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fail(KindParse, "spreadsheet", fmt.Errorf("read sheet %q: %w", sheets[0], err))
	}
	if len(rows) == 0 {
		return &Frame{}, nil
	}
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	// Cells beyond the header row get unnamed columns.
	header := make([]string, width)
	copy(header, rows[0])
	fr := &Frame{Header: header}
	for _, r := range rows[1:] {
		row := make([]any, width)
		for i, v := range r {
			row[i] = cellOrNull(v)
		}
		fr.Rows = append(fr.Rows, row)
	}
	return fr, nil
}
