package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/datalens/internal/table"
)

func ingest(t *testing.T, name, body string) *Result {
	t.Helper()
	res, err := Ingest(context.Background(), name, []byte(body), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, res.Table.Validate())
	return res
}

func col(t *testing.T, tb *table.Table, name string) *table.Column {
	t.Helper()
	c, ok := tb.Column(name)
	require.True(t, ok, "missing column %q in %v", name, tb.Names())
	return c
}

func kindOf(err error) Kind {
	var ie *IngestionError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

func TestEncodingFallbackUsesEarliestThatDecodes(t *testing.T) {
	cases := []struct {
		name      string
		data      []byte
		encodings []string
		want      string
		city      string
	}{
		{"utf8", []byte("name,city\nJosé,München\n"), nil, "utf-8", "München"},
		{"latin1 bytes", []byte("name,city\nJos\xe9,M\xfcnchen\n"), nil, "latin-1", "München"},
		{"windows-1252 listed first", []byte("name,city\nJos\xe9,M\xfcnchen\n"), []string{"windows-1252", "latin-1"}, "windows-1252", "München"},
		{"lossy fallback", []byte("name,city\nJos\xe9,M\xfcnchen\n"), []string{"utf-8"}, "", "Mnchen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Ingest(context.Background(), "people.csv", tc.data, Options{Encodings: tc.encodings})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Encoding)
			assert.Equal(t, tc.city, col(t, res.Table, "city").Values[0])
		})
	}
}

func TestUTF8BOMIsStripped(t *testing.T) {
	res := ingest(t, "a.csv", "\ufeffid,label\n1,x\n")
	assert.Equal(t, []string{"id", "label"}, res.Table.Names())
}

func TestEmptyUploadIsZeroRowTable(t *testing.T) {
	for _, name := range []string{"a.csv", "a.tsv", "a.json", "a.xlsx"} {
		t.Run(name, func(t *testing.T) {
			for _, body := range []string{"", "  \n\t "} {
				res := ingest(t, name, body)
				assert.Equal(t, 0, res.Table.Len())
				assert.Equal(t, 0, res.Table.Width())
			}
		})
	}
}

func TestHeaderOnlyCSVKeepsUnknownColumns(t *testing.T) {
	res := ingest(t, "a.csv", "a,b,c\n")
	assert.Equal(t, 0, res.Table.Len())
	assert.Equal(t, []string{"a", "b", "c"}, res.Table.Names())
	for _, c := range res.Table.Columns {
		assert.Equal(t, table.Unknown, c.Type)
	}
}

func TestNumericPromotionIsStrictlyAboveHalf(t *testing.T) {
	cases := []struct {
		name string
		body string
		want table.ColumnType
	}{
		{"exactly half stays text", "v\n1\n2\nx\ny\n", table.Text},
		{"three of four promotes", "v\n1\n2\n3\ny\n", table.Numeric},
		{"currency and separators", "v\n\"$1,200.50\"\n$3\n4\n", table.Numeric},
		{"nan and inf rejected", "v\nInf\nInfinity\n1\n", table.Text},
		{"all text", "v\na\nb\n", table.Text},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ingest(t, "a.csv", tc.body)
			assert.Equal(t, tc.want, col(t, res.Table, "v").Type)
		})
	}

	res := ingest(t, "a.csv", "v\n1\n2\n3\ny\n")
	assert.Equal(t, []any{1.0, 2.0, 3.0, nil}, col(t, res.Table, "v").Values)

	res = ingest(t, "a.csv", "v\n\"$1,200.50\"\n$3\n4\n")
	assert.Equal(t, []any{1200.5, 3.0, 4.0}, col(t, res.Table, "v").Values)
	require.Len(t, res.Inferences, 1)
	assert.True(t, res.Inferences[0].Promoted)
	assert.InDelta(t, 1.0, res.Inferences[0].Ratio, 1e-9)
}

func TestDateCoercionByColumnName(t *testing.T) {
	body := "order_date,created_by,Updated At,note\n" +
		"2024-01-15,alice,2024-01-15 10:30:00,2024-01-15\n" +
		"2024-02-01,bob,garbage,x\n" +
		"not a date,carol,,y\n"
	res := ingest(t, "orders.csv", body)

	od := col(t, res.Table, "order_date")
	assert.Equal(t, table.Timestamp, od.Type)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), od.Values[0])
	assert.Nil(t, od.Values[2])

	// Nothing parses, so the column stays text.
	assert.Equal(t, table.Text, col(t, res.Table, "created_by").Type)

	up := col(t, res.Table, "Updated At")
	assert.Equal(t, table.Timestamp, up.Type)
	assert.Nil(t, up.Values[1])

	// Not a date-like name.
	assert.Equal(t, table.Text, col(t, res.Table, "note").Type)
}

func TestNATokensAndShortRows(t *testing.T) {
	res := ingest(t, "a.csv", "a,b,c\n1,NA,x\n2,N/A\n3,null,#N/A\n")
	b := col(t, res.Table, "c")
	assert.Equal(t, []any{"x", nil, nil}, b.Values)
	_, hasB := res.Table.Column("b")
	assert.False(t, hasB, "all-null column should be dropped")
}

func TestLongRowIsParseError(t *testing.T) {
	_, err := Ingest(context.Background(), "a.csv", []byte("a,b\n1,2,3\n"), DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, KindParse, kindOf(err))
}

func TestDropsEmptyRowsAndColumns(t *testing.T) {
	res := ingest(t, "a.csv", "a,b,c\n1,,x\n,,\n2,,y\n")
	assert.Equal(t, 2, res.Table.Len())
	assert.Equal(t, []string{"a", "c"}, res.Table.Names())
}

func TestHeaderNormalization(t *testing.T) {
	res := ingest(t, "a.csv", " id ,,id,name,name \n1,2,3,4,5\n")
	assert.Equal(t, []string{"id", "Unnamed: 1", "id.1", "name", "name.1"}, res.Table.Names())
}

func TestTSVUsesTabDelimiter(t *testing.T) {
	res := ingest(t, "a.tsv", "a\tb\n1\t2\n")
	assert.Equal(t, []string{"a", "b"}, res.Table.Names())
	assert.Equal(t, 2.0, col(t, res.Table, "b").Values[0])
}

func TestMaxRowsTruncatesWithWarning(t *testing.T) {
	res, err := Ingest(context.Background(), "a.csv", []byte("a\n1\n2\n3\n"), Options{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Table.Len())
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "truncated")
}

func TestJSONShapes(t *testing.T) {
	records := `[{"region":"east","sales":10,"meta":{"id":1,"tags":["a","b"]},"ok":true},
		{"region":"west","sales":20.5,"meta":{"id":2},"ok":false}]`

	flat := ingest(t, "a.json", records)
	wrapped := ingest(t, "a.json", `{"data":`+records+`}`)
	assert.Equal(t, flat.Table, wrapped.Table)

	tb := flat.Table
	assert.Equal(t, []string{"region", "sales", "meta.id", "meta.tags", "ok"}, tb.Names())
	assert.Equal(t, table.Numeric, col(t, tb, "sales").Type)
	assert.Equal(t, []any{10.0, 20.5}, col(t, tb, "sales").Values)
	assert.Equal(t, []any{`["a","b"]`, nil}, col(t, tb, "meta.tags").Values)
	assert.Equal(t, []any{"true", "false"}, col(t, tb, "ok").Values)

	one := ingest(t, "a.json", `{"a":1,"b":"x"}`)
	assert.Equal(t, 1, one.Table.Len())
	assert.Equal(t, []string{"a", "b"}, one.Table.Names())

	// Two keys, so it is a single record even though one holds an array.
	two := ingest(t, "a.json", `{"rows":[1,2],"name":"x"}`)
	assert.Equal(t, 1, two.Table.Len())

	for _, body := range []string{`42`, `"text"`, `[1,2,3]`, `{"data":[1,2]}`} {
		_, err := Ingest(context.Background(), "a.json", []byte(body), DefaultOptions())
		require.Error(t, err, body)
		assert.Equal(t, KindUnsupportedShape, kindOf(err), body)
	}

	_, err := Ingest(context.Background(), "a.json", []byte(`{"a":`), DefaultOptions())
	assert.Equal(t, KindDecode, kindOf(err))
}

func TestJSONExportEnvelopeIsUnwrapped(t *testing.T) {
	doc := `{
  "metadata": {"rows": 2, "columns": 2, "column_names": ["region", "sales"]},
  "data": [{"region": "east", "sales": 10}, {"region": "west", "sales": null}]
}`
	res := ingest(t, "export.json", doc)
	assert.Equal(t, 2, res.Table.Len())
	assert.Equal(t, []string{"region", "sales"}, res.Table.Names())
	assert.Equal(t, []any{10.0, nil}, col(t, res.Table, "sales").Values)

	empty := ingest(t, "export.json", `{"metadata": {"column_names": ["a", "b"]}, "data": []}`)
	assert.Equal(t, 0, empty.Table.Len())
	assert.Equal(t, []string{"a", "b"}, empty.Table.Names())

	// A data array beside any other key is still one record.
	other := ingest(t, "a.json", `{"meta": {"v": 1}, "data": [{"x": 1}]}`)
	assert.Equal(t, 1, other.Table.Len())
}

func TestJSONMixedColumnResolvesToOneType(t *testing.T) {
	res := ingest(t, "a.json", `[{"v":1},{"v":"x"},{"v":"2"}]`)
	v := col(t, res.Table, "v")
	assert.Equal(t, table.Numeric, v.Type)
	assert.Equal(t, []any{1.0, nil, 2.0}, v.Values)
}

func TestSpreadsheetFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"product", "units", "order date"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"widget", 3, "2024-03-01"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"gadget", 5, "2024-03-02"}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]any{"ignored"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := Ingest(context.Background(), "book.xlsx", buf.Bytes(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "spreadsheet", res.Format)
	assert.Equal(t, []string{"product", "units", "order date"}, res.Table.Names())
	assert.Equal(t, []any{3.0, 5.0}, col(t, res.Table, "units").Values)
	assert.Equal(t, table.Timestamp, col(t, res.Table, "order date").Type)
}

func TestLegacyXLSIsDescriptiveError(t *testing.T) {
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 64)...)
	_, err := Ingest(context.Background(), "old.xls", data, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, KindDecode, kindOf(err))
	assert.Contains(t, err.Error(), ".xlsx")
}

func TestUnsupportedExtension(t *testing.T) {
	_, err := Ingest(context.Background(), "notes.txt", []byte("hello"), DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, KindUnsupportedFormat, kindOf(err))
	assert.False(t, Supported("notes.txt"))
	assert.True(t, Supported("DATA.CSV"))
}

func TestDecodeBypassesExtension(t *testing.T) {
	res, err := Decode(context.Background(), "json", []byte(`[{"a":1}]`), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Len())

	_, err = Decode(context.Background(), "parquet", []byte("x"), DefaultOptions())
	assert.Equal(t, KindUnsupportedFormat, kindOf(err))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	bodies := []string{
		"id,amount,signup_date,city, city \n1,$10,2024-01-01,a,b\n2,x,bad,c,d\n3,\"1,000\",,e,f\n,,,,\n",
		"a,b\n,\n",
		"created_at,v\nnope,1\n2024-05-05,\n",
	}
	for _, body := range bodies {
		res := ingest(t, "a.csv", body)
		again, _ := Normalize(res.Table)
		assert.Equal(t, res.Table, again)
	}

	// A value nulled by promotion keeps its row; normalizing again may drop
	// that row but never changes a column's type.
	res := ingest(t, "a.csv", "x,created\n1,2024-01-01\n2,2024-01-02\n3,2024-01-03\nbar,soon\n")
	again, _ := Normalize(res.Table)
	assert.Equal(t, res.Table.Names(), again.Names())
	for i, c := range res.Table.Columns {
		assert.Equal(t, c.Type, again.Columns[i].Type, c.Name)
	}
}

func TestCoercionKeepsRowsItNulls(t *testing.T) {
	res := ingest(t, "a.csv", "x\n1\n2\n3\nbar\n")
	require.Equal(t, 4, res.Table.Len())
	x := col(t, res.Table, "x")
	assert.Equal(t, table.Numeric, x.Type)
	assert.Equal(t, []any{1.0, 2.0, 3.0, nil}, x.Values)

	res = ingest(t, "a.csv", "updated\n2024-01-01\nlater\n")
	require.Equal(t, 2, res.Table.Len())
	assert.Equal(t, table.Timestamp, col(t, res.Table, "updated").Type)
	assert.Nil(t, col(t, res.Table, "updated").Values[1])
}

func TestIngestHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Ingest(ctx, "a.csv", []byte("a\n1\n"), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
