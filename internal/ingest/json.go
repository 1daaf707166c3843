package ingest

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

type jsonDecoder struct{}

func (jsonDecoder) Format() string { return "json" }

func (jsonDecoder) CanDecode(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".json")
}

func (jsonDecoder) Decode(data []byte, _ Options) (*Frame, error) {
	if !gjson.ValidBytes(data) {
		return nil, fail(KindDecode, "json", errors.New("invalid JSON document"))
	}
	root := gjson.ParseBytes(data)
	if records, names, ok := envelope(root); ok {
		fr := flattenRecords(records)
		if len(fr.Header) == 0 {
			fr.Header = names
		}
		return fr, nil
	}
	records, err := recordsOf(root)
	if err != nil {
		return nil, fail(KindUnsupportedShape, "json", err)
	}
	return flattenRecords(records), nil
}

// envelope unwraps the export layout {"metadata": {...}, "data": [...]}.
// The column names in metadata label an empty data array.
func envelope(root gjson.Result) ([]gjson.Result, []string, bool) {
	if !root.IsObject() {
		return nil, nil, false
	}
	var keys int
	root.ForEach(func(_, _ gjson.Result) bool {
		keys++
		return true
	})
	meta, rows := root.Get("metadata"), root.Get("data")
	if keys != 2 || !meta.IsObject() || !rows.IsArray() {
		return nil, nil, false
	}
	records, err := objectsOnly(rows.Array())
	if err != nil {
		return nil, nil, false
	}
	var names []string
	for _, n := range meta.Get("column_names").Array() {
		names = append(names, n.String())
	}
	return records, names, true
}

// recordsOf applies the shape rules: an array of objects is a record list,
// an object whose only key holds an array is unwrapped, and any other object
// is a single record.
func recordsOf(root gjson.Result) ([]gjson.Result, error) {
	switch {
	case root.IsArray():
		return objectsOnly(root.Array())
	case root.IsObject():
		var keys int
		var only gjson.Result
		root.ForEach(func(_, v gjson.Result) bool {
			keys++
			only = v
			return keys < 2
		})
		if keys == 1 && only.IsArray() {
			return objectsOnly(only.Array())
		}
		return []gjson.Result{root}, nil
	}
	return nil, errors.New("top level must be an object or an array of objects")
}

func objectsOnly(items []gjson.Result) ([]gjson.Result, error) {
	for _, it := range items {
		if !it.IsObject() {
			return nil, errors.New("array elements must be objects")
		}
	}
	return items, nil
}

func flattenRecords(records []gjson.Result) *Frame {
	fr := &Frame{}
	pos := map[string]int{}
	flat := make([]map[string]any, len(records))
	for i, rec := range records {
		m := map[string]any{}
		flattenInto(m, "", rec, func(key string) {
			if _, ok := pos[key]; !ok {
				pos[key] = len(fr.Header)
				fr.Header = append(fr.Header, key)
			}
		})
		flat[i] = m
	}
	for _, m := range flat {
		row := make([]any, len(fr.Header))
		for k, v := range m {
			row[pos[k]] = v
		}
		fr.Rows = append(fr.Rows, row)
	}
	return fr
}

func flattenInto(dst map[string]any, prefix string, obj gjson.Result, seen func(string)) {
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if prefix != "" {
			key = prefix + "." + key
		}
		if v.IsObject() {
			flattenInto(dst, key, v, seen)
			return true
		}
		seen(key)
		dst[key] = scalar(v)
		return true
	})
}

func scalar(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Float()
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.String:
		return v.Str
	}
	// Arrays keep their JSON text.
	return v.Raw
}
