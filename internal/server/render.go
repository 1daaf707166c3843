package server

import (
	"time"

	"github.com/KaramelBytes/datalens/internal/analysis"
	"github.com/KaramelBytes/datalens/internal/chart"
	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/session"
	"github.com/KaramelBytes/datalens/internal/table"
)

// previewRows is how many rows the overview carries.
const previewRows = 100

// ColumnInfo describes one column of a rendered table.
type ColumnInfo struct {
	Name string           `json:"name"`
	Type table.ColumnType `json:"type"`
}

// TableData is a table rendered row-major for a grid widget.
type TableData struct {
	Columns   []ColumnInfo `json:"columns"`
	Rows      [][]any      `json:"rows"`
	TotalRows int          `json:"total_rows"`
}

func renderTable(t *table.Table, limit int) *TableData {
	if t == nil {
		return nil
	}
	out := &TableData{Columns: make([]ColumnInfo, 0, t.Width()), TotalRows: t.Len()}
	for _, c := range t.Columns {
		out.Columns = append(out.Columns, ColumnInfo{Name: c.Name, Type: c.Type})
	}
	n := t.Len()
	if limit > 0 && n > limit {
		n = limit
	}
	out.Rows = make([][]any, n)
	for i := 0; i < n; i++ {
		row := t.Row(i)
		for j, v := range row {
			if ts, ok := v.(time.Time); ok {
				row[j] = ts.Format(table.TimeLayout)
			}
		}
		out.Rows[i] = row
	}
	return out
}

// Overview is the render model of the data tab.
type Overview struct {
	Session      string                  `json:"session"`
	File         string                  `json:"file"`
	Format       string                  `json:"format"`
	Encoding     string                  `json:"encoding,omitempty"`
	Summary      *analysis.SummaryReport `json:"summary"`
	Inferences   []ingest.Inference      `json:"inferences,omitempty"`
	Warnings     []string                `json:"warnings,omitempty"`
	View         table.View              `json:"view"`
	SourceRows   int                     `json:"source_rows"`
	Preview      *TableData              `json:"preview"`
	Availability map[chart.Kind]bool     `json:"chart_availability"`
	HasInsights  bool                    `json:"has_insights"`
}

func overview(sess *session.Session) *Overview {
	return &Overview{
		Session:      sess.ID,
		File:         sess.Name,
		Format:       sess.Format,
		Encoding:     sess.Encoding,
		Summary:      analysis.Summarize(sess.Current),
		Inferences:   sess.Inferences,
		Warnings:     sess.Warnings,
		View:         sess.View,
		SourceRows:   sess.Source.Len(),
		Preview:      renderTable(sess.Current, previewRows),
		Availability: chart.Availability(sess.Current),
		HasInsights:  sess.Insights != nil,
	}
}

// queryResponse flattens the query result and adds the operation's rows.
type queryResponse struct {
	*insight.QueryResult
	Rows *TableData `json:"rows,omitempty"`
}

func renderQuery(res *insight.QueryResult) queryResponse {
	out := queryResponse{QueryResult: res}
	if res.Data != nil {
		out.Rows = renderTable(res.Data.Table, 0)
	}
	return out
}

// historyEntry is one row of the question history.
type historyEntry struct {
	At time.Time `json:"at"`
	queryResponse
}
