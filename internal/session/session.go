// Package session holds the per-user exploration state: the uploaded table,
// the active view, the last insights and the question history.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/table"
)

// maxHistory bounds the number of remembered questions per session.
const maxHistory = 100

// ErrNoData is returned by operations that need an uploaded table.
var ErrNoData = errors.New("no data uploaded")

// Entry is one answered question.
type Entry struct {
	At     time.Time            `json:"at"`
	Result *insight.QueryResult `json:"result"`
}

// Session is the explicit state of one user's exploration. Callers hold
// Lock for the duration of a request so that concurrent requests against the
// same session run one after another.
type Session struct {
	mu sync.Mutex

	ID       string
	Created  time.Time
	LastUsed time.Time

	// Name is the uploaded file name.
	Name       string
	Format     string
	Encoding   string
	Inferences []ingest.Inference
	Warnings   []string

	Source   *table.Table
	View     table.View
	Current  *table.Table
	Insights *insight.Payload
	History  []Entry
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// SetSource replaces the dataset. The view is reset and insights computed
// for the previous dataset are dropped.
func (s *Session) SetSource(name string, res *ingest.Result) {
	s.Name = name
	s.Format = res.Format
	s.Encoding = res.Encoding
	s.Inferences = res.Inferences
	s.Warnings = res.Warnings
	s.Source = res.Table
	s.View = table.View{}
	s.Current = res.Table
	s.Insights = nil
}

// HasData reports whether a table has been uploaded.
func (s *Session) HasData() bool { return s.Source != nil }

// Table returns the current view of the data.
func (s *Session) Table() (*table.Table, error) {
	if s.Current == nil {
		return nil, ErrNoData
	}
	return s.Current, nil
}

// ApplyView restricts the source to a column selection and row filters. On
// error the previous view stays in place.
func (s *Session) ApplyView(v table.View) error {
	if s.Source == nil {
		return ErrNoData
	}
	cur, err := v.Apply(s.Source)
	if err != nil {
		return err
	}
	s.View = v
	s.Current = cur
	return nil
}

// Record appends an answered question, dropping the oldest past maxHistory.
func (s *Session) Record(at time.Time, res *insight.QueryResult) {
	s.History = append(s.History, Entry{At: at, Result: res})
	if over := len(s.History) - maxHistory; over > 0 {
		s.History = append([]Entry(nil), s.History[over:]...)
	}
}
