package insight

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/KaramelBytes/datalens/internal/utils"
)

// insightReply is the JSON object the model must return for
// GenerateInsights.
type insightReply struct {
	Summary          string   `json:"summary" jsonschema:"brief overview of the dataset and what it represents"`
	KeyFindings      []string `json:"key_findings" jsonschema:"3-5 key findings"`
	Recommendations  []string `json:"recommendations" jsonschema:"3-5 actionable recommendations"`
	DataQualityNotes []string `json:"data_quality_notes,omitempty" jsonschema:"data quality issues or considerations"`
}

// OperationType names a local data operation a query reply may ask for.
type OperationType string

const (
	OpFilter    OperationType = "filter"
	OpAggregate OperationType = "aggregate"
	OpSort      OperationType = "sort"
	OpCalculate OperationType = "calculate"
)

// DataOperation is the optional operation attached to a query reply.
type DataOperation struct {
	Type       OperationType `json:"type"`
	Parameters Parameters    `json:"parameters,omitempty"`
}

// Parameters are the free-form arguments of a DataOperation.
type Parameters struct {
	Columns     []string `json:"columns,omitempty"`
	Conditions  string   `json:"conditions,omitempty"`
	Aggregation string   `json:"aggregation,omitempty"`
	Calculation string   `json:"calculation,omitempty"`
}

// VisualizationParams are the axis bindings a query reply suggests.
type VisualizationParams struct {
	XColumn     string `json:"x_column,omitempty"`
	YColumn     string `json:"y_column,omitempty"`
	ColorColumn string `json:"color_column,omitempty"`
}

type queryReply struct {
	Answer              string               `json:"answer" jsonschema:"direct answer to the question"`
	DataOperation       *DataOperation       `json:"data_operation,omitempty"`
	VisualizationType   string               `json:"visualization_type,omitempty"`
	VisualizationParams *VisualizationParams `json:"visualization_params,omitempty"`
	AdditionalInsights  string               `json:"additional_insights,omitempty"`
}

var (
	insightSchema = sync.OnceValues(resolve[insightReply])
	querySchema   = sync.OnceValues(resolve[queryReply])
)

// resolve builds the validation schema for T. Unknown keys are tolerated so
// a chatty model does not fail an otherwise valid reply, and optional keys
// accept null, which decodes as absent.
func resolve[T any]() (*jsonschema.Resolved, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %T: %w", *new(T), err)
	}
	relax(s)
	return s.Resolve(nil)
}

func relax(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	s.AdditionalProperties = nil
	for name, p := range s.Properties {
		if p != nil && p.Type != "" && !slices.Contains(s.Required, name) {
			p.Types = []string{"null", p.Type}
			p.Type = ""
		}
		relax(p)
	}
	relax(s.Items)
}

// decode parses raw into out after validating it against schema. Required
// keys are enforced by the schema; optional slices default to empty.
func decode(raw string, schema func() (*jsonschema.Resolved, error), out any) error {
	text := stripFence(raw)
	var instance map[string]any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return &ParseError{Reason: fmt.Sprintf("not a JSON object: %v", err), Raw: clip(raw)}
	}
	resolved, err := schema()
	if err != nil {
		return err
	}
	if err := resolved.Validate(instance); err != nil {
		return &ParseError{Reason: err.Error(), Raw: clip(raw)}
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &ParseError{Reason: err.Error(), Raw: clip(raw)}
	}
	return nil
}

// stripFence removes a ```json fence some models wrap around JSON even in
// JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// clip bounds the reply text kept on a ParseError for logging.
func clip(s string) string { return utils.ClipTokens(s, 128) }
