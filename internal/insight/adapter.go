// Package insight asks an inference runtime for dataset insights and
// question answers, validates the replies and executes the data operations
// they suggest.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens/internal/ai"
	"github.com/KaramelBytes/datalens/internal/analysis"
	"github.com/KaramelBytes/datalens/internal/chart"
	"github.com/KaramelBytes/datalens/internal/metrics"
	"github.com/KaramelBytes/datalens/internal/table"
	"github.com/KaramelBytes/datalens/internal/utils"
)

// Payload is the normalized insight set for one table.
type Payload struct {
	Summary          string            `json:"summary"`
	KeyFindings      []string          `json:"key_findings"`
	Recommendations  []string          `json:"recommendations"`
	DataQualityNotes []string          `json:"data_quality_notes"`
	Metrics          []analysis.Metric `json:"metrics"`
}

// QueryResult is the answer to one question, with the optional local
// operation result and chart.
type QueryResult struct {
	Question            string               `json:"question"`
	Answer              string               `json:"answer"`
	Operation           *DataOperation       `json:"data_operation,omitempty"`
	Data                *Result              `json:"data,omitempty"`
	VisualizationType   string               `json:"visualization_type,omitempty"`
	VisualizationParams *VisualizationParams `json:"visualization_params,omitempty"`
	Chart               *chart.Spec          `json:"chart,omitempty"`
	AdditionalInsights  string               `json:"additional_insights,omitempty"`
}

// Adapter binds a runtime and model settings.
type Adapter struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

func (a *Adapter) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// GenerateInsights summarizes t, asks the runtime for insights and merges
// the headline metrics into the validated reply.
func (a *Adapter) GenerateInsights(ctx context.Context, t *table.Table) (*Payload, error) {
	const op = "generate insights"
	report := analysis.Summarize(t)
	prompt := fmt.Sprintf(insightsTemplate, InsightsDigest(t, report))
	raw, err := a.call(ctx, op, insightsSystem, prompt)
	if err != nil {
		return nil, err
	}
	var reply insightReply
	if err := decode(raw, insightSchema, &reply); err != nil {
		a.logger().Warn("insight reply rejected", "error", err)
		return nil, &ServiceError{Op: op, Err: err}
	}
	return &Payload{
		Summary:          reply.Summary,
		KeyFindings:      orEmpty(reply.KeyFindings),
		Recommendations:  orEmpty(reply.Recommendations),
		DataQualityNotes: orEmpty(reply.DataQualityNotes),
		Metrics:          report.Metrics,
	}, nil
}

// ProcessQuery answers question about t. A suggested data operation is run
// locally and a suggested chart is built when its columns exist; neither
// failing makes the query fail.
func (a *Adapter) ProcessQuery(ctx context.Context, t *table.Table, question string) (*QueryResult, error) {
	const op = "process query"
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ServiceError{Op: op, Err: errors.New("question is empty")}
	}
	prompt := fmt.Sprintf(queryTemplate, QueryDigest(t), question)
	raw, err := a.call(ctx, op, querySystem, prompt)
	if err != nil {
		return nil, err
	}
	var reply queryReply
	if err := decode(raw, querySchema, &reply); err != nil {
		a.logger().Warn("query reply rejected", "error", err)
		return nil, &ServiceError{Op: op, Err: err}
	}
	if d := reply.DataOperation; d != nil {
		switch d.Type {
		case OpFilter, OpAggregate, OpSort, OpCalculate:
		default:
			return nil, &ServiceError{Op: op, Err: &ParseError{Reason: fmt.Sprintf("unknown data_operation type %q", d.Type), Raw: clip(raw)}}
		}
	}
	out := &QueryResult{
		Question:            question,
		Answer:              reply.Answer,
		Operation:           reply.DataOperation,
		VisualizationType:   reply.VisualizationType,
		VisualizationParams: reply.VisualizationParams,
		AdditionalInsights:  reply.AdditionalInsights,
	}
	if reply.DataOperation != nil {
		out.Data = Execute(t, *reply.DataOperation)
	}
	if reply.VisualizationType != "" && reply.VisualizationParams != nil {
		spec, err := QueryChart(t, reply.VisualizationType, *reply.VisualizationParams)
		if err != nil {
			a.logger().Debug("query chart skipped", "type", reply.VisualizationType, "error", err)
		}
		out.Chart = spec
	}
	return out, nil
}

func (a *Adapter) call(ctx context.Context, op, system, prompt string) (string, error) {
	if a.Runtime == nil {
		return "", &ServiceError{Op: op, Err: errors.New("no inference runtime configured")}
	}
	a.checkBudget(op, system, prompt)
	start := time.Now()
	resp, err := a.Runtime.Generate(ctx, ai.GenerateRequest{
		Model: a.Model,
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:      a.MaxTokens,
		Temperature:    a.Temperature,
		ResponseFormat: ai.JSONObject,
	})
	metrics.LLMRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.LLMRequestsTotal.WithLabelValues(op, ai.Reason(err)).Inc()
	if err != nil {
		a.logger().Error("inference call failed", "op", op, "model", a.Model, "reason", ai.Reason(err), "error", err)
		return "", &ServiceError{Op: op, Err: err}
	}
	metrics.LLMTokensTotal.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))
	attrs := []any{
		"op", op,
		"model", a.Model,
		"request_id", resp.RequestID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	}
	if cost, ok := ai.EstimateCostUSD(a.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
		attrs = append(attrs, "est_cost_usd", fmt.Sprintf("%.4f", cost))
	}
	a.logger().Info("inference call", attrs...)
	text := resp.Text()
	if text == "" {
		return "", &ServiceError{Op: op, Err: &ParseError{Reason: "empty reply"}}
	}
	return text, nil
}

// checkBudget logs a warning when the prompt and reply allowance exceed the
// model's known context window.
func (a *Adapter) checkBudget(op, system, prompt string) {
	mi, ok := ai.LookupModel(a.Model)
	if !ok {
		return
	}
	b := utils.NewBudget(mi.ContextTokens, a.MaxTokens, map[string]string{"system": system, "digest": prompt})
	if b.Over() {
		a.logger().Warn("prompt exceeds model context window",
			"op", op, "model", a.Model,
			"estimated_tokens", b.Total(), "context_tokens", b.Window,
			"largest_section", b.Largest())
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
