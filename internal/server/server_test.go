package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/KaramelBytes/datalens/internal/ai"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/session"
)

const salesCSV = "region,revenue,units,order_date\n" +
	"east,100,1,2024-01-01\n" +
	"west,\"$2,000\",3,2024-01-05\n" +
	"east,50,2,2024-01-09\n" +
	"north,25,,2024-02-01\n"

type fakeRuntime struct {
	reply string
	err   error
	calls int
}

func (f *fakeRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.reply}}}}, nil
}

type harness struct {
	t      *testing.T
	router *gin.Engine
	rt     *fakeRuntime
	clock  *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	rt := &fakeRuntime{}
	srv := New(Options{
		Store:          session.NewStore(time.Hour, clock),
		Adapter:        &insight.Adapter{Runtime: rt, Model: "gpt-4o"},
		MaxUploadBytes: 1 << 20,
		Clock:          clock,
	})
	return &harness{t: t, router: srv.Router(), rt: rt, clock: clock}
}

func (h *harness) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) json(method, path string, v any) *httptest.ResponseRecorder {
	h.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(h.t, err)
	return h.do(method, path, b, "application/json")
}

func (h *harness) session() string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/sessions", nil, "")
	require.Equal(h.t, http.StatusCreated, w.Code)
	id := gjson.Get(w.Body.String(), "id").String()
	require.NotEmpty(h.t, id)
	return id
}

func (h *harness) upload(id, name, content string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(h.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())
	return h.do(http.MethodPost, "/api/sessions/"+id+"/upload", buf.Bytes(), mw.FormDataContentType())
}

func (h *harness) loaded() string {
	id := h.session()
	w := h.upload(id, "sales.csv", salesCSV)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "datalens_")
}

func TestUploadReturnsOverview(t *testing.T) {
	h := newHarness(t)
	id := h.session()
	w := h.upload(id, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := gjson.Parse(w.Body.String())
	assert.Equal(t, "sales.csv", body.Get("file").String())
	assert.Equal(t, "utf-8", body.Get("encoding").String())
	assert.EqualValues(t, 4, body.Get("summary.rows").Int())
	assert.EqualValues(t, 4, body.Get("preview.total_rows").Int())
	assert.Equal(t, "numeric", body.Get("preview.columns.1.type").String())
	assert.Equal(t, "timestamp", body.Get("preview.columns.3.type").String())
	assert.InDelta(t, 2000, body.Get("preview.rows.1.1").Float(), 1e-9)
	assert.Equal(t, "2024-01-05 00:00:00", body.Get("preview.rows.1.3").String())
	assert.True(t, body.Get("chart_availability.bar").Bool())

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/overview", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadErrors(t *testing.T) {
	h := newHarness(t)
	id := h.session()

	w := h.upload(id, "notes.txt", "hello")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "unsupported_format", gjson.Get(w.Body.String(), "kind").String())

	w = h.do(http.MethodPost, "/api/sessions/"+id+"/upload", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/overview", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.upload("missing", "sales.csv", salesCSV)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewFiltersRows(t *testing.T) {
	h := newHarness(t)
	id := h.loaded()
	w := h.json(http.MethodPut, "/api/sessions/"+id+"/view", map[string]any{
		"columns": []string{"region", "revenue"},
		"filters": []map[string]any{{"column": "region", "type": "categorical", "values": []string{"east"}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := gjson.Parse(w.Body.String())
	assert.EqualValues(t, 2, body.Get("preview.total_rows").Int())
	assert.EqualValues(t, 4, body.Get("source_rows").Int())
	assert.EqualValues(t, 2, body.Get("preview.columns.#").Int())

	w = h.json(http.MethodPut, "/api/sessions/"+id+"/view", map[string]any{"columns": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsightsLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.loaded()
	h.rt.reply = `{"summary":"Sales are concentrated in the west.","key_findings":["west leads"],"recommendations":["grow east"]}`

	w := h.do(http.MethodPost, "/api/sessions/"+id+"/insights", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "west leads", gjson.Get(w.Body.String(), "insights.key_findings.0").String())

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/insights", nil, "")
	assert.Equal(t, "Sales are concentrated in the west.", gjson.Get(w.Body.String(), "insights.summary").String())

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/export/md", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "## AI-Generated Insights")

	// A new upload drops insights computed for the old data.
	h.upload(id, "sales.csv", salesCSV)
	w = h.do(http.MethodGet, "/api/sessions/"+id+"/insights", nil, "")
	assert.Equal(t, gjson.Null, gjson.Get(w.Body.String(), "insights").Type)
}

func TestInsightFailuresMapToStatus(t *testing.T) {
	h := newHarness(t)
	id := h.loaded()

	h.rt.reply = "not json"
	w := h.do(http.MethodPost, "/api/sessions/"+id+"/insights", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	h.rt.err = &ai.ConfigError{Provider: ai.ProviderOpenAI, Key: "OPENAI_API_KEY"}
	w = h.do(http.MethodPost, "/api/sessions/"+id+"/insights", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_configured", gjson.Get(w.Body.String(), "kind").String())

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/insights", nil, "")
	assert.Equal(t, gjson.Null, gjson.Get(w.Body.String(), "insights").Type)
}

func TestQueryAndHistory(t *testing.T) {
	h := newHarness(t)
	id := h.loaded()
	h.rt.reply = `{"answer":"Total revenue is 2175.","data_operation":{"type":"aggregate","parameters":{"columns":["revenue"],"aggregation":"sum"}}}`

	w := h.json(http.MethodPost, "/api/sessions/"+id+"/query", map[string]string{"question": "total revenue?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := gjson.Parse(w.Body.String())
	assert.Equal(t, "Total revenue is 2175.", body.Get("answer").String())
	assert.Equal(t, "Total", body.Get("data.label").String())
	assert.InDelta(t, 2175, body.Get("rows.rows.0.0").Float(), 1e-9)

	w = h.json(http.MethodPost, "/api/sessions/"+id+"/query", map[string]string{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, h.rt.calls)

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/history", nil, "")
	hist := gjson.Get(w.Body.String(), "history")
	require.EqualValues(t, 1, hist.Get("#").Int())
	assert.Equal(t, "total revenue?", hist.Get("0.question").String())
}

func TestCharts(t *testing.T) {
	h := newHarness(t)
	id := h.loaded()

	w := h.do(http.MethodGet, "/api/sessions/"+id+"/charts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "available.correlation").Bool())

	w = h.json(http.MethodPost, "/api/sessions/"+id+"/charts", map[string]any{"kind": "bar", "x": "region", "y": "revenue"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "east", gjson.Get(w.Body.String(), "bars.0.category").String())
	assert.InDelta(t, 150, gjson.Get(w.Body.String(), "bars.0.value").Float(), 1e-9)

	w = h.json(http.MethodPost, "/api/sessions/"+id+"/charts", map[string]any{"kind": "bar", "x": "revenue", "y": "region"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "warnings").Array())

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/charts/auto", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "charts").Array())

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/charts/dashboard", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "charts").Array())
}

func TestCorrelationNeedsTwoNumericColumns(t *testing.T) {
	h := newHarness(t)
	id := h.session()
	require.Equal(t, http.StatusOK, h.upload(id, "one.csv", "name,score\na,1\nb,2\n").Code)
	w := h.json(http.MethodPost, "/api/sessions/"+id+"/charts", map[string]any{"kind": "correlation"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "chart_validation", gjson.Get(w.Body.String(), "kind").String())
}

func TestExportAttachments(t *testing.T) {
	h := newHarness(t)
	id := h.loaded()

	w := h.do(http.MethodGet, "/api/sessions/"+id+"/export/csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="sales_data_export_20240301_120000.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "region,revenue,units,order_date\n"))

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/export/json", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, gjson.Get(w.Body.String(), "metadata.rows").Int())

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/export/html", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = h.do(http.MethodGet, "/api/sessions/"+id+"/export/pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSession(t *testing.T) {
	h := newHarness(t)
	id := h.session()
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/sessions/"+id, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/sessions/"+id, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/sessions/"+id+"/overview", nil, "").Code)
}
