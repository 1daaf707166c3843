package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/datalens/internal/ai"
)

const salesCSV = "region,revenue,units,order_date\n" +
	"east,100,1,2024-01-01\n" +
	"west,\"$2,000\",3,2024-01-05\n" +
	"east,50,2,2024-01-09\n" +
	"north,25,,2024-02-01\n"

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

// isolate points HOME and the working directory at a temp dir and returns it.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DATALENS_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(home)
	return home
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// fakeOpenAI serves chat completions with a fixed assistant reply.
func fakeOpenAI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI_Analyze(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	out := runCmd(t, "analyze", path)
	for _, want := range []string{
		"✓ Loaded sales.csv (csv, utf-8): 4 rows × 4 columns",
		"✓ revenue: Text → Numeric (4/4 values parsed)",
		"✓ order_date: Text → Timestamp",
		"[DATASET SUMMARY]",
		"[NUMERIC STATISTICS]",
		"- Total revenue: $2,175.00",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("analyze output missing %q:\n%s", want, out)
		}
	}

	out = runCmd(t, "analyze", path, "--json")
	var rep map[string]any
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("analyze --json is not JSON: %v\n%s", err, out)
	}
	if rep["rows"].(float64) != 4 {
		t.Fatalf("expected 4 rows, got %v", rep["rows"])
	}
}

func TestCLI_AnalyzeUnsupportedFormat(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "notes.txt", "hello")
	if _, err := execute(t, "analyze", path); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestCLI_ExportFormats(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	for _, f := range []string{"csv", "xlsx", "json", "md", "html"} {
		dst := filepath.Join(home, "out", "sales."+f)
		out := runCmd(t, "export", path, "--format", f, "--out", dst)
		if !strings.Contains(out, "✓ Exported 4 rows to "+dst) {
			t.Fatalf("unexpected export output: %s", out)
		}
		if st, err := os.Stat(dst); err != nil || st.Size() == 0 {
			t.Fatalf("missing export %s: %v", dst, err)
		}
	}

	// The exported CSV re-analyzes to the same shape.
	out := runCmd(t, "analyze", filepath.Join(home, "out", "sales.csv"))
	if !strings.Contains(out, "4 rows × 4 columns") {
		t.Fatalf("round trip changed shape:\n%s", out)
	}

	if _, err := execute(t, "export", path, "--format", "pdf"); err == nil {
		t.Fatalf("expected error for unsupported export format")
	}
}

func TestCLI_Chart(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	out := runCmd(t, "chart", path, "--kind", "bar", "--x", "region", "--y", "revenue")
	var spec struct {
		Kind string `json:"kind"`
		Bars []struct {
			Category string  `json:"category"`
			Value    float64 `json:"value"`
		} `json:"bars"`
	}
	if err := json.Unmarshal([]byte(out), &spec); err != nil {
		t.Fatalf("chart output is not JSON: %v\n%s", err, out)
	}
	if spec.Kind != "bar" || len(spec.Bars) != 3 || spec.Bars[0].Category != "east" || spec.Bars[0].Value != 150 {
		t.Fatalf("unexpected bar spec: %+v", spec)
	}

	if _, err := execute(t, "chart", path, "--kind", "histogram", "--x", "region"); err == nil {
		t.Fatalf("expected validation error for text histogram")
	}
	out = runCmd(t, "chart", path, "--auto")
	if !strings.Contains(out, "Numeric Distributions") {
		t.Fatalf("auto bundle missing distributions:\n%s", out)
	}
}

func TestCLI_InsightsAndAsk(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "sales.csv", salesCSV)

	srv := fakeOpenAI(t, `{"summary":"West dominates revenue.","key_findings":["west is 92% of revenue"],"recommendations":["investigate north"]}`)
	t.Setenv("DATALENS_PROVIDER", "openai")
	t.Setenv("DATALENS_BASE_URL", srv.URL+"/v1")
	t.Setenv("DATALENS_API_KEY", "sk-test")

	out := runCmd(t, "insights", path)
	for _, want := range []string{"West dominates revenue.", "1. west is 92% of revenue", "Total Records: 4"} {
		if !strings.Contains(out, want) {
			t.Fatalf("insights output missing %q:\n%s", want, out)
		}
	}

	srv2 := fakeOpenAI(t, `{"answer":"West has the highest revenue.","data_operation":{"type":"sort","parameters":{"columns":["revenue"]}}}`)
	t.Setenv("DATALENS_BASE_URL", srv2.URL+"/v1")
	out = runCmd(t, "ask", path, "which", "region", "earns", "most?")
	if !strings.Contains(out, "West has the highest revenue.") || !strings.Contains(out, "| west ") {
		t.Fatalf("unexpected ask output:\n%s", out)
	}
}

func TestCLI_MissingKeyIsConfigError(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "sales.csv", salesCSV)
	t.Setenv("DATALENS_PROVIDER", "openai")
	_, err := execute(t, "insights", path)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected configuration error naming OPENAI_API_KEY, got %v", err)
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "cfg.yaml")

	runCmd(t, "--config", cfgPath, "config", "set", "provider", "anthropic")
	runCmd(t, "--config", cfgPath, "config", "set", "retry_max_attempts", "3")
	out := runCmd(t, "--config", cfgPath, "config", "show")
	if !strings.Contains(out, "provider: anthropic") || !strings.Contains(out, "retry_max_attempts: 3") {
		t.Fatalf("config show did not reflect saved values:\n%s", out)
	}
	if _, err := execute(t, "--config", cfgPath, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestCLI_ModelsShowAndSync(t *testing.T) {
	home := isolate(t)
	t.Cleanup(ai.ResetCatalog)

	out := runCmd(t, "models", "show", "--provider", "anthropic")
	if !strings.Contains(out, "claude-3-5-haiku-latest") || strings.Contains(out, "gpt-4o") {
		t.Fatalf("provider filter not applied:\n%s", out)
	}
	out = runCmd(t, "models", "show")
	if !strings.Contains(out, "* gpt-4o ") {
		t.Fatalf("default model not marked:\n%s", out)
	}

	path := writeFile(t, home, "models.json", `{"acme/tiny": {"Provider": "openrouter", "ContextTokens": 2048}}`)
	out = runCmd(t, "models", "sync", "--file", path, "--merge")
	if !strings.Contains(out, "✓ Merged 1 models from file") {
		t.Fatalf("unexpected sync output:\n%s", out)
	}
	out = runCmd(t, "models", "show", "--json", "--provider", "openrouter")
	var cat map[string]ai.ModelInfo
	if err := json.Unmarshal([]byte(out), &cat); err != nil {
		t.Fatalf("models show --json: %v\n%s", err, out)
	}
	if cat["acme/tiny"].ContextTokens != 2048 {
		t.Fatalf("synced entry missing: %+v", cat)
	}
}
