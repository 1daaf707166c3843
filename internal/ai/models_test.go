package ai

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultModelFor(t *testing.T) {
	cases := map[string]string{
		ProviderOpenAI:     "gpt-4o",
		ProviderAnthropic:  "claude-3-5-haiku-latest",
		ProviderOpenRouter: "openai/gpt-4o-mini",
		ProviderOllama:     "llama3.1:8b-instruct",
		"unknown":          DefaultModel,
	}
	for p, want := range cases {
		if got := DefaultModelFor(p); got != want {
			t.Errorf("%s: got %q want %q", p, got, want)
		}
		if _, ok := LookupModel(DefaultModelFor(p)); !ok {
			t.Errorf("%s: default model missing from catalog", p)
		}
	}
}

func TestEstimateCostUSD(t *testing.T) {
	cost, ok := EstimateCostUSD("gpt-4o", 2000, 500)
	if !ok {
		t.Fatalf("expected known model")
	}
	// 2 * 0.0025 + 0.5 * 0.01
	if cost < 0.00999 || cost > 0.01001 {
		t.Fatalf("cost=%f want 0.01", cost)
	}
	if _, ok := EstimateCostUSD("not-a-model", 1, 1); ok {
		t.Fatalf("expected unknown model")
	}
}

func TestCatalogMergeOverrideReset(t *testing.T) {
	t.Cleanup(ResetCatalog)

	path := filepath.Join(t.TempDir(), "models.json")
	doc := `{"acme/tiny": {"ContextTokens": 2048, "InputPerK": 0.1, "OutputPerK": 0.2}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadCatalogFromJSON(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m["acme/tiny"].Name != "acme/tiny" {
		t.Fatalf("name not filled from key: %+v", m["acme/tiny"])
	}

	MergeCatalog(m)
	if _, ok := LookupModel("acme/tiny"); !ok {
		t.Fatalf("merged model missing")
	}
	if _, ok := LookupModel("gpt-4o"); !ok {
		t.Fatalf("merge dropped builtin entries")
	}

	OverrideCatalog(m)
	if len(Catalog()) != 1 {
		t.Fatalf("override should replace the catalog, got %d entries", len(Catalog()))
	}

	ResetCatalog()
	if _, ok := LookupModel("acme/tiny"); ok {
		t.Fatalf("reset kept custom entry")
	}
}

func TestParseCatalogRejectsMissingWindow(t *testing.T) {
	if _, err := ParseCatalog([]byte(`{"x": {"InputPerK": 1}}`)); err == nil {
		t.Fatalf("expected error for entry without ContextTokens")
	}
	if _, err := ParseCatalog([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
