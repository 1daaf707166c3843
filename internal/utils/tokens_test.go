package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/datalens/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short", "hi", 1},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 1000},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("%s: got %d want %d", c.name, got, c.want)
		}
	}
}

func TestClipTokens(t *testing.T) {
	if got := utils.ClipTokens("short reply", 100); got != "short reply" {
		t.Fatalf("short text changed: %q", got)
	}
	text := strings.Repeat("row,1,2\n", 200)
	clipped := utils.ClipTokens(text, 50)
	if !strings.HasSuffix(clipped, "…[clipped]") {
		t.Fatalf("missing clip marker: %q", clipped)
	}
	body := strings.TrimSuffix(clipped, " …[clipped]")
	if utils.CountTokens(body) > 50 {
		t.Fatalf("clipped body too long: %d tokens", utils.CountTokens(body))
	}
	if !strings.HasSuffix(body, "row,1,2") {
		t.Fatalf("expected cut at a line break, got tail %q", body[len(body)-10:])
	}
	if utils.ClipTokens(text, 0) != "" {
		t.Fatalf("zero limit should clip everything")
	}
}

func TestBudget(t *testing.T) {
	b := utils.NewBudget(30, 10, map[string]string{
		"system": strings.Repeat("x", 20),
		"digest": strings.Repeat("y", 60),
	})
	if b.Total() != 30 {
		t.Fatalf("total=%d want 30", b.Total())
	}
	if b.Over() {
		t.Fatalf("exactly the window should fit")
	}
	if b.Largest() != "digest" {
		t.Fatalf("largest=%q", b.Largest())
	}
	b.Window = 29
	if !b.Over() {
		t.Fatalf("expected over budget")
	}
	b.Window = 0
	if b.Over() {
		t.Fatalf("unknown window is never over")
	}
}
