package utils

import (
	"sort"
	"strings"
)

// Token estimation utilities used for prompt budgeting.

// CountTokens estimates the number of tokens in the given text.
// It approximates 1 token ~= 4 characters.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

const clipMarker = " …[clipped]"

// ClipTokens shortens text to roughly limit tokens, cutting at the last line
// break inside the limit when there is one, and marks the cut.
func ClipTokens(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	cut := string(runes[:charLimit])
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + clipMarker
}

// Budget is the estimated token use of one prompt against a context window.
type Budget struct {
	Sections map[string]int
	Reply    int
	Window   int
}

// NewBudget estimates each labeled prompt section and reserves reply tokens
// for the completion. A window of 0 means unknown.
func NewBudget(window, reply int, sections map[string]string) Budget {
	b := Budget{Sections: make(map[string]int, len(sections)), Reply: reply, Window: window}
	for k, v := range sections {
		b.Sections[k] = CountTokens(v)
	}
	return b
}

// Total is the prompt estimate plus the reply reservation.
func (b Budget) Total() int {
	n := b.Reply
	for _, v := range b.Sections {
		n += v
	}
	return n
}

// Over reports whether the window is known and exceeded.
func (b Budget) Over() bool { return b.Window > 0 && b.Total() > b.Window }

// Largest returns the label of the biggest section.
func (b Budget) Largest() string {
	keys := make([]string, 0, len(b.Sections))
	for k := range b.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := ""
	for _, k := range keys {
		if best == "" || b.Sections[k] > b.Sections[best] {
			best = k
		}
	}
	return best
}
