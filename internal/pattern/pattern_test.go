package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findPattern(t *testing.T, name string) Pattern {
	t.Helper()
	for _, p := range Default().All() {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("pattern %q not in default registry", name)
	return Pattern{}
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	require.NotZero(t, r.Len())

	seen := make(map[string]bool, r.Len())
	for _, p := range r.All() {
		assert.False(t, seen[p.Name], "duplicate pattern name %q", p.Name)
		seen[p.Name] = true
		assert.NotEmpty(t, p.Category, "pattern %q has no category", p.Name)
	}
}

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		pattern string
		line    string
		want    bool
	}{
		{"Netflix", "netflix.com 15.49", true},
		{"Netflix", "payment to netflix", true},
		{"Netflix", "grocery store 42.00", false},
		{"Disney+", "disney plus 7.99", true},
		{"Disney+", "disney+ subscription", true},
		{"ChatGPT", "openai *chatgpt subscr", true},
		{"Apple", "apple.com/bill 2.99", true},
		{"Amazon Prime", "amzn mktp prime membership", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.line, func(t *testing.T) {
			p := findPattern(t, tt.pattern)
			assert.Equal(t, tt.want, p.Matches(tt.line))
		})
	}
}

func TestDefaultCosts(t *testing.T) {
	// Only a small fixed set of services carries a hard-coded fallback cost.
	assert.InDelta(t, 15.49, findPattern(t, "Netflix").DefaultCost, 0)
	assert.InDelta(t, 11.99, findPattern(t, "Spotify").DefaultCost, 0)
	assert.InDelta(t, 20.00, findPattern(t, "ChatGPT").DefaultCost, 0)
	assert.Zero(t, findPattern(t, "Hulu").DefaultCost)
}
