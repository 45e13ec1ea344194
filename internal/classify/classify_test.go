package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justcancel/justcancel/internal/pattern"
)

func TestClassifyNoMatches(t *testing.T) {
	c := New(pattern.Default())

	tests := []struct {
		name string
		text string
	}{
		{"empty input", ""},
		{"generic lines", "GROCERY STORE 42.17\nGAS STATION 30.00\nATM WITHDRAWAL"},
		{"short lines only", "nflx\nsp\nok\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, c.Classify(tt.text))
		})
	}
}

func TestClassifyExtractsExactPrice(t *testing.T) {
	c := New(pattern.Default())

	got := c.Classify("NETFLIX.COM $15.49")
	require.Len(t, got, 1)
	assert.Equal(t, "Netflix", got[0].Service)
	assert.Equal(t, 15.49, got[0].MonthlyCost) // exact, no rounding drift
	assert.Equal(t, StatusConfirmed, got[0].Status)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, "NETFLIX.COM $15.49", got[0].SourceLine)
}

func TestClassifyDeduplicatesByService(t *testing.T) {
	c := New(pattern.Default())

	got := c.Classify("NETFLIX.COM $15.49\nNetflix.com $15.49")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, 15.49, got[0].MonthlyCost)
}

func TestClassifyDefaultCostFallback(t *testing.T) {
	c := New(pattern.Default())

	// No price token on the line: well-known services fall back to their
	// hard-coded cost, others report 0 ("unknown cost, confirmed presence").
	got := c.Classify("recurring payment netflix\nrecurring payment hulu")
	require.Len(t, got, 2)
	assert.Equal(t, 15.49, got[0].MonthlyCost)
	assert.Equal(t, "Hulu", got[1].Service)
	assert.Zero(t, got[1].MonthlyCost)
}

func TestClassifyExplicitZeroKeepsZeroCost(t *testing.T) {
	c := New(pattern.Default())

	// An explicit 0.00 is a found price, not a missing one: the candidate
	// stays at cost 0 instead of falling back to the default.
	got := c.Classify("NETFLIX.COM 0.00 trial charge")
	require.Len(t, got, 1)
	assert.Equal(t, "Netflix", got[0].Service)
	assert.Zero(t, got[0].MonthlyCost)
}

func TestClassifyBackfillsUnknownCost(t *testing.T) {
	c := New(pattern.Default())

	// First match carries no price, the second does: the candidate keeps a
	// single entry and picks up the later cost.
	got := c.Classify("HULU subscription\nHULU 7.99 recurring")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, 7.99, got[0].MonthlyCost)
}

func TestClassifyDoesNotOverwriteKnownCost(t *testing.T) {
	c := New(pattern.Default())

	got := c.Classify("HULU 7.99 recurring\nHULU 12.99 recurring")
	require.Len(t, got, 1)
	assert.Equal(t, 7.99, got[0].MonthlyCost)
}

func TestClassifyTwoPatternsSameLine(t *testing.T) {
	c := New(pattern.Default())

	// Patterns are not mutually exclusive: a single line matching two
	// different patterns yields two separate candidates.
	got := c.Classify("netflix and spotify bundle 9.99")
	require.Len(t, got, 2)
	assert.Equal(t, "Netflix", got[0].Service)
	assert.Equal(t, "Spotify", got[1].Service)
}

func TestClassifyNewlineConventions(t *testing.T) {
	c := New(pattern.Default())

	got := c.Classify("NETFLIX 15.49\r\nSPOTIFY 11.99\rHULU 7.99")
	require.Len(t, got, 3)
}

func TestClassifyUniqueIDs(t *testing.T) {
	c := New(pattern.Default())

	got := c.Classify("netflix 15.49\nspotify 11.99")
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.NotEmpty(t, got[0].ID)
}
