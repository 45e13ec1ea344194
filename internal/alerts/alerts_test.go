package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justcancel/justcancel/internal/analytics"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// mk builds n entries of the given event at an offset before now.
func mk(event string, n int, ago time.Duration) []analytics.Entry {
	ee := make([]analytics.Entry, n)
	for i := range ee {
		ee[i] = analytics.Entry{Timestamp: now.Add(-ago), Event: event}
	}
	return ee
}

func byID(alerts []Alert, id string) (Alert, bool) {
	for _, a := range alerts {
		if a.ID == id {
			return a, true
		}
	}
	return Alert{}, false
}

func TestEvaluateEmptyLog(t *testing.T) {
	assert.Empty(t, Evaluate(now, nil))
}

func TestToolErrorThresholdIsExclusive(t *testing.T) {
	// 5 errors: no alert. 6 errors: alert. Back at 5: gone again.
	got := Evaluate(now, mk(analytics.EventToolCallError, 5, time.Hour))
	_, ok := byID(got, "tool-errors")
	assert.False(t, ok)

	got = Evaluate(now, mk(analytics.EventToolCallError, 6, time.Hour))
	a, ok := byID(got, "tool-errors")
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, a.Level)

	got = Evaluate(now, mk(analytics.EventToolCallError, 5, time.Hour))
	_, ok = byID(got, "tool-errors")
	assert.False(t, ok)
}

func TestToolErrorsOutsideWindowIgnored(t *testing.T) {
	got := Evaluate(now, mk(analytics.EventToolCallError, 10, 25*time.Hour))
	_, ok := byID(got, "tool-errors")
	assert.False(t, ok)
}

func TestParseErrorRule(t *testing.T) {
	got := Evaluate(now, mk(analytics.EventParameterParseError, 4, 6*24*time.Hour))
	a, ok := byID(got, "parse-errors")
	require.True(t, ok)
	assert.Equal(t, SeverityWarning, a.Level)

	got = Evaluate(now, mk(analytics.EventParameterParseError, 3, time.Hour))
	_, ok = byID(got, "parse-errors")
	assert.False(t, ok)
}

func TestEmptyRateRule(t *testing.T) {
	t.Run("zero denominator never fires", func(t *testing.T) {
		got := Evaluate(now, mk(analytics.EventToolCallError, 1, time.Hour))
		_, ok := byID(got, "empty-results")
		assert.False(t, ok)
	})
	t.Run("rate at threshold does not fire", func(t *testing.T) {
		entries := append(mk(analytics.EventToolCallSuccess, 4, time.Hour),
			mk(analytics.EventToolCallEmpty, 1, time.Hour)...)
		got := Evaluate(now, entries) // 1/5 = exactly 0.20
		_, ok := byID(got, "empty-results")
		assert.False(t, ok)
	})
	t.Run("rate above threshold fires", func(t *testing.T) {
		entries := append(mk(analytics.EventToolCallSuccess, 3, time.Hour),
			mk(analytics.EventToolCallEmpty, 1, time.Hour)...)
		got := Evaluate(now, entries) // 1/4 = 0.25
		a, ok := byID(got, "empty-results")
		require.True(t, ok)
		assert.Equal(t, SeverityWarning, a.Level)
	})
}

func TestWidgetCrashRule(t *testing.T) {
	got := Evaluate(now, mk(analytics.EventWidgetCrash, 1, time.Hour))
	a, ok := byID(got, "widget-crash")
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, a.Level)

	// Crashes older than 24h do not fire.
	got = Evaluate(now, mk(analytics.EventWidgetCrash, 3, 36*time.Hour))
	_, ok = byID(got, "widget-crash")
	assert.False(t, ok)
}

func TestSubscribeFailureRule(t *testing.T) {
	t.Run("below minimum samples", func(t *testing.T) {
		entries := append(mk(analytics.EventSubscribe, 2, time.Hour),
			mk(analytics.EventSubscribeError, 2, time.Hour)...)
		got := Evaluate(now, entries)
		_, ok := byID(got, "buttondown-failures")
		assert.False(t, ok)
	})
	t.Run("minimum samples is inclusive", func(t *testing.T) {
		entries := append(mk(analytics.EventSubscribe, 4, time.Hour),
			mk(analytics.EventSubscribeError, 1, time.Hour)...)
		got := Evaluate(now, entries) // 5 attempts, 20% failure
		_, ok := byID(got, "buttondown-failures")
		assert.True(t, ok)
	})
	t.Run("failure rate at threshold does not fire", func(t *testing.T) {
		entries := append(mk(analytics.EventSubscribe, 9, time.Hour),
			mk(analytics.EventSubscribeError, 1, time.Hour)...)
		got := Evaluate(now, entries) // 1/10 = exactly 0.10
		_, ok := byID(got, "buttondown-failures")
		assert.False(t, ok)
	})
}

func TestRulesAreAdditive(t *testing.T) {
	entries := mk(analytics.EventToolCallError, 6, time.Hour)
	entries = append(entries, mk(analytics.EventWidgetCrash, 1, time.Hour)...)
	entries = append(entries, mk(analytics.EventParameterParseError, 4, time.Hour)...)

	got := Evaluate(now, entries)
	require.Len(t, got, 3)
}
