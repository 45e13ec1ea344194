// Package alerts computes threshold-based operational alerts from a window
// of analytics log entries.  Evaluation is a pure function of its input:
// alerts are derived on demand and never persisted.
package alerts

import (
	"fmt"
	"time"

	"github.com/justcancel/justcancel/internal/analytics"
)

// Severity of an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a derived operational warning.
type Alert struct {
	ID      string   `json:"id"`
	Level   Severity `json:"level"`
	Message string   `json:"message"`
}

// Rule thresholds.  All comparisons are exclusive except the minimum-sample
// gate on the subscribe-failure rule.
const (
	toolErrorLimit      = 5
	parseErrorLimit     = 3
	emptyRateLimit      = 0.20
	subscribeFailLimit  = 0.10
	subscribeMinSamples = 5
)

// Evaluate applies every alert rule to the given entries and returns all
// alerts that fire.  Rules are independent and additive; none suppresses
// another.  now anchors the 24 hour and 7 day windows.
func Evaluate(now time.Time, entries []analytics.Entry) []Alert {
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	count := func(event string, since time.Time) int {
		n := 0
		for _, e := range entries {
			if e.Event == event && !e.Timestamp.Before(since) {
				n++
			}
		}
		return n
	}

	var alerts []Alert

	if n := count(analytics.EventToolCallError, dayAgo); n > toolErrorLimit {
		alerts = append(alerts, Alert{
			ID:      "tool-errors",
			Level:   SeverityCritical,
			Message: fmt.Sprintf("Tool failures in last 24h: %d (>%d threshold)", n, toolErrorLimit),
		})
	}

	if n := count(analytics.EventParameterParseError, weekAgo); n > parseErrorLimit {
		alerts = append(alerts, Alert{
			ID:      "parse-errors",
			Level:   SeverityWarning,
			Message: fmt.Sprintf("Parameter parse errors in last 7d: %d (>%d threshold)", n, parseErrorLimit),
		})
	}

	success := count(analytics.EventToolCallSuccess, weekAgo)
	empty := count(analytics.EventToolCallEmpty, weekAgo)
	if total := success + empty; total > 0 {
		if rate := float64(empty) / float64(total); rate > emptyRateLimit {
			alerts = append(alerts, Alert{
				ID:      "empty-results",
				Level:   SeverityWarning,
				Message: fmt.Sprintf("Empty result rate %.1f%% (>%.0f%% threshold)", rate*100, emptyRateLimit*100),
			})
		}
	}

	if n := count(analytics.EventWidgetCrash, dayAgo); n > 0 {
		alerts = append(alerts, Alert{
			ID:      "widget-crash",
			Level:   SeverityCritical,
			Message: fmt.Sprintf("Widget crashes in last 24h: %d (Fix immediately)", n),
		})
	}

	failures := count(analytics.EventSubscribeError, weekAgo)
	attempts := count(analytics.EventSubscribe, weekAgo) + failures
	if attempts >= subscribeMinSamples {
		if rate := float64(failures) / float64(attempts); rate > subscribeFailLimit {
			alerts = append(alerts, Alert{
				ID:      "buttondown-failures",
				Level:   SeverityWarning,
				Message: fmt.Sprintf("Subscribe failure rate %.1f%% over last 7d (%d/%d)", rate*100, failures, attempts),
			})
		}
	}

	return alerts
}
