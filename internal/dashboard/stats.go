package dashboard

// In this file: aggregation of the raw event log into the figures the
// dashboard template renders.

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justcancel/justcancel/internal/alerts"
	"github.com/justcancel/justcancel/internal/analytics"
)

const (
	recentLimit  = 50
	queriesLimit = 20
)

// count is one row of a name/count table, sorted descending by count.
type count struct {
	Name  string
	Count int
}

// queryRow is one inferred user query from a successful tool call.
type queryRow struct {
	Time     time.Time
	Query    string
	Location string
	Locale   string
}

// eventRow is one line of the recent-events table.
type eventRow struct {
	Time    time.Time
	Event   string
	Details string
	IsError bool
}

// stats is everything the dashboard template needs, derived from one
// snapshot of the event log.
type stats struct {
	Alerts             []alerts.Alert
	TotalCalls         int
	Errors             int
	ParseErrors        int
	AvgResponseTime    string
	ParamUsage         []count
	ParamTotal         int
	Devices            []count
	ViewFilters        []count
	WidgetInteractions []count
	Queries            []queryRow
	Recent             []eventRow
}

// compute aggregates entries (newest first) into dashboard stats.
func compute(now time.Time, entries []analytics.Entry) stats {
	st := stats{Alerts: alerts.Evaluate(now, entries)}

	var (
		responseTotal float64
		responseCount int
		params        = map[string]int{}
		devices       = map[string]int{}
		filters       = map[string]int{}
		widget        = map[string]int{}
	)
	for _, e := range entries {
		switch {
		case e.Event == analytics.EventToolCallSuccess:
			st.TotalCalls++
			if ms, ok := asFloat(e.Fields["responseTime"]); ok {
				responseTotal += ms
				responseCount++
			}
			if p, ok := e.Fields["params"].(map[string]any); ok {
				for k, v := range p {
					if v == nil {
						continue
					}
					params[k]++
					if k == "view_filter" {
						if f, ok := v.(string); ok && f != "" {
							filters[f]++
						}
					}
				}
			}
			if d, ok := e.Fields["device"].(string); ok && d != "" {
				devices[d]++
			}
		case e.Event == analytics.EventParameterParseError:
			st.ParseErrors++
		case strings.HasPrefix(e.Event, analytics.WidgetPrefix):
			widget[analytics.Humanize(e.Event)]++
		}
		if strings.Contains(e.Event, "error") {
			st.Errors++
		}
	}

	st.AvgResponseTime = "N/A"
	if responseCount > 0 {
		st.AvgResponseTime = fmt.Sprintf("%.0f", responseTotal/float64(responseCount))
	}
	st.ParamTotal = st.TotalCalls
	st.ParamUsage = sorted(params)
	st.Devices = sorted(devices)
	st.ViewFilters = sorted(filters)
	st.WidgetInteractions = sorted(widget)
	st.Queries = queries(entries)
	st.Recent = recent(entries)
	return st
}

func sorted(m map[string]int) []count {
	cc := make([]count, 0, len(m))
	for name, n := range m {
		cc = append(cc, count{Name: name, Count: n})
	}
	sort.Slice(cc, func(i, j int) bool {
		if cc[i].Count != cc[j].Count {
			return cc[i].Count > cc[j].Count
		}
		return cc[i].Name < cc[j].Name
	})
	return cc
}

func queries(entries []analytics.Entry) []queryRow {
	var qq []queryRow
	for _, e := range entries {
		if e.Event != analytics.EventToolCallSuccess {
			continue
		}
		q, _ := e.Fields["inferredQuery"].(string)
		if q == "" {
			q = "general"
		}
		locale, _ := e.Fields["userLocale"].(string)
		qq = append(qq, queryRow{
			Time:     e.Timestamp,
			Query:    q,
			Location: formatLocation(e.Fields["userLocation"]),
			Locale:   locale,
		})
		if len(qq) == queriesLimit {
			break
		}
	}
	return qq
}

func recent(entries []analytics.Entry) []eventRow {
	if len(entries) > recentLimit {
		entries = entries[:recentLimit]
	}
	rows := make([]eventRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, eventRow{
			Time:    e.Timestamp,
			Event:   analytics.Humanize(e.Event),
			Details: details(e.Fields),
			IsError: strings.Contains(e.Event, "error"),
		})
	}
	return rows
}

// details renders the event-specific fields as compact JSON, or a dash when
// there are none.
func details(fields map[string]any) string {
	if len(fields) == 0 {
		return "—"
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "—"
	}
	return string(b)
}

func formatLocation(v any) string {
	loc, ok := v.(map[string]any)
	if !ok {
		return "—"
	}
	var parts []string
	for _, key := range []string{"city", "region", "country"} {
		if s, _ := loc[key].(string); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, ", ")
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
