// Package analytics implements the append-only operational event log.
// Events are written one JSON object per line into files partitioned by UTC
// calendar date; appenders never read, and readers take bounded snapshot
// reads over a recent window.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

// Known event names.  The log tolerates names outside this set (widget
// events are open-ended), but these are the ones the alert evaluator and the
// dashboard understand.
const (
	EventToolCallSuccess     = "tool_call_success"
	EventToolCallEmpty       = "tool_call_empty"
	EventToolCallError       = "tool_call_error"
	EventParameterParseError = "parameter_parse_error"
	EventFileParseSuccess    = "file_parse_success"
	EventFileParseError      = "file_parse_error"
	EventWidgetCrash         = "widget_crash"
	EventSubscribe           = "widget_notify_me_subscribe"
	EventSubscribeError      = "widget_notify_me_subscribe_error"
)

// WidgetPrefix is prepended to event names ingested from the widget-side
// tracking endpoint.
const WidgetPrefix = "widget_"

// Entry is one event log record: a timestamp, an event name, and an
// open-ended set of event-specific fields.  Unknown event kinds are carried
// through the Fields catch-all so future event names survive a round trip.
type Entry struct {
	Timestamp time.Time
	Event     string
	Fields    map[string]any
}

// MarshalJSON flattens Fields into the top-level object alongside the
// timestamp and event name.
func (e Entry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		m[k] = v
	}
	m["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	m["event"] = e.Event
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON: timestamp and event are
// lifted out, everything else lands in Fields.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	name, _ := m["event"].(string)
	if name == "" {
		return fmt.Errorf("analytics: entry has no event name")
	}
	tsRaw, _ := m["timestamp"].(string)
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return fmt.Errorf("analytics: entry timestamp: %w", err)
	}
	delete(m, "event")
	delete(m, "timestamp")
	e.Timestamp = ts
	e.Event = name
	e.Fields = m
	return nil
}

// humanNames maps raw event names to dashboard display names.
var humanNames = map[string]string{
	EventToolCallSuccess:     "Tool Call Success",
	EventToolCallEmpty:       "Tool Call Empty",
	EventToolCallError:       "Tool Call Error",
	EventParameterParseError: "Parameter Parse Error",
	EventFileParseSuccess:    "File Parse Success",
	EventFileParseError:      "File Parse Error",
	EventWidgetCrash:         "Widget Crash",
	EventSubscribe:           "Subscribe",
	EventSubscribeError:      "Subscribe Error",
	"widget_user_feedback":   "User Feedback",
	"widget_followup_click":  "Follow-up Click",
}

// Humanize returns a display name for an event, falling back to the raw
// name for unknown kinds.
func Humanize(event string) string {
	if h, ok := humanNames[event]; ok {
		return h
	}
	return event
}
