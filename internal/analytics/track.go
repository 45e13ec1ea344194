package analytics

// In this file: the HTTP ingest endpoint for widget-side events.

import (
	"encoding/json"
	"net/http"
)

// trackRequest is the body of a widget tracking call.
type trackRequest struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// TrackHandler returns the handler for POST /api/track.  Incoming event
// names are namespaced with the widget prefix before being appended to the
// log, so widget-originated events can never collide with server-side ones.
func TrackHandler(l *Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "content-type")
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodPost:
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(map[string]string{"error": "Method not allowed"})
			return
		}

		var req trackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "Missing event name"})
			return
		}
		l.Log(r.Context(), WidgetPrefix+req.Event, req.Data)
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
}
