package buttondown

// In this file: the /api/subscribe endpoint exposed to the widget.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/justcancel/justcancel/internal/analytics"
)

// subscribeRequest is the body posted by the widget.  The settlement* field
// names are the legacy spelling kept for older widget builds.
type subscribeRequest struct {
	Email          string `json:"email"`
	TopicID        string `json:"topicId"`
	TopicName      string `json:"topicName"`
	SettlementID   string `json:"settlementId"`
	SettlementName string `json:"settlementName"`
}

// SubscribeHandler returns the handler for POST /api/subscribe.  Failures
// are recorded in the event log; an "already subscribed" response from the
// API is retried as a subscriber update and reported as success to the
// widget either way.
func SubscribeHandler(api API, events *analytics.Logger, lg *slog.Logger) http.Handler {
	if lg == nil {
		lg = slog.Default()
	}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "content-type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodPost:
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}

		var req subscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
		topicID := firstNonEmpty(req.TopicID, req.SettlementID, "just-cancel")
		topicName := firstNonEmpty(req.TopicName, req.SettlementName, "Just Cancel Updates")
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid email address"})
			return
		}

		ctx := r.Context()
		err := api.Subscribe(ctx, req.Email, topicID, topicName)
		switch {
		case err == nil:
			events.Log(ctx, analytics.EventSubscribe, map[string]any{"email": req.Email, "topicId": topicID})
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"message": "Successfully subscribed! You'll receive money-saving tips and updates.",
			})
		case errors.Is(err, ErrAlreadySubscribed):
			lg.InfoContext(ctx, "subscriber already on list, updating", "email", req.Email, "topic", topicID)
			if err := api.UpdateSubscriber(ctx, req.Email, topicID, topicName); err != nil {
				lg.WarnContext(ctx, "update subscriber failed, returning graceful success",
					"email", req.Email, "topic", topicID, "error", err)
				events.Log(ctx, analytics.EventSubscribeError, map[string]any{
					"stage": "update", "email": req.Email, "error": err.Error(),
				})
				writeJSON(w, http.StatusOK, map[string]any{
					"success": true,
					"message": "You're already subscribed! We'll keep you posted.",
				})
				return
			}
			events.Log(ctx, analytics.EventSubscribe, map[string]any{"email": req.Email, "topicId": topicID, "updated": true})
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"message": "You're now subscribed to this topic!",
			})
		default:
			lg.ErrorContext(ctx, "subscribe failed", "email", req.Email, "error", err)
			events.Log(ctx, analytics.EventSubscribeError, map[string]any{
				"stage": "subscribe", "email": req.Email, "error": err.Error(),
			})
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to subscribe"})
		}
	})
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
