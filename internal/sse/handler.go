package sse

// In this file: the HTTP endpoints of the transport.  GET on the stream
// endpoint establishes a session and holds an event stream open; POST on
// the message endpoint carries protocol messages referencing the session.

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// maxMessageSize bounds a single posted protocol message.
const maxMessageSize = 4 << 20

// Handler serves the stream and message endpoints for an MCP server.
type Handler struct {
	mcp      *server.MCPServer
	registry *Registry
	logger   *slog.Logger

	// messagePath is the path advertised to clients in the endpoint event.
	messagePath string
}

// NewHandler creates a transport handler dispatching into srv.  messagePath
// is the location of the message-post endpoint as seen by clients.
func NewHandler(srv *server.MCPServer, messagePath string, lg *slog.Logger) *Handler {
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		mcp:         srv,
		registry:    NewRegistry(),
		messagePath: messagePath,
		logger:      lg,
	}
}

// Registry exposes the session registry, mainly for tests and shutdown
// accounting.
func (h *Handler) Registry() *Registry { return h.registry }

// ServeStream handles GET on the stream endpoint: it allocates a session,
// announces the message endpoint, then relays queued responses and server
// notifications until the client disconnects.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := h.registry.Open()
	defer h.registry.Close(sess.SessionID())

	ctx := r.Context()
	if err := h.mcp.RegisterSession(ctx, sess); err != nil {
		h.logger.ErrorContext(ctx, "sse: register session", "error", err)
		http.Error(w, "failed to establish session", http.StatusInternalServerError)
		return
	}
	defer h.mcp.UnregisterSession(ctx, sess.SessionID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.logger.InfoContext(ctx, "sse: session opened", "session_id", sess.SessionID())

	fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", h.messagePath, sess.SessionID())
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			h.logger.InfoContext(ctx, "sse: session closed", "session_id", sess.SessionID())
			return
		case <-sess.done:
			return
		case data := <-sess.outbox:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case n := <-sess.notifs:
			data, err := json.Marshal(n)
			if err != nil {
				h.logger.ErrorContext(ctx, "sse: marshal notification", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// ServeMessage handles POST on the message endpoint.  The session id comes
// from the sessionId query parameter: absent ids are a 400, unknown ids a
// 404.  The protocol response travels back over the session's stream, not
// in the POST response body.
func (h *Handler) ServeMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	sess, ok := h.registry.Get(sessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	ctx := h.mcp.WithContext(r.Context(), sess)
	response := h.mcp.HandleMessage(ctx, body)
	if response != nil {
		data, err := json.Marshal(response)
		if err != nil {
			h.logger.ErrorContext(ctx, "sse: marshal response", "error", err)
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}
		// The session may have gone away while the message was being
		// handled; in that case the response is discarded, not an error.
		if !sess.send(data) {
			h.logger.WarnContext(ctx, "sse: session closed mid-call, response discarded",
				"session_id", sessionID)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}
