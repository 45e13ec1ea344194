// Package dashboard serves the operator analytics page: aggregate counters,
// threshold alerts, and the recent event feed, behind HTTP basic auth.
package dashboard

import (
	"crypto/subtle"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/justcancel/justcancel/internal/alerts"
	"github.com/justcancel/justcancel/internal/analytics"
)

//go:embed templates
var fsys embed.FS

const (
	username   = "admin"
	windowDays = 7
)

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"time": func(t time.Time) string { return t.Local().Format(time.DateTime) },
	"pct": func(n, total int) string {
		if total == 0 {
			return "0.0%"
		}
		return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
	},
	"upper": func(s alerts.Severity) string { return strings.ToUpper(string(s)) },
}).ParseFS(fsys, "templates/*.html"))

// Handler serves the analytics dashboard.  password guards it with basic
// auth under the fixed "admin" user; comparison is constant time.
type Handler struct {
	events   *analytics.Logger
	password string
	lg       *slog.Logger
	now      func() time.Time
}

// NewHandler creates a dashboard handler reading from the given event log.
func NewHandler(events *analytics.Logger, password string, lg *slog.Logger) *Handler {
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{events: events, password: password, lg: lg, now: time.Now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="Analytics Dashboard"`)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	ctx := r.Context()

	entries, err := h.events.Recent(windowDays)
	if err != nil {
		h.lg.ErrorContext(ctx, "dashboard: reading event log", "error", err)
		http.Error(w, "Failed to generate analytics", http.StatusInternalServerError)
		return
	}
	st := compute(h.now(), entries)
	for _, a := range st.Alerts {
		h.lg.WarnContext(ctx, "active alert", "id", a.ID, "level", a.Level, "message", a.Message)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "dashboard.html", st); err != nil {
		h.lg.ErrorContext(ctx, "dashboard: rendering template", "error", err)
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.password)) == 1
	return userOK && passOK
}
