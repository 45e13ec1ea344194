// Command justcancel runs the Just Cancel assistant-tool server: the SSE
// transport, the subscription analysis tool, the analytics dashboard, and
// the newsletter subscribe endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rusq/osenv/v2"
	"golang.org/x/sync/errgroup"

	"github.com/justcancel/justcancel/internal/alerts"
	"github.com/justcancel/justcancel/internal/analytics"
	"github.com/justcancel/justcancel/internal/buttondown"
	"github.com/justcancel/justcancel/internal/catalog"
	"github.com/justcancel/justcancel/internal/classify"
	"github.com/justcancel/justcancel/internal/dashboard"
	"github.com/justcancel/justcancel/internal/mcpsrv"
	"github.com/justcancel/justcancel/internal/pattern"
	"github.com/justcancel/justcancel/internal/sse"
	"github.com/justcancel/justcancel/internal/statement"
)

const (
	ssePath          = "/mcp"
	messagePath      = "/mcp/messages"
	subscribePath    = "/api/subscribe"
	trackPath        = "/api/track"
	analyticsPath    = "/analytics"
	healthPath       = "/health"
	verificationPath = "/.well-known/openai-apps-challenge"
)

var build = "dev"

// secrets lists the files consulted for environment secrets.  The .txt
// variants exist because Windows editors tend to tack the extension onto a
// freshly created .env file, and fighting that is not worth it.
var secrets = []string{".env", ".env.txt", "secrets.txt"}

// params is the command line parameters.
type params struct {
	addr              string
	assetsDir         string
	logsDir           string
	pdftotext         string
	analyticsPassword string
	buttondownKey     string
	verificationToken string

	printVersion bool
	verbose      bool
}

func main() {
	loadSecrets(secrets)

	p, err := parseCmdLine(os.Args[1:])
	if err != nil {
		slog.Error("invalid parameters", "error", err)
		os.Exit(1)
	}
	if p.printVersion {
		fmt.Println(build)
		return
	}
	if p.verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, p); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, p params) error {
	lg := slog.Default()

	events, err := analytics.NewLogger(p.logsDir, lg)
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	cat, err := catalog.Load(p.assetsDir, build)
	if err != nil {
		return fmt.Errorf("widget catalog: %w", err)
	}

	srv := mcpsrv.New(mcpsrv.Config{
		Catalog:    cat,
		Classifier: classify.New(pattern.Default()),
		Statements: &statement.Reader{
			Fetcher:   &statement.HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}},
			Extractor: &statement.PDFToText{Path: p.pdftotext},
		},
		Events: events,
		Logger: lg,
	})
	transport := sse.NewHandler(srv.MCP(), messagePath, lg)

	mux := http.NewServeMux()
	mux.Handle("GET "+ssePath, http.HandlerFunc(transport.ServeStream))
	mux.Handle("POST "+messagePath, http.HandlerFunc(transport.ServeMessage))
	mux.Handle("OPTIONS "+ssePath, http.HandlerFunc(preflight))
	mux.Handle("OPTIONS "+messagePath, http.HandlerFunc(preflight))
	mux.Handle("GET "+analyticsPath, dashboard.NewHandler(events, p.analyticsPassword, lg))
	mux.Handle(subscribePath, buttondown.SubscribeHandler(buttondown.NewClient(p.buttondownKey, lg), events, lg))
	mux.Handle(trackPath, analytics.TrackHandler(events))
	mux.Handle("GET "+healthPath, http.HandlerFunc(healthcheck))
	if p.verificationToken != "" {
		mux.Handle("GET "+verificationPath, verification(p.verificationToken))
	}
	mux.Handle("GET /assets/", assets(p.assetsDir))

	httpServer := &http.Server{
		Addr:    p.addr,
		Handler: middleware.Logger(mux),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.InfoContext(ctx, "listening", "addr", p.addr, "sse", ssePath, "messages", messagePath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		lg.InfoContext(ctx, "shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutCtx)
	})
	g.Go(func() error {
		monitor(ctx, events, lg)
		return nil
	})
	return g.Wait()
}

// monitor checks the alert rules hourly and logs any that fire.
func monitor(ctx context.Context, events *analytics.Logger, lg *slog.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		entries, err := events.Recent(7)
		if err != nil {
			lg.ErrorContext(ctx, "monitoring check failed", "error", err)
			continue
		}
		for _, a := range alerts.Evaluate(time.Now(), entries) {
			lg.WarnContext(ctx, "active alert", "id", a.ID, "level", a.Level, "message", a.Message)
		}
	}
}

func healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

// verification serves the domain ownership token for the well-known
// challenge path.
func verification(token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, token)
	})
}

// preflight answers CORS preflight requests on the MCP endpoints.
func preflight(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "content-type")
	w.WriteHeader(http.StatusNoContent)
}

// assets serves the widget bundle files.  Browsers fetch these cross
// origin, and the bundle changes on deploy, so caching is off.
func assets(dir string) http.Handler {
	fs := http.StripPrefix("/assets/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-cache")
		fs.ServeHTTP(w, r)
	})
}

// loadSecrets load secrets from the files in secrets slice.
func loadSecrets(files []string) {
	for _, f := range files {
		godotenv.Load(f)
	}
}

// parseCmdLine parses the command line arguments.
func parseCmdLine(args []string) (params, error) {
	fs := flag.NewFlagSet("justcancel", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			flag.CommandLine.Output(),
			"Just Cancel server, %s\n"+
				"Serves the subscription-analysis tool over SSE, along with the\n"+
				"analytics dashboard and the widget asset bundle.\n\n"+
				"Usage:  %s [flags]\n\n",
			build, filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	var p params
	fs.StringVar(&p.addr, "addr", osenv.Value("ADDR", ":8000"), "listen `address`")
	fs.StringVar(&p.assetsDir, "assets", osenv.Value("ASSETS_DIR", "assets"), "widget asset `directory`")
	fs.StringVar(&p.logsDir, "logs", osenv.Value("LOGS_DIR", "logs"), "analytics event log `directory`")
	fs.StringVar(&p.pdftotext, "pdftotext", osenv.Value("PDFTOTEXT", ""), "`path` to the pdftotext binary, if not on PATH")
	fs.StringVar(&p.analyticsPassword, "analytics-password", osenv.Secret("ANALYTICS_PASSWORD", "changeme123"), "dashboard `password` (environment: ANALYTICS_PASSWORD)")
	fs.StringVar(&p.buttondownKey, "buttondown-token", osenv.Secret("BUTTONDOWN_API_KEY", ""), "Buttondown API `key` (environment: BUTTONDOWN_API_KEY)")
	fs.StringVar(&p.verificationToken, "verification-token", osenv.Secret("OPENAI_DOMAIN_VERIFICATION_TOKEN", ""), "domain verification `token` (environment: OPENAI_DOMAIN_VERIFICATION_TOKEN)")
	fs.BoolVar(&p.printVersion, "version", false, "print version and exit")
	fs.BoolVar(&p.verbose, "v", osenv.Value("DEBUG", false), "verbose messages")

	if err := fs.Parse(args); err != nil {
		return p, err
	}
	return p, nil
}
