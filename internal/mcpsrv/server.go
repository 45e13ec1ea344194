// Package mcpsrv builds the MCP server for the Just Cancel app: the
// subscription-analysis tool, the widget resources, and the dispatch of
// tool calls into the classifier.
package mcpsrv

// In this file: MCP server construction and resource registration.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/justcancel/justcancel/internal/analytics"
	"github.com/justcancel/justcancel/internal/catalog"
	"github.com/justcancel/justcancel/internal/classify"
	"github.com/justcancel/justcancel/internal/statement"
)

const (
	serverName    = "just-cancel"
	serverVersion = "0.1.0"
)

// Config carries the collaborators of the server.
type Config struct {
	Catalog    *catalog.Catalog
	Classifier *classify.Classifier
	Statements *statement.Reader
	Events     *analytics.Logger
	Logger     *slog.Logger
}

// Server wraps the MCP server and the subscription-analysis pipeline behind
// its tool.
type Server struct {
	mcp        *server.MCPServer
	cat        *catalog.Catalog
	classifier *classify.Classifier
	statements *statement.Reader
	events     *analytics.Logger
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// New creates the MCP server and registers all tools and resources.  The
// server does not listen until it is attached to a transport.
func New(cfg Config) *Server {
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	s := &Server{
		cat:        cfg.Catalog,
		classifier: cfg.Classifier,
		statements: cfg.Statements,
		events:     cfg.Events,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     lg,
		now:        time.Now,
	}

	m := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithInstructions(instructions()),
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(false),
	)
	s.mcp = m

	s.registerResources()
	s.registerTools()
	return s
}

// MCP returns the underlying MCP server for transport attachment.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

func instructions() string {
	return `Just Cancel helps users analyze their subscriptions and discover which
ones to cancel to save money on monthly expenses.

Call the just-cancel tool immediately with NO arguments to let the user
enter their subscription details manually.  Provide arguments only when the
user has explicitly stated them, or pass the raw text of a bank statement
via statement_text / an uploaded file via bank_statement to have it scanned
for recurring charges.`
}

// registerResources registers each widget as a readable resource and as a
// resource template.  Content is returned verbatim; lookups outside the
// registered URIs fail with the protocol's resource-not-found error.
func (s *Server) registerResources() {
	for _, w := range s.cat.Widgets() {
		res := mcp.Resource{
			URI:         w.TemplateURI,
			Name:        w.Title,
			Description: catalog.ResourceDescription,
			MIMEType:    catalog.MIMEType,
			Meta:        &mcp.Meta{AdditionalFields: w.Meta()},
		}
		s.mcp.AddResource(res, s.handleReadResource)

		tmpl := mcp.NewResourceTemplate(w.TemplateURI, w.Title,
			mcp.WithTemplateDescription(catalog.ResourceDescription),
			mcp.WithTemplateMIMEType(catalog.MIMEType),
		)
		s.mcp.AddResourceTemplate(tmpl, s.handleReadResourceTemplate)
	}
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	w, ok := s.cat.ByURILoose(req.Params.URI)
	if !ok {
		return nil, fmt.Errorf("unknown resource: %s", req.Params.URI)
	}
	s.logger.InfoContext(ctx, "resources/read", "uri", req.Params.URI)
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      w.TemplateURI,
			MIMEType: catalog.MIMEType,
			Text:     w.HTML,
		},
	}, nil
}

func (s *Server) handleReadResourceTemplate(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return s.handleReadResource(ctx, req)
}

// registerTools registers the analysis tool for each widget.  The schemas
// are declared raw: the input contract forbids unknown properties and the
// output carries nullable numeric summary fields.
func (s *Server) registerTools() {
	for _, w := range s.cat.Widgets() {
		tool := mcp.NewToolWithRawSchema(w.ID, catalog.ToolDescription, catalog.ToolInputSchema)
		tool.RawOutputSchema = catalog.ToolOutputSchema
		tool.Annotations = mcp.ToolAnnotation{
			Title:           w.Title,
			ReadOnlyHint:    mcp.ToBoolPtr(true),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		}
		tool.Meta = &mcp.Meta{AdditionalFields: toolMeta(w)}
		s.mcp.AddTool(tool, s.handleAnalyze)
	}
}

// toolMeta extends the widget presentation metadata with the tool-only
// keys.
func toolMeta(w catalog.Widget) map[string]any {
	m := w.Meta()
	m["openai/visibility"] = "public"
	m["openai/fileParams"] = []string{"bank_statement"}
	return m
}
