// Package catalog holds the static descriptors of the tools and renderable
// resources (widgets) this server exposes.  The catalog is immutable after
// startup.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MIMEType is the media type of widget HTML resources.
const MIMEType = "text/html+skybridge"

// Widget is one renderable resource and its tool-facing presentation.
type Widget struct {
	ID          string
	Title       string
	TemplateURI string
	Invoking    string
	Invoked     string
	HTML        string
}

// Catalog is the immutable set of widgets, indexed by tool name and by
// resource URI.
type Catalog struct {
	widgets []Widget
	byID    map[string]Widget
	byURI   map[string]Widget
}

// Load reads widget HTML from assetsDir and builds the catalog.  version is
// appended to template URIs for cache busting across deploys.
func Load(assetsDir, version string) (*Catalog, error) {
	html, err := readWidgetHTML(assetsDir, "just-cancel")
	if err != nil {
		return nil, err
	}
	widgets := []Widget{
		{
			ID:          "just-cancel",
			Title:       "Just Cancel — Discover which subscriptions you should cancel to save money",
			TemplateURI: fmt.Sprintf("ui://widget/just-cancel.html?v=%s", version),
			Invoking:    "Opening Just Cancel...",
			Invoked:     "Here is Just Cancel. Analyze your subscriptions to discover which ones you should cancel to save money.",
			HTML:        html,
		},
	}
	c := &Catalog{
		widgets: widgets,
		byID:    make(map[string]Widget, len(widgets)),
		byURI:   make(map[string]Widget, len(widgets)),
	}
	for _, w := range widgets {
		c.byID[w.ID] = w
		c.byURI[w.TemplateURI] = w
	}
	return c, nil
}

// Widgets returns all widgets in declaration order.
func (c *Catalog) Widgets() []Widget {
	return c.widgets
}

// ByID looks a widget up by its tool name.
func (c *Catalog) ByID(id string) (Widget, bool) {
	w, ok := c.byID[id]
	return w, ok
}

// ByURI looks a widget up by its resource URI.
func (c *Catalog) ByURI(uri string) (Widget, bool) {
	w, ok := c.byURI[uri]
	return w, ok
}

// readWidgetHTML loads the built widget HTML for a component.  It prefers
// the exact "<component>.html" file and falls back to the newest hashed
// build output "<component>-*.html".
func readWidgetHTML(assetsDir, component string) (string, error) {
	if _, err := os.Stat(assetsDir); err != nil {
		return "", fmt.Errorf("catalog: widget assets directory %s: %w (run the widget build first)", assetsDir, err)
	}
	direct := filepath.Join(assetsDir, component+".html")
	if data, err := os.ReadFile(direct); err == nil {
		return string(data), nil
	}
	matches, err := filepath.Glob(filepath.Join(assetsDir, component+"-*.html"))
	if err != nil {
		return "", fmt.Errorf("catalog: glob widget assets: %w", err)
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("catalog: widget HTML for %q not found in %s (run the widget build first)", component, assetsDir)
	}
	data, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		return "", fmt.Errorf("catalog: read widget HTML: %w", err)
	}
	return string(data), nil
}

// Meta returns the presentation metadata map attached to the widget's tool
// and resource descriptors, and to tool-call results.
func (w Widget) Meta() map[string]any {
	return map[string]any{
		"openai/outputTemplate":    w.TemplateURI,
		"openai/widgetDescription": "A subscription management tool that helps you analyze your subscriptions and discover which ones to cancel to save money. Call this tool immediately with NO arguments to let the user enter their subscription details manually. Only provide arguments if the user has explicitly stated them.",
		"openai/componentDescriptions": map[string]any{
			"subscription-form": "Input form for subscription details including monthly spend and usage patterns.",
			"analysis-display":  "Display showing subscription analysis and cancellation recommendations.",
			"savings-tracker":   "Progress tracker showing potential monthly savings.",
		},
		"openai/widgetKeywords": []string{
			"subscriptions", "cancel", "money saving", "budget", "streaming",
			"software", "cost reduction", "subscription management",
			"monthly expenses", "financial planning", "saving money",
		},
		"openai/sampleConversations": []map[string]string{
			{"user": "Which subscriptions should I cancel?", "assistant": "Here is Just Cancel. Enter your subscription details to analyze which ones you should cancel to save money."},
			{"user": "I want to reduce my monthly subscription costs", "assistant": "I'll analyze your subscriptions and show you which ones to cancel for maximum savings."},
			{"user": "Help me save money on streaming services", "assistant": "I've loaded Just Cancel to help you identify streaming subscriptions you can cancel."},
		},
		"openai/starterPrompts": []string{
			"Which subscriptions should I cancel?",
			"Help me save money on subscriptions",
			"Analyze my monthly subscription costs",
			"What subscriptions am I wasting money on?",
			"Reduce my streaming service costs",
			"Show me subscriptions I rarely use",
			"Help me cut my monthly expenses",
		},
		"openai/widgetAccessible":       true,
		"openai/resultCanProduceWidget": true,
	}
}

// ToolDescription is the model-facing description of the analysis tool.
const ToolDescription = "Use this tool to analyze subscriptions and discover which ones to cancel to save money. Helps users identify underutilized or wasteful subscriptions. If the user uploads a bank statement PDF or CSV, use the bank_statement parameter. Call this tool immediately with NO arguments to let the user enter their subscription details manually. Only provide arguments if the user has explicitly stated them."

// ResourceDescription describes the widget resource.
const ResourceDescription = "HTML template for the Just Cancel widget that helps analyze subscriptions and identify which ones to cancel for savings."

// SuggestedFollowups are the canned follow-up prompts attached to every
// structured tool response.
var SuggestedFollowups = []string{
	"Which subscriptions should I cancel?",
	"How much can I save monthly?",
	"Show me my most expensive subscriptions",
	"Help me lower my monthly bills",
}

// trimVersion strips a cache-busting query from a template URI, so lookups
// tolerate clients that drop or rewrite the version.
func trimVersion(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

// ByURILoose looks a widget up by URI, ignoring the cache-busting version
// query on both sides.
func (c *Catalog) ByURILoose(uri string) (Widget, bool) {
	if w, ok := c.byURI[uri]; ok {
		return w, true
	}
	want := trimVersion(uri)
	for u, w := range c.byURI {
		if trimVersion(u) == want {
			return w, true
		}
	}
	return Widget{}, false
}
