package mcpsrv

// In this file: the analysis tool handler.  One call runs the full
// pipeline: resolve, validate, fetch and extract any uploaded statement,
// classify, merge manual entries, aggregate spend, assemble the structured
// response, and record exactly one analytics event.

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/justcancel/justcancel/internal/analytics"
	"github.com/justcancel/justcancel/internal/catalog"
	"github.com/justcancel/justcancel/internal/classify"
)

// analysisSummary is the aggregate block of the structured response.
type analysisSummary struct {
	SubscriptionCount int     `json:"subscription_count"`
	MonthlySpend      float64 `json:"monthly_spend"`
	YearlySpend       float64 `json:"yearly_spend"`
	AnalysisType      string  `json:"analysis_type"`
}

// analysisResult is the structured payload of a tool call.  The response
// carries no content blocks at all: the widget renders everything, so the
// payload is the whole answer.
type analysisResult struct {
	Ready              bool                 `json:"ready"`
	Timestamp          string               `json:"timestamp"`
	Subscriptions      []classify.Candidate `json:"subscriptions"`
	TotalMonthlySpend  float64              `json:"total_monthly_spend"`
	ViewFilter         string               `json:"view_filter,omitempty"`
	InputSource        string               `json:"input_source"`
	FileParsingError   *string              `json:"file_parsing_error"`
	Summary            analysisSummary      `json:"summary"`
	SuggestedFollowups []string             `json:"suggested_followups"`
}

func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
	start := s.now()
	device := "Unknown"
	var userAgent string

	// Anything unexpected below is caught here, logged with its stack, and
	// re-raised so the transport converts it into a protocol error.
	defer func() {
		if r := recover(); r != nil {
			s.events.Log(ctx, analytics.EventToolCallError, map[string]any{
				"error":        fmt.Sprint(r),
				"stack":        string(debug.Stack()),
				"responseTime": s.now().Sub(start).Milliseconds(),
				"device":       device,
				"userAgent":    userAgent,
			})
			s.logger.ErrorContext(ctx, "tool call panicked", "tool", req.Params.Name, "panic", r)
			result, err = nil, fmt.Errorf("%s: internal error: %v", req.Params.Name, r)
		}
	}()

	w, ok := s.cat.ByID(req.Params.Name)
	if !ok {
		s.events.Log(ctx, analytics.EventToolCallError, map[string]any{
			"error":    "unknown tool",
			"toolName": req.Params.Name,
		})
		return nil, fmt.Errorf("unknown tool: %s", req.Params.Name)
	}

	args, err := s.decodeArgs(req)
	if err != nil {
		s.events.Log(ctx, analytics.EventParameterParseError, map[string]any{
			"toolName": req.Params.Name,
			"params":   req.GetArguments(),
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%s: %w", req.Params.Name, err)
	}

	meta := requestMeta(req)
	userAgent, _ = meta["openai/userAgent"].(string)
	device = classifyDevice(userAgent)
	userLocale, _ := meta["openai/locale"].(string)
	userLocation := meta["openai/userLocation"]
	inferSpend(&args, meta)

	// Statement retrieval failures are soft: they surface in the payload
	// and never abort the call.
	var fileParsingError *string
	detected := make([]classify.Candidate, 0)
	if args.BankStatement != nil {
		text, contentType, ferr := s.statements.Text(ctx, args.BankStatement.DownloadURL)
		if ferr != nil {
			msg := ferr.Error()
			fileParsingError = &msg
			s.logger.WarnContext(ctx, "statement parsing failed",
				"file_id", args.BankStatement.FileID, "error", ferr)
			s.events.Log(ctx, analytics.EventFileParseError, map[string]any{
				"file_id": args.BankStatement.FileID,
				"error":   msg,
			})
		} else {
			detected = s.classifier.Classify(text)
			s.events.Log(ctx, analytics.EventFileParseSuccess, map[string]any{
				"file_id":             args.BankStatement.FileID,
				"content_type":        contentType,
				"text_length":         len(text),
				"subscriptions_found": len(detected),
			})
		}
	}
	if args.StatementText != "" {
		detected = mergeCandidates(detected, s.classifier.Classify(args.StatementText))
	}

	// Manually supplied subscriptions are always distinct additional
	// candidates; they are never deduplicated against detected ones.
	all := detected
	for _, m := range args.Subscriptions {
		category := m.Category
		if category == "" {
			category = "Other"
		}
		all = append(all, classify.Candidate{
			ID:          "sub-" + uuid.NewString(),
			Service:     m.Service,
			MonthlyCost: m.MonthlyCost,
			Status:      classify.StatusConfirmed,
			Category:    category,
			Count:       1,
		})
	}

	var calculated float64
	for _, c := range all {
		calculated += c.MonthlyCost
	}
	total := calculated
	if args.TotalMonthlySpend != nil {
		total = *args.TotalMonthlySpend
	}

	analysisType := "Subscription Analysis"
	if args.BankStatement != nil {
		analysisType = "File Analysis"
	}
	structured := analysisResult{
		Ready:             true,
		Timestamp:         s.now().UTC().Format(time.RFC3339),
		Subscriptions:     all,
		TotalMonthlySpend: total,
		ViewFilter:        args.ViewFilter,
		InputSource:       inputSource(req, args),
		FileParsingError:  fileParsingError,
		Summary: analysisSummary{
			SubscriptionCount: len(all),
			MonthlySpend:      total,
			YearlySpend:       total * 12,
			AnalysisType:      analysisType,
		},
		SuggestedFollowups: catalog.SuggestedFollowups,
	}

	s.recordCallEvent(ctx, req, args, all, start, device, userLocation, userLocale, userAgent)

	// content stays empty so that only the structured payload and the
	// embedded widget resource render.
	return &mcp.CallToolResult{
		Result:            mcp.Result{Meta: &mcp.Meta{AdditionalFields: resultMeta(w)}},
		Content:           []mcp.Content{},
		StructuredContent: structured,
	}, nil
}

// mergeCandidates folds extra candidates into base: a service already
// present (case-insensitive) never produces a second candidate.
func mergeCandidates(base, extra []classify.Candidate) []classify.Candidate {
	seen := make(map[string]bool, len(base))
	for _, c := range base {
		seen[strings.ToLower(c.Service)] = true
	}
	for _, c := range extra {
		if seen[strings.ToLower(c.Service)] {
			continue
		}
		seen[strings.ToLower(c.Service)] = true
		base = append(base, c)
	}
	return base
}

// inputSource labels where the call's data came from, for analytics and
// the widget.
func inputSource(req mcp.CallToolRequest, args callArgs) string {
	switch {
	case !hasArguments(req):
		return "default"
	case args.BankStatement != nil:
		return "file_upload"
	default:
		return "user"
	}
}

// recordCallEvent emits exactly one event for a completed call: a success
// event, or a distinguished empty event when the caller supplied nothing
// usable and nothing was detected.
func (s *Server) recordCallEvent(ctx context.Context, req mcp.CallToolRequest, args callArgs, all []classify.Candidate, start time.Time, device string, userLocation any, userLocale, userAgent string) {
	hasInput := len(args.Subscriptions) > 0 ||
		args.TotalMonthlySpend != nil ||
		args.BankStatement != nil ||
		len(all) > 0
	if !hasInput {
		s.events.Log(ctx, analytics.EventToolCallEmpty, map[string]any{
			"toolName": req.Params.Name,
			"params":   req.GetArguments(),
			"reason":   "No subscription details provided",
		})
		return
	}

	var inferred []string
	if n := len(args.Subscriptions); n > 0 {
		inferred = append(inferred, fmt.Sprintf("%d subscriptions", n))
	}
	if args.TotalMonthlySpend != nil {
		inferred = append(inferred, fmt.Sprintf("Spend: $%v", *args.TotalMonthlySpend))
	}
	query := "Just Cancel"
	if len(inferred) > 0 {
		query = strings.Join(inferred, ", ")
	}
	s.events.Log(ctx, analytics.EventToolCallSuccess, map[string]any{
		"toolName":      req.Params.Name,
		"params":        req.GetArguments(),
		"inferredQuery": query,
		"responseTime":  s.now().Sub(start).Milliseconds(),
		"device":        device,
		"userLocation":  userLocation,
		"userLocale":    userLocale,
		"userAgent":     userAgent,
	})
}

// resultMeta is the `_meta` of a tool result: the widget presentation
// metadata plus the widget resource embedded for client-side rendering.
func resultMeta(w catalog.Widget) map[string]any {
	m := w.Meta()
	m["openai.com/widget"] = map[string]any{
		"type": "resource",
		"resource": map[string]any{
			"uri":      w.TemplateURI,
			"mimeType": catalog.MIMEType,
			"text":     w.HTML,
			"title":    w.Title,
		},
	}
	return m
}
