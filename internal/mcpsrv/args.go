package mcpsrv

// In this file: tool argument decoding and validation.  Validation failures
// are fatal to the call; they are logged as parameter_parse_error and never
// reach the classifier.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
)

// callArgs is the decoded input of the analysis tool.  The JSON Schema it
// mirrors declares additionalProperties:false, enforced here by rejecting
// unknown fields.
type callArgs struct {
	Subscriptions     []manualSubscription `json:"subscriptions,omitempty" validate:"omitempty,dive"`
	TotalMonthlySpend *float64             `json:"total_monthly_spend,omitempty" validate:"omitempty,gte=0"`
	ViewFilter        string               `json:"view_filter,omitempty" validate:"omitempty,oneof=all cancelling keeping investigating"`
	StatementText     string               `json:"statement_text,omitempty"`
	BankStatement     *bankStatement       `json:"bank_statement,omitempty"`
}

// manualSubscription is one structured subscription supplied by the caller.
type manualSubscription struct {
	Service     string  `json:"service" validate:"required"`
	MonthlyCost float64 `json:"monthly_cost" validate:"gte=0"`
	Category    string  `json:"category,omitempty"`
}

// bankStatement is a reference to an uploaded statement file.  Both fields
// are required whenever the object is present.
type bankStatement struct {
	DownloadURL string `json:"download_url" validate:"required"`
	FileID      string `json:"file_id" validate:"required"`
}

// decodeArgs turns the raw argument map of a tool call into validated
// callArgs.
func (s *Server) decodeArgs(req mcp.CallToolRequest) (callArgs, error) {
	var args callArgs
	raw := req.GetArguments()
	if len(raw) == 0 {
		return args, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return args, fmt.Errorf("encode arguments: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, fmt.Errorf("decode arguments: %w", err)
	}
	if err := s.validate.Struct(args); err != nil {
		var vErr validator.ValidationErrors
		if errors.As(err, &vErr) {
			return args, fmt.Errorf("arguments failed validation: %s", vErr)
		}
		return args, err
	}
	return args, nil
}

// hasArguments reports whether the request supplied any arguments at all.
func hasArguments(req mcp.CallToolRequest) bool {
	return len(req.GetArguments()) > 0
}

// metaKeys are the locations freeform user text may appear in the request
// metadata, in preference order.
var metaKeys = []string{
	"openai/subject",
	"openai/userPrompt",
	"openai/userText",
	"openai/lastUserMessage",
	"openai/inputText",
	"openai/requestText",
}

var spendRe = regexp.MustCompile(`\$(\d+)`)

// inferSpend backfills total_monthly_spend from a "$<digits>" token in the
// freeform prompt text carried in the request metadata.  It only applies
// when the argument was not supplied explicitly, and only to the first
// non-empty candidate text; later keys never get a second chance.
func inferSpend(args *callArgs, meta map[string]any) {
	if args.TotalMonthlySpend != nil {
		return
	}
	var text string
	for _, key := range metaKeys {
		if s, _ := meta[key].(string); strings.TrimSpace(s) != "" {
			text = s
			break
		}
	}
	m := spendRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	if v, err := strconv.ParseFloat(m[1], 64); err == nil {
		args.TotalMonthlySpend = &v
	}
}

// requestMeta extracts the metadata map from a tool call, or an empty map.
func requestMeta(req mcp.CallToolRequest) map[string]any {
	if req.Params.Meta == nil || req.Params.Meta.AdditionalFields == nil {
		return map[string]any{}
	}
	return req.Params.Meta.AdditionalFields
}
