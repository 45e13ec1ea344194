// Package classify turns free-form statement text into deduplicated
// subscription candidates using the merchant pattern registry.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/justcancel/justcancel/internal/pattern"
)

// Status is the classification state of a detected subscription.
type Status string

const (
	StatusConfirmed       Status = "confirmed_subscription"
	StatusCancelling      Status = "cancelling"
	StatusKeeping         Status = "keeping"
	StatusInvestigating   Status = "investigating"
	StatusNotSubscription Status = "not_subscription"
	StatusUnknown         Status = "unknown"
)

// Candidate is a detected subscription entity produced by one classification
// run.  Candidates are merchant-level: repeated charges for the same service
// collapse into a single candidate with Count incremented.
type Candidate struct {
	ID          string  `json:"id"`
	Service     string  `json:"service"`
	MonthlyCost float64 `json:"monthlyCost"`
	Status      Status  `json:"status"`
	Category    string  `json:"category"`
	Logo        string  `json:"logo,omitempty"`
	Count       int     `json:"count"`
	SourceLine  string  `json:"source_line,omitempty"`
}

// minLineLen is the shortest line that can plausibly carry a merchant name
// and an amount.
const minLineLen = 5

// priceRe matches a fixed-point currency-shaped token: digits, a decimal
// point, and exactly two decimal digits.
var priceRe = regexp.MustCompile(`\d+\.\d{2}`)

var newlineRe = regexp.MustCompile(`\r?\n|\r`)

// Classifier scans text against a pattern registry.
type Classifier struct {
	reg *pattern.Registry
}

// New creates a classifier over the given registry.
func New(reg *pattern.Registry) *Classifier {
	return &Classifier{reg: reg}
}

// Classify scans text line by line and returns the detected subscription
// candidates, deduplicated by case-insensitive service name, in first-seen
// order.  Empty or unmatched input yields an empty slice, never an error.
func (c *Classifier) Classify(text string) []Candidate {
	found := make(map[string]*Candidate)
	var order []string

	patterns := c.reg.All()
	for _, line := range newlineRe.Split(text, -1) {
		if len(line) < minLineLen {
			continue
		}
		lower := strings.ToLower(line)
		for i := range patterns {
			p := &patterns[i]
			if !p.Matches(lower) {
				continue
			}
			// The default cost applies only when the line carries no
			// price token at all; an explicit 0.00 stays zero.
			cost, priced := extractPrice(line)
			if !priced {
				cost = p.DefaultCost
			}
			key := strings.ToLower(p.Name)
			if existing, ok := found[key]; ok {
				existing.Count++
				// Backfill a cost only while it is still unknown.
				if existing.MonthlyCost == 0 && cost > 0 {
					existing.MonthlyCost = cost
				}
				continue
			}
			found[key] = &Candidate{
				ID:          "sub-" + uuid.NewString(),
				Service:     p.Name,
				MonthlyCost: cost,
				Status:      StatusConfirmed,
				Category:    p.Category,
				Logo:        p.Logo,
				Count:       1,
				SourceLine:  line,
			}
			order = append(order, key)
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, *found[key])
	}
	return out
}

// extractPrice returns the first currency-shaped token in line, and whether
// one was present at all.
func extractPrice(line string) (float64, bool) {
	m := priceRe.FindString(line)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
