// Package advisory turns parsed incidents into analyzed advisory records.
package advisory

import (
	"fmt"
	"strings"
	"time"

	"github.com/statuswatch/statuswatch/internal/parser"
	"github.com/statuswatch/statuswatch/internal/status"
)

// Draft is an extracted but not yet analyzed advisory candidate.
type Draft struct {
	Title       string
	Description string
	Severity    string
	Link        string
	PublishedAt *time.Time
}

// Analysis is the assessment of a single advisory, either from the LLM or
// from the keyword fallback.
type Analysis struct {
	Criticality     string   `json:"criticality"`
	AffectsUs       bool     `json:"affects_us"`
	AffectedModules []string `json:"affected_modules"`
	Reason          string   `json:"reason"`
}

const (
	CriticalityLow    = "low"
	CriticalityMedium = "medium"
	CriticalityHigh   = "high"
)

// Extract pulls advisory drafts out of a parse result. Structured incidents
// are preferred; when a non-operational reading carries none, the summary
// itself becomes a single draft so the degradation still leaves a record.
func Extract(result *parser.Result) []Draft {
	if result == nil {
		return nil
	}

	var drafts []Draft
	for _, inc := range result.Incidents {
		title := strings.TrimSpace(inc.Title)
		if title == "" {
			continue
		}
		drafts = append(drafts, Draft{
			Title:       title,
			Description: strings.TrimSpace(inc.Description),
			Severity:    inc.Severity,
			Link:        inc.Link,
			PublishedAt: inc.PublishedAt,
		})
	}
	if len(drafts) > 0 {
		return drafts
	}

	switch result.Status {
	case status.Degraded, status.Incident, status.Maintenance:
		summary := strings.TrimSpace(result.Summary)
		if summary == "" {
			return nil
		}
		drafts = append(drafts, Draft{
			Title:       summary,
			Description: fmt.Sprintf("Status reported as %s.", result.Status),
			PublishedAt: result.LastChangedAt,
		})
	}
	return drafts
}
