package advisory

import (
	"fmt"
	"strings"
)

var highImpactKeywords = []string{
	"outage", "down", "offline", "unavailable", "failed", "failure",
	"data loss", "security", "breach",
}

var mediumImpactKeywords = []string{
	"degraded", "degradation", "slow", "latency", "intermittent",
	"partial", "investigating", "elevated error",
}

// fallbackAnalysis classifies a draft with keyword heuristics when the LLM
// is unavailable. Relevance requires a configured module name to appear in
// the advisory text; with no modules configured nothing is flagged.
func fallbackAnalysis(draft Draft, modules []string) Analysis {
	criticality := fallbackCriticality(draft)
	text := strings.ToLower(draft.Title + " " + draft.Description)

	var affected []string
	for _, m := range modules {
		if strings.Contains(text, strings.ToLower(m)) {
			affected = append(affected, m)
		}
	}

	affects := len(affected) > 0
	var reason string
	switch {
	case affects:
		reason = fmt.Sprintf("Keyword analysis: advisory mentions %s", strings.Join(affected, ", "))
	case len(modules) == 0:
		reason = "Keyword analysis: no modules configured for filtering"
	default:
		reason = "Keyword analysis: no monitored module mentioned"
	}

	return Analysis{
		Criticality:     criticality,
		AffectsUs:       affects,
		AffectedModules: affected,
		Reason:          reason,
	}
}

// fallbackCriticality buckets the vendor severity first, then lets outage
// keywords in the text raise the result to high regardless of what the
// vendor claimed.
func fallbackCriticality(draft Draft) string {
	criticality := CriticalityLow
	switch strings.ToLower(draft.Severity) {
	case "critical", "high", "severe", "major":
		criticality = CriticalityHigh
	case "medium", "moderate", "warning", "minor":
		criticality = CriticalityMedium
	}

	text := strings.ToLower(draft.Title + " " + draft.Description)
	for _, kw := range highImpactKeywords {
		if strings.Contains(text, kw) {
			return CriticalityHigh
		}
	}
	if criticality == CriticalityLow {
		for _, kw := range mediumImpactKeywords {
			if strings.Contains(text, kw) {
				return CriticalityMedium
			}
		}
	}
	return criticality
}
