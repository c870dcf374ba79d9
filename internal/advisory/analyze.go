package advisory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/statuswatch/statuswatch/internal/llm"
)

const analysisSystemPrompt = `You assess vendor status advisories for an IT operations team. Given an advisory and the list of product modules the team actually uses, judge how critical the advisory is and whether it affects any of those modules. Be conservative: only set affects_us when the advisory clearly concerns a listed module or the whole service.`

// Analyzer assigns criticality and relevance to advisory drafts. When no
// provider is configured, or a completion fails, it falls back to keyword
// heuristics so polling never stalls on the LLM.
type Analyzer struct {
	provider llm.Provider
}

func NewAnalyzer(provider llm.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Analyze assesses one draft in the context of the modules the team uses for
// this site. It always returns a usable analysis.
func (a *Analyzer) Analyze(ctx context.Context, siteName string, draft Draft, modules []string) Analysis {
	if a.provider == nil || !a.provider.IsConfigured() {
		return fallbackAnalysis(draft, modules)
	}

	prompt := buildAnalysisPrompt(siteName, draft, modules)
	response, err := a.provider.Complete(ctx, analysisSystemPrompt, []llm.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		log.Printf("advisory: analysis failed for %q, using fallback: %v", draft.Title, err)
		return fallbackAnalysis(draft, modules)
	}

	var analysis Analysis
	if err := llm.ExtractJSONObject(response, &analysis); err != nil {
		log.Printf("advisory: unparseable analysis for %q, using fallback: %v", draft.Title, err)
		return fallbackAnalysis(draft, modules)
	}

	switch analysis.Criticality {
	case CriticalityLow, CriticalityMedium, CriticalityHigh:
	default:
		analysis.Criticality = fallbackCriticality(draft)
	}
	// Only modules we actually monitor count as affected.
	if len(modules) > 0 {
		analysis.AffectedModules = intersectModules(analysis.AffectedModules, modules)
	}
	return analysis
}

func buildAnalysisPrompt(siteName string, draft Draft, modules []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Service: %s\n", siteName)
	fmt.Fprintf(&b, "Advisory title: %s\n", draft.Title)
	if draft.Description != "" {
		fmt.Fprintf(&b, "Advisory details: %s\n", draft.Description)
	}
	if draft.Severity != "" {
		fmt.Fprintf(&b, "Vendor severity: %s\n", draft.Severity)
	}
	if len(modules) > 0 {
		fmt.Fprintf(&b, "Modules we use: %s\n", strings.Join(modules, ", "))
	} else {
		b.WriteString("Modules we use: (none configured, treat the whole service as in scope)\n")
	}
	b.WriteString(`
Respond with ONLY valid JSON in this exact format:
{
  "criticality": "low|medium|high",
  "affects_us": true,
  "affected_modules": ["module names from the list above"],
  "reason": "one sentence explaining the assessment"
}`)
	return b.String()
}

func intersectModules(claimed, configured []string) []string {
	var kept []string
	for _, c := range claimed {
		for _, m := range configured {
			if strings.EqualFold(strings.TrimSpace(c), m) {
				kept = append(kept, m)
				break
			}
		}
	}
	return kept
}
