package advisory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/statuswatch/statuswatch/internal/llm"
	"github.com/statuswatch/statuswatch/internal/parser"
	"github.com/statuswatch/statuswatch/internal/status"
)

type mockProvider struct {
	response string
	err      error
	prompts  []string
}

func (m *mockProvider) Complete(_ context.Context, _ string, messages []llm.Message) (string, error) {
	if len(messages) > 0 {
		m.prompts = append(m.prompts, messages[len(messages)-1].Content)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockProvider) IsConfigured() bool { return true }

func TestExtractFromIncidents(t *testing.T) {
	published := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	result := &parser.Result{
		Status:  status.Incident,
		Summary: "Major outage",
		Incidents: []parser.Incident{
			{Title: "Database outage", Description: "Writes failing", Severity: "critical", PublishedAt: &published},
			{Title: "  ", Description: "no title, skipped"},
			{Title: "Elevated latency", Severity: "minor"},
		},
	}

	drafts := Extract(result)
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].Title != "Database outage" || drafts[0].Severity != "critical" {
		t.Errorf("draft = %+v", drafts[0])
	}
	if drafts[0].PublishedAt == nil || !drafts[0].PublishedAt.Equal(published) {
		t.Errorf("PublishedAt = %v", drafts[0].PublishedAt)
	}
}

func TestExtractSummaryFallback(t *testing.T) {
	result := &parser.Result{Status: status.Degraded, Summary: "API performance degraded"}
	drafts := Extract(result)
	if len(drafts) != 1 || drafts[0].Title != "API performance degraded" {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestExtractOperationalYieldsNothing(t *testing.T) {
	result := &parser.Result{Status: status.Operational, Summary: "All systems operational"}
	if drafts := Extract(result); len(drafts) != 0 {
		t.Errorf("got %d drafts from operational reading, want 0", len(drafts))
	}
}

func TestAnalyzeUsesProviderResponse(t *testing.T) {
	provider := &mockProvider{response: `{
		"criticality": "high",
		"affects_us": true,
		"affected_modules": ["Exchange Online"],
		"reason": "Mail delivery is broken for the tenant"
	}`}
	analyzer := NewAnalyzer(provider)

	analysis := analyzer.Analyze(context.Background(), "Microsoft 365",
		Draft{Title: "EX1234: Exchange Online mail delays", Description: "Messages queue"},
		[]string{"Exchange Online", "Teams"})

	if analysis.Criticality != CriticalityHigh || !analysis.AffectsUs {
		t.Errorf("analysis = %+v", analysis)
	}
	if len(analysis.AffectedModules) != 1 || analysis.AffectedModules[0] != "Exchange Online" {
		t.Errorf("AffectedModules = %v", analysis.AffectedModules)
	}
}

func TestAnalyzeDropsUnknownModules(t *testing.T) {
	provider := &mockProvider{response: `{
		"criticality": "medium",
		"affects_us": true,
		"affected_modules": ["Exchange Online", "Some Invented Module"],
		"reason": "x"
	}`}
	analyzer := NewAnalyzer(provider)

	analysis := analyzer.Analyze(context.Background(), "Microsoft 365",
		Draft{Title: "Incident"}, []string{"Exchange Online"})

	if len(analysis.AffectedModules) != 1 || analysis.AffectedModules[0] != "Exchange Online" {
		t.Errorf("AffectedModules = %v, want only configured modules", analysis.AffectedModules)
	}
}

func TestAnalyzeFallsBackOnProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("api unavailable")}
	analyzer := NewAnalyzer(provider)

	analysis := analyzer.Analyze(context.Background(), "Vendor",
		Draft{Title: "Teams outage in Europe", Description: "Users cannot join calls"},
		[]string{"Teams"})

	if analysis.Criticality != CriticalityHigh {
		t.Errorf("Criticality = %q, want high", analysis.Criticality)
	}
	if !analysis.AffectsUs {
		t.Error("AffectsUs = false, want true when a monitored module is named")
	}
}

func TestAnalyzeFallsBackOnMalformedJSON(t *testing.T) {
	provider := &mockProvider{response: "I think this is probably fine."}
	analyzer := NewAnalyzer(provider)

	analysis := analyzer.Analyze(context.Background(), "Vendor",
		Draft{Title: "Scheduled maintenance window"}, []string{"Teams"})

	if analysis.Criticality != CriticalityLow || analysis.AffectsUs {
		t.Errorf("analysis = %+v, want low/not affecting from fallback", analysis)
	}
}

func TestAnalyzeWithoutProvider(t *testing.T) {
	analyzer := NewAnalyzer(nil)
	analysis := analyzer.Analyze(context.Background(), "Vendor",
		Draft{Title: "Service unavailable", Severity: "critical"}, nil)
	if analysis.Criticality != CriticalityHigh {
		t.Errorf("Criticality = %q, want high", analysis.Criticality)
	}
	if analysis.AffectsUs {
		t.Error("AffectsUs = true with no modules configured, want false")
	}
}

func TestFallbackRequiresModuleMention(t *testing.T) {
	analysis := fallbackAnalysis(Draft{Title: "Total outage of everything"}, nil)
	if analysis.AffectsUs {
		t.Error("AffectsUs = true with no modules configured, want false")
	}
	if analysis.Criticality != CriticalityHigh {
		t.Errorf("Criticality = %q, want high", analysis.Criticality)
	}

	analysis = fallbackAnalysis(Draft{Title: "Total outage of everything"}, []string{"Teams"})
	if analysis.AffectsUs {
		t.Error("AffectsUs = true without a module mention, want false")
	}
}

func TestFallbackCriticality(t *testing.T) {
	tests := []struct {
		draft Draft
		want  string
	}{
		{Draft{Title: "x", Severity: "critical"}, CriticalityHigh},
		{Draft{Title: "x", Severity: "minor"}, CriticalityMedium},
		{Draft{Title: "Full service outage in Europe", Severity: "warning"}, CriticalityHigh},
		{Draft{Title: "Service is down"}, CriticalityHigh},
		{Draft{Title: "Intermittent latency on API"}, CriticalityMedium},
		{Draft{Title: "Documentation update"}, CriticalityLow},
	}
	for _, tt := range tests {
		if got := fallbackCriticality(tt.draft); got != tt.want {
			t.Errorf("fallbackCriticality(%q/%q) = %q, want %q", tt.draft.Title, tt.draft.Severity, got, tt.want)
		}
	}
}

func TestFallbackModuleMatchingIsCaseInsensitive(t *testing.T) {
	analysis := fallbackAnalysis(
		Draft{Title: "EXCHANGE ONLINE delays", Description: ""},
		[]string{"Exchange Online"})
	if !analysis.AffectsUs {
		t.Error("AffectsUs = false for case-differing module mention")
	}
}
