package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/statuswatch/statuswatch/internal/status"
)

// indicatorStatus maps statuspage-style summary.json indicators.
var indicatorStatus = map[string]status.Status{
	"none":        status.Operational,
	"minor":       status.Degraded,
	"major":       status.Incident,
	"critical":    status.Incident,
	"maintenance": status.Maintenance,
}

// genericStatusKeys are probed, in order, on JSON bodies that don't follow
// the summary.json shape.
var genericStatusKeys = []string{"status", "state", "health", "overall_status"}

func canParseJSON(contentType, content string) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	t := strings.TrimSpace(content)
	if t == "" || (t[0] != '{' && t[0] != '[') {
		return false
	}
	return json.Valid([]byte(t))
}

func parseJSON(content, url string, now time.Time) (*Result, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, &ParseError{SourceType: "json", Msg: "invalid JSON", Err: err}
	}

	if statusBlock, ok := data["status"].(map[string]any); ok {
		return parseSummaryJSON(data, statusBlock)
	}

	// Generic JSON: probe common status keys through the normalizer.
	st := status.Unknown
	for _, key := range genericStatusKeys {
		if v, ok := data[key]; ok {
			st = status.Normalize(toString(v))
			break
		}
	}
	return &Result{
		Status:  st,
		Summary: "Status information retrieved",
		RawData: data,
	}, nil
}

// parseSummaryJSON handles the statuspage summary.json shape.
func parseSummaryJSON(data, statusBlock map[string]any) (*Result, error) {
	indicator := strings.ToLower(toString(statusBlock["indicator"]))
	st, ok := indicatorStatus[indicator]
	if !ok {
		st = status.Unknown
	}

	components := extractJSONComponents(data)
	if len(components) > 0 {
		st = status.Worse(st, status.WorstComponent(components))
	}

	incidents := extractJSONIncidents(data)

	summary := toString(statusBlock["description"])
	if summary == "" {
		if len(incidents) > 0 {
			summary = incidents[0].Title
		} else {
			summary = "All systems operational"
		}
	}

	var lastChanged *time.Time
	if raw := toString(statusBlock["updated_at"]); raw != "" {
		if ts, err := dateparse.ParseAny(raw); err == nil {
			lastChanged = &ts
		}
	}

	return &Result{
		Status:        st,
		Summary:       summary,
		RawData:       data,
		LastChangedAt: lastChanged,
		Components:    components,
		Incidents:     incidents,
	}, nil
}

func extractJSONComponents(data map[string]any) []status.Component {
	list, ok := data["components"].([]any)
	if !ok {
		return nil
	}
	var components []status.Component
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := toString(m["name"])
		if name == "" {
			continue
		}
		components = append(components, status.Component{
			Name:   name,
			Status: status.Normalize(toString(m["status"])),
		})
	}
	return components
}

func extractJSONIncidents(data map[string]any) []Incident {
	list, ok := data["incidents"].([]any)
	if !ok {
		return nil
	}
	var incidents []Incident
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title := toString(m["name"])
		if title == "" {
			title = toString(m["title"])
		}
		if title == "" {
			continue
		}
		inc := Incident{
			Title:       title,
			Description: toString(m["body"]),
			Severity:    toString(m["impact"]),
			Link:        toString(m["shortlink"]),
		}
		for _, key := range []string{"started_at", "created_at", "updated_at"} {
			if raw := toString(m[key]); raw != "" {
				if ts, err := dateparse.ParseAny(raw); err == nil {
					inc.PublishedAt = &ts
					break
				}
			}
		}
		incidents = append(incidents, inc)
	}
	return incidents
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
