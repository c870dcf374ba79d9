package parser

import (
	"fmt"
	"strings"

	"github.com/statuswatch/statuswatch/internal/status"
)

// ApplyModuleFilter recomputes a result's status from only the components
// whose names appear in the allow-list (case-insensitive). The summary is
// rewritten to name the affected monitored components. When the allow-list
// is empty, or matches none of the extracted components, the result is left
// untouched; a filter that matches nothing carries no information.
func ApplyModuleFilter(r *Result, modules []string) bool {
	if r == nil || len(modules) == 0 || len(r.Components) == 0 {
		return false
	}

	allowed := make(map[string]bool, len(modules))
	for _, m := range modules {
		allowed[strings.ToLower(strings.TrimSpace(m))] = true
	}

	var filtered []status.Component
	for _, c := range r.Components {
		if allowed[strings.ToLower(strings.TrimSpace(c.Name))] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return false
	}

	worst := status.WorstComponent(filtered)
	if worst == status.Unknown {
		return false
	}
	var affected []string
	for _, c := range filtered {
		if c.Status != status.Operational && c.Status != status.Unknown {
			affected = append(affected, fmt.Sprintf("%s (%s)", c.Name, c.Status))
		}
	}

	r.Status = worst
	if len(affected) > 0 {
		r.Summary = "Affected components: " + strings.Join(affected, ", ")
	} else {
		r.Summary = "All monitored components operational"
	}
	return true
}
