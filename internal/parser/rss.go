package parser

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/statuswatch/statuswatch/internal/status"
)

// recentWindow bounds how long a resolved incident keeps a feed in the
// recently_resolved state, and how far back an unresolved entry still counts
// as active.
const recentWindow = 24 * time.Hour

var resolvedKeywords = []string{
	"resolved", "completed", "fixed", "corrected", "restored", "mitigated",
}

// informationalKeywords mark entries that are excluded from status
// determination entirely: announcements, digests and notices with no
// operational impact.
var informationalKeywords = []string{
	"no operational impact", "informational", "announcement",
	"ip address changes", "may be delayed", "scheduled", "summary",
	"summaries", "update:",
}

// activeSeverity classifies an unresolved entry; checked in order, first
// match wins, and an unclassifiable active entry defaults to degraded.
var activeSeverity = []struct {
	st       status.Status
	keywords []string
}{
	{status.Incident, []string{"major outage", "outage", "down", "critical", "unavailable", "major"}},
	{status.Degraded, []string{"investigating", "identified", "monitoring"}},
	{status.Maintenance, []string{"maintenance", "scheduled"}},
}

func canParseRSS(contentType, content string) bool {
	ct := strings.ToLower(contentType)
	for _, marker := range []string{"xml", "rss", "atom"} {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	head = strings.TrimSpace(head)
	return strings.HasPrefix(head, "<?xml") ||
		strings.Contains(head, "<rss") ||
		strings.Contains(head, "<feed")
}

// feedEntry is one classified feed item.
type feedEntry struct {
	Incident
	published     *time.Time
	resolved      bool
	informational bool
}

func parseRSS(content, url string, now time.Time) (*Result, error) {
	feed, err := gofeed.NewParser().ParseString(content)
	if err != nil {
		return nil, &ParseError{SourceType: "rss", Msg: "invalid feed", Err: err}
	}

	var entries []feedEntry
	var incidents []Incident
	for _, item := range feed.Items {
		e := classifyItem(item)
		// Future-dated entries never influence status.
		if e.published != nil && e.published.After(now) {
			continue
		}
		entries = append(entries, e)
		incidents = append(incidents, e.Incident)
	}

	var active, recentlyResolved []feedEntry
	for _, e := range entries {
		if e.informational {
			continue
		}
		within := func(window time.Duration) bool {
			// Undated entries are assumed current.
			return e.published == nil || now.Sub(*e.published) < window
		}
		switch {
		case !e.resolved && within(recentWindow):
			active = append(active, e)
		case e.resolved && within(recentWindow):
			recentlyResolved = append(recentlyResolved, e)
		}
	}

	result := &Result{
		RawData: map[string]any{
			"feed_title":   feed.Title,
			"feed_updated": feed.Updated,
		},
		Incidents: incidents,
	}

	switch {
	case len(active) > 0:
		driving := active[0]
		result.Status = classifyActiveSeverity(driving)
		result.Summary = driving.Title
		result.LastChangedAt = driving.published
	case len(recentlyResolved) > 0:
		result.Status = status.RecentlyResolved
		titles := make([]string, 0, len(recentlyResolved))
		for _, e := range recentlyResolved {
			titles = append(titles, e.Title)
		}
		result.Summary = "Resolved: " + strings.Join(titles, "; ")
		result.LastChangedAt = recentlyResolved[0].published
	default:
		result.Status = status.Operational
		result.Summary = "All systems operational"
	}

	return result, nil
}

func classifyItem(item *gofeed.Item) feedEntry {
	title := strings.TrimSpace(item.Title)
	desc := stripHTML(item.Description)
	if desc == "" {
		desc = stripHTML(item.Content)
	}

	e := feedEntry{
		Incident: Incident{
			Title:       title,
			Description: desc,
			Link:        item.Link,
		},
	}
	if item.PublishedParsed != nil {
		e.published = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		e.published = item.UpdatedParsed
	}
	e.Incident.PublishedAt = e.published

	text := strings.ToLower(title + " " + desc)
	e.resolved = containsAny(text, resolvedKeywords)
	e.informational = containsAny(text, informationalKeywords)
	return e
}

func classifyActiveSeverity(e feedEntry) status.Status {
	text := strings.ToLower(e.Title + " " + e.Description)
	for _, bucket := range activeSeverity {
		if containsAny(text, bucket.keywords) {
			return bucket.st
		}
	}
	// Unresolved and unclassifiable: degraded is the safe default.
	return status.Degraded
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// stripHTML removes tags and decodes common entities from feed bodies.
func stripHTML(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	s := b.String()
	for entity, repl := range map[string]string{
		"&nbsp;": " ", "&amp;": "&", "&lt;": "<", "&gt;": ">",
		"&quot;": `"`, "&#39;": "'",
	} {
		s = strings.ReplaceAll(s, entity, repl)
	}
	return strings.Join(strings.Fields(s), " ")
}
