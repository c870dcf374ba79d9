package parser

import (
	neturl "net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/statuswatch/statuswatch/internal/status"
)

func canParseHTML(contentType, content string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	t := strings.TrimSpace(content)
	lower := strings.ToLower(t)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

// dialectFunc is one vendor-specific extraction heuristic. It returns
// Unknown when the page doesn't match its dialect, which moves the chain on
// to the next extractor.
type dialectFunc func(p *htmlPage) (status.Status, string)

// dialects is the prioritized extraction chain. First non-unknown result
// wins. The chain is best-effort pattern matching against page text and
// markup; an unrecognized page yields Unknown rather than a false
// operational.
var dialects = []dialectFunc{
	extractAdminPortal,
	extractTrustPortal,
	extractStatusPage,
	extractGeneric,
}

// htmlPage carries the document plus the components and incidents extractors
// attach as they run.
type htmlPage struct {
	doc        *goquery.Document
	content    string
	url        string
	components []status.Component
	incidents  []Incident
}

func parseHTML(content, url string, now time.Time) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, &ParseError{SourceType: "html", Msg: "invalid HTML", Err: err}
	}

	p := &htmlPage{doc: doc, content: content, url: url}

	st := status.Unknown
	summary := ""
	for _, dialect := range dialects {
		st, summary = dialect(p)
		if st != status.Unknown {
			break
		}
	}
	if st == status.Unknown && summary == "" {
		summary = "Unable to determine status"
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	return &Result{
		Status:  st,
		Summary: summary,
		RawData: map[string]any{
			"url":   url,
			"title": title,
		},
		Components: p.components,
		Incidents:  p.incidents,
		// HTML carries no reliable change timestamp.
		LastChangedAt: nil,
	}, nil
}

var (
	activeIncidentRe  = regexp.MustCompile(`(?i)(\d+)\s+active\s+incident`)
	advisoryCountRe   = regexp.MustCompile(`(?i)(\d+)\s+advisor(?:y|ies)`)
	degradationRe     = regexp.MustCompile(`(?i)service degradation|degraded`)
	incidentWordRe    = regexp.MustCompile(`\bIncident\b`)
	healthyWordRe     = regexp.MustCompile(`Healthy`)
	advisoryIDRe      = regexp.MustCompile(`\b[A-Z]{2}\d{4,}\b`)
	advisoryDateRe    = regexp.MustCompile(`\b\w+ \d{1,2}, \d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	statusIndicatorRe = regexp.MustCompile(`(?i)status.*indicator`)
	pageStatusRe      = regexp.MustCompile(`(?i)page-status`)
	incidentClassRe   = regexp.MustCompile(`(?i)incident`)
	titleClassRe      = regexp.MustCompile(`(?i)title|name`)
	resolvedTextRe    = regexp.MustCompile(`(?i)resolved|completed`)
	statusDivClassRe  = regexp.MustCompile(`(?i)status|banner|alert|notice`)
)

// extractAdminPortal handles authenticated admin-portal service health pages
// that report per-service Incident/Degraded/Advisory/Healthy labels in free
// text and list advisories in tables or lists.
func extractAdminPortal(p *htmlPage) (status.Status, string) {
	text := p.doc.Text()
	lower := strings.ToLower(text)

	if !strings.Contains(lower, "service health") {
		if strings.Contains(lower, "sign in") {
			return status.Unknown, "Authentication required"
		}
		return status.Unknown, ""
	}

	p.incidents = append(p.incidents, extractAdvisoryBlocks(p.doc)...)

	incidentCount := 0
	if m := activeIncidentRe.FindStringSubmatch(text); m != nil {
		incidentCount, _ = strconv.Atoi(m[1])
	}

	if degradationRe.MatchString(text) {
		return status.Degraded, "Service degradation detected"
	}
	if incidentCount > 0 {
		return status.Incident, strconv.Itoa(incidentCount) + " active incident(s)"
	}
	if incidentWordRe.MatchString(text) {
		return status.Incident, "Active service incident"
	}

	if healthy := len(healthyWordRe.FindAllString(text, -1)); healthy > 5 {
		if matches := advisoryCountRe.FindAllStringSubmatch(text, -1); len(matches) > 0 {
			total := 0
			for _, m := range matches {
				n, _ := strconv.Atoi(m[1])
				total += n
			}
			return status.Operational, "All services healthy (" + strconv.Itoa(total) + " informational advisories)"
		}
		return status.Operational, "All services healthy"
	}

	return status.Unknown, "Unable to determine status"
}

// extractAdvisoryBlocks pulls individual advisory rows out of tables and
// lists by heuristic title/ID/date matching.
func extractAdvisoryBlocks(doc *goquery.Document) []Incident {
	var incidents []Incident
	seen := make(map[string]bool)

	doc.Find("tr, li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if len(text) < 10 || len(text) > 500 {
			return
		}
		id := advisoryIDRe.FindString(text)
		if id == "" {
			return
		}
		title := strings.TrimSpace(strings.SplitN(text, id, 2)[0])
		if title == "" || seen[title] {
			return
		}
		seen[title] = true

		inc := Incident{Title: title, Description: text}
		if raw := advisoryDateRe.FindString(text); raw != "" {
			if ts, err := dateparse.ParseAny(raw); err == nil {
				inc.PublishedAt = &ts
			}
		}
		incidents = append(incidents, inc)
	})
	return incidents
}

// extractTrustPortal handles trust-portal pages that label each component
// with a status text span and majority-reduce into a page banner.
func extractTrustPortal(p *htmlPage) (status.Status, string) {
	spans := p.doc.Find("span[class*='status-list-component-status-text']")
	if spans.Length() > 0 {
		var normal, maintenance, degraded, unavailable int
		spans.Each(func(_ int, sel *goquery.Selection) {
			text := strings.ToLower(strings.TrimSpace(sel.Text()))
			class, _ := sel.Attr("class")
			class = strings.ToLower(class)

			name := strings.TrimSpace(sel.Parent().Find("span[class*='component-name']").Text())

			switch {
			case strings.Contains(class, "component-available") &&
				(text == "normal" || text == "operational" || text == "available"):
				normal++
				p.addComponent(name, status.Operational)
			case strings.Contains(text, "maintenance") || strings.Contains(class, "maintenance"):
				maintenance++
				p.addComponent(name, status.Maintenance)
			case strings.Contains(class, "degraded") || strings.Contains(text, "degraded"):
				degraded++
				p.addComponent(name, status.Degraded)
			case strings.Contains(class, "unavailable") || strings.Contains(text, "unavailable"):
				unavailable++
				p.addComponent(name, status.Incident)
			}
		})

		switch {
		case unavailable > 0:
			return status.Incident, strconv.Itoa(unavailable) + " service(s) unavailable"
		case degraded > 0:
			return status.Degraded, strconv.Itoa(degraded) + " service(s) degraded"
		case maintenance > 0 && normal == 0:
			return status.Maintenance, "System maintenance in progress"
		case normal > 0 && maintenance > 0:
			return status.Operational, "All systems operational (" + strconv.Itoa(maintenance) + " scheduled maintenance)"
		case normal > 0:
			return status.Operational, "All systems operational"
		}
	}

	// Banner fallback. A maintenance banner is not trusted: it is often
	// stale or refers to scheduled future events.
	banner := p.doc.Find("span[class*='current-status-comp-status-text']").First()
	if banner.Length() > 0 {
		text := strings.ToLower(strings.TrimSpace(banner.Text()))
		switch {
		case text == "operational" || text == "all systems operational" || text == "normal":
			return status.Operational, "All systems operational"
		case strings.Contains(text, "incident") || strings.Contains(text, "major") || strings.Contains(text, "outage"):
			return status.Incident, "Service incident"
		case strings.Contains(text, "degraded") || strings.Contains(text, "minor"):
			return status.Degraded, "Service degraded"
		}
	}

	return status.Unknown, ""
}

// componentAttrStatus maps data-component-status attribute values.
var componentAttrStatus = map[string]status.Status{
	"operational":          status.Operational,
	"degraded_performance": status.Degraded,
	"partial_outage":       status.Degraded,
	"major_outage":         status.Incident,
	"under_maintenance":    status.Maintenance,
}

// extractStatusPage handles generic statuspage-style pages: per-component
// data-component-status attributes plus a page-level status-indicator class.
func extractStatusPage(p *htmlPage) (status.Status, string) {
	p.doc.Find("div.component-inner-container").Each(func(_ int, sel *goquery.Selection) {
		attr, _ := sel.Attr("data-component-status")
		name := strings.TrimSpace(sel.Find("span.name").First().Text())
		if name == "" {
			return
		}
		st, ok := componentAttrStatus[attr]
		if !ok {
			st = status.Unknown
		}
		p.addComponent(name, st)
	})

	found := status.Unknown
	var summary string
	p.doc.Find("[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		if !statusIndicatorRe.MatchString(class) {
			return true
		}
		lower := strings.ToLower(class)
		switch {
		case strings.Contains(lower, "none") || strings.Contains(lower, "operational"):
			found, summary = status.Operational, "All Systems Operational"
		case strings.Contains(lower, "minor"):
			found, summary = status.Degraded, "Minor Service Issues"
		case strings.Contains(lower, "major") || strings.Contains(lower, "critical"):
			found, summary = status.Incident, "Service Disruption"
		}
		return found == status.Unknown
	})
	if found != status.Unknown {
		return found, summary
	}

	pageStatus := p.findByClass(pageStatusRe)
	if pageStatus != "" {
		if st := status.Normalize(pageStatus); st != status.Unknown {
			return st, pageStatus
		}
	}

	// Unresolved incident blocks.
	var unresolved string
	p.doc.Find("[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		if !incidentClassRe.MatchString(class) {
			return true
		}
		if resolvedTextRe.MatchString(sel.Text()) {
			return true
		}
		title := sel.Find("[class]").FilterFunction(func(_ int, t *goquery.Selection) bool {
			c, _ := t.Attr("class")
			return titleClassRe.MatchString(c)
		}).First()
		if title.Length() > 0 {
			unresolved = strings.TrimSpace(title.Text())
			return false
		}
		return true
	})
	if unresolved != "" {
		p.incidents = append(p.incidents, Incident{Title: unresolved})
		return status.Degraded, unresolved
	}

	return status.Unknown, ""
}

// extractGeneric is the last-resort extractor: headers and status-styled
// divs through the normalizer, then a readable-text keyword scan.
func extractGeneric(p *htmlPage) (status.Status, string) {
	var candidates []string
	p.doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			candidates = append(candidates, text)
		}
	})
	p.doc.Find("div[class]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		if !statusDivClassRe.MatchString(class) {
			return
		}
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text != "" && len(text) < 500 {
			candidates = append(candidates, text)
		}
	})

	for _, text := range candidates {
		if st := status.Normalize(text); st != status.Unknown {
			if len(text) > 200 {
				text = text[:200]
			}
			return st, text
		}
	}

	// Raw page-text fallback: readable body text only, so boilerplate in
	// navigation and scripts doesn't trip the keyword scan.
	text := p.readableText()
	lower := strings.ToLower(text)
	if strings.Contains(lower, "all systems operational") || strings.Contains(lower, "everything is operational") {
		return status.Operational, "All Systems Operational"
	}
	for _, kw := range []string{"experiencing issues", "service disruption", "outage"} {
		if strings.Contains(lower, kw) {
			return status.Degraded, "Service Issues Detected"
		}
	}

	return status.Unknown, "Unable to determine status"
}

func (p *htmlPage) readableText() string {
	pageURL, err := neturl.Parse(p.url)
	if err != nil {
		pageURL = &neturl.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(p.content), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return p.doc.Text()
	}
	return article.TextContent
}

func (p *htmlPage) addComponent(name string, st status.Status) {
	if name == "" {
		return
	}
	p.components = append(p.components, status.Component{Name: name, Status: st})
}

func (p *htmlPage) findByClass(re *regexp.Regexp) string {
	var out string
	p.doc.Find("[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		if re.MatchString(class) {
			out = strings.TrimSpace(sel.Text())
			return false
		}
		return true
	})
	return out
}
