// Package parser turns raw vendor status payloads (JSON, RSS/Atom, HTML)
// into canonical readings. Parsers are pure functions of their input; failure
// always degrades to an unknown-status result, never a fault.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/statuswatch/statuswatch/internal/status"
)

// Kind selects a format parser.
type Kind string

const (
	KindAuto Kind = "auto"
	KindJSON Kind = "json"
	KindRSS  Kind = "rss"
	KindHTML Kind = "html"
)

// ParseKind validates a configured parser name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAuto, "":
		return KindAuto, nil
	case KindJSON:
		return KindJSON, nil
	case KindRSS:
		return KindRSS, nil
	case KindHTML:
		return KindHTML, nil
	}
	return "", fmt.Errorf("no such parser: %q", s)
}

// Incident is a structured entry extracted from a feed or page, later fed to
// advisory analysis.
type Incident struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	Link        string     `json:"link,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Result is the canonical outcome of parsing one payload.
type Result struct {
	Status        status.Status
	Summary       string
	SourceType    string // "json", "rss", "html" or "error"
	RawData       map[string]any
	LastChangedAt *time.Time
	Components    []status.Component
	Incidents     []Incident
	ErrorMessage  string
}

// ParseError marks recoverable malformed-content failures. The dispatcher
// converts it (and any other parse failure) into an unknown reading.
type ParseError struct {
	SourceType string
	Msg        string
	Err        error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s parse: %s: %v", e.SourceType, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s parse: %s", e.SourceType, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// parseFunc consumes one payload shape.
type parseFunc func(content, url string, now time.Time) (*Result, error)

// entry binds one Kind to its probe and parse functions. Dispatch is a closed
// table: add a new format by extending Kind and this table.
type entry struct {
	kind     Kind
	source   string
	canParse func(contentType, content string) bool
	parse    parseFunc
}

// table order is the auto-probe order: JSON first (cheapest, strictest
// probe), then RSS, then HTML.
var table = []entry{
	{KindJSON, "json", canParseJSON, parseJSON},
	{KindRSS, "rss", canParseRSS, parseRSS},
	{KindHTML, "html", canParseHTML, parseHTML},
}

// Dispatcher selects and runs the right format parser. Zero value is not
// usable; construct with New.
type Dispatcher struct {
	now func() time.Time
}

// New creates a Dispatcher using wall-clock time.
func New() *Dispatcher {
	return &Dispatcher{now: time.Now}
}

// NewAt creates a Dispatcher with a fixed clock, for tests.
func NewAt(now func() time.Time) *Dispatcher {
	return &Dispatcher{now: now}
}

// Parse parses raw content already fetched by the transport. An unrecognized
// explicit kind is a configuration error and fails fast; every other failure
// degrades to an unknown-status Result carrying the error text.
func (d *Dispatcher) Parse(content, contentType, url string, kind Kind) (*Result, error) {
	var chosen *entry
	if kind == KindAuto || kind == "" {
		for i := range table {
			if table[i].canParse(contentType, content) {
				chosen = &table[i]
				break
			}
		}
		if chosen == nil {
			return errorResult(fmt.Sprintf("no parser recognizes content from %s (content-type %q)", url, contentType)), nil
		}
	} else {
		for i := range table {
			if table[i].kind == kind {
				chosen = &table[i]
				break
			}
		}
		if chosen == nil {
			return nil, fmt.Errorf("no such parser: %q", kind)
		}
	}

	result, err := chosen.parse(content, url, d.now())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	result.SourceType = chosen.source
	return result, nil
}

func errorResult(msg string) *Result {
	return &Result{
		Status:       status.Unknown,
		Summary:      "Error: " + msg,
		SourceType:   "error",
		RawData:      map[string]any{},
		ErrorMessage: msg,
	}
}
