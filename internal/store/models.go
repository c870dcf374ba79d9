package store

import (
	"time"

	"github.com/statuswatch/statuswatch/internal/status"
)

// Site is a monitored status source. Sites are declared in config and
// mirrored into the database so readings and advisories can join on them.
type Site struct {
	ID                   string
	DisplayName          string
	StatusPage           string
	FeedURL              string
	Parser               string
	PollFrequencySeconds int
	IsActive             bool
	LastNotifiedAt       *time.Time
	LastNotifiedStatus   *string
	CreatedAt            *time.Time
	UpdatedAt            *time.Time
}

// Reading is one immutable status snapshot. The sequence per site forms an
// append-only timeline ordered by CreatedAt.
type Reading struct {
	ID            int64
	SiteID        string
	Status        status.Status
	Summary       string
	SourceType    string
	RawSnapshot   map[string]any
	LastChangedAt *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time
}

// Advisory is a derived record of one vendor incident or notice, deduplicated
// per site by title.
type Advisory struct {
	ID              int64
	SiteID          string
	Title           string
	Description     string
	Severity        string
	Criticality     string
	AffectsUs       bool
	AffectedModules []string
	RelevanceReason string
	SourceURL       string
	PublishedAt     *time.Time
	CreatedAt       time.Time
}

// SiteState is the dashboard view of a site's latest reading.
type SiteState struct {
	Site          Site
	Status        status.Status
	Summary       string
	SourceType    string
	LastCheckedAt *time.Time
	LastChangedAt *time.Time
	ErrorMessage  *string
}

// QueryResult holds the outcome of a read-only SQL execution.
type QueryResult struct {
	Columns  []string
	Rows     [][]any
	RowCount int
}

// Stats contains aggregate database statistics.
type Stats struct {
	Sites         int
	ActiveSites   int
	Readings      int
	Advisories    int
	AffectingUs   int
	ErrorReadings int
}
