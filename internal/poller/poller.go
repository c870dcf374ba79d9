// Package poller schedules and executes status polls for every configured
// site.
package poller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/statuswatch/statuswatch/internal/advisory"
	"github.com/statuswatch/statuswatch/internal/config"
	"github.com/statuswatch/statuswatch/internal/fetch"
	"github.com/statuswatch/statuswatch/internal/notify"
	"github.com/statuswatch/statuswatch/internal/parser"
	"github.com/statuswatch/statuswatch/internal/status"
	"github.com/statuswatch/statuswatch/internal/store"
)

// Mailer is the outbound notification capability. The concrete SMTP mailer
// satisfies it; tests substitute a recorder.
type Mailer interface {
	Send(subject, textBody, htmlBody string) error
}

// Poller owns the polling lifecycle. Each site gets one goroutine, so polls
// of the same site never overlap; the reading timeline per site has a single
// writer.
type Poller struct {
	cfg        *config.Config
	store      *store.Store
	fetcher    *fetch.Fetcher
	dispatcher *parser.Dispatcher
	analyzer   *advisory.Analyzer
	mailer     Mailer

	now func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New wires a poller from its collaborators. mailer may be nil when
// notifications are not configured.
func New(cfg *config.Config, st *store.Store, fetcher *fetch.Fetcher, dispatcher *parser.Dispatcher, analyzer *advisory.Analyzer, mailer Mailer) *Poller {
	return &Poller{
		cfg:        cfg,
		store:      st,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		analyzer:   analyzer,
		mailer:     mailer,
		now:        time.Now,
	}
}

// SyncSites mirrors the configured sites and their module allow-lists into
// the database. Called on startup and before one-shot polls.
func (p *Poller) SyncSites() error {
	ids := make([]string, 0, len(p.cfg.Sites))
	for _, site := range p.cfg.Sites {
		ids = append(ids, site.ID)
		if err := p.store.SyncSite(store.Site{
			ID:                   site.ID,
			DisplayName:          site.Name,
			StatusPage:           site.URL,
			FeedURL:              site.FeedURL,
			Parser:               site.Parser,
			PollFrequencySeconds: site.PollFrequencySeconds,
		}); err != nil {
			return err
		}
		if err := p.store.ReplaceSiteModules(site.ID, site.Modules); err != nil {
			return err
		}
	}
	return p.store.DeactivateSitesExcept(ids)
}

// Start syncs sites and launches one polling goroutine per site. It returns
// once all goroutines are running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("poller already started")
	}

	if err := p.SyncSites(); err != nil {
		return fmt.Errorf("syncing sites: %w", err)
	}

	p.stop = make(chan struct{})
	p.started = true
	for _, site := range p.cfg.Sites {
		p.wg.Add(1)
		go p.run(ctx, site)
	}
	log.Printf("poller: watching %d sites", len(p.cfg.Sites))
	return nil
}

// Stop halts all polling goroutines and waits for in-flight polls.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	close(p.stop)
	p.started = false
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, site config.Site) {
	defer p.wg.Done()

	interval := time.Duration(site.PollFrequencySeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Immediate first poll so a fresh start is not blind for a full interval.
	p.pollOnce(ctx, site)
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, site)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, site config.Site) {
	if err := p.PollSite(ctx, site); err != nil {
		log.Printf("poller: %s: %v", site.ID, err)
	}
}

// PollAll polls every configured site once, sequentially. Used by the
// one-shot poll command.
func (p *Poller) PollAll(ctx context.Context) error {
	if err := p.SyncSites(); err != nil {
		return fmt.Errorf("syncing sites: %w", err)
	}
	for _, site := range p.cfg.Sites {
		if err := p.PollSite(ctx, site); err != nil {
			log.Printf("poller: %s: %v", site.ID, err)
		}
	}
	return nil
}

// PollSite runs one full poll cycle for a site: fetch, parse, filter,
// persist, extract advisories, decide notification.
func (p *Poller) PollSite(ctx context.Context, site config.Site) error {
	result := p.fetchAndParse(ctx, site)

	if modules := site.Modules; len(modules) > 0 {
		parser.ApplyModuleFilter(result, modules)
	}

	prev, err := p.store.LatestReading(site.ID)
	if err != nil {
		return err
	}

	now := p.now()
	p.carryForwardChangeTime(result, prev, now)

	reading := &store.Reading{
		SiteID:        site.ID,
		Status:        result.Status,
		Summary:       result.Summary,
		SourceType:    result.SourceType,
		RawSnapshot:   result.RawData,
		LastChangedAt: result.LastChangedAt,
	}
	if result.ErrorMessage != "" {
		reading.ErrorMessage = &result.ErrorMessage
	}
	if _, err := p.store.InsertReading(reading); err != nil {
		return err
	}

	p.processAdvisories(ctx, site, result)
	p.maybeNotify(site, prev, result, now)
	return nil
}

// fetchAndParse never fails; transport and parse errors degrade to an
// unknown reading carrying the error text so they stay visible in the
// timeline.
func (p *Poller) fetchAndParse(ctx context.Context, site config.Site) *parser.Result {
	kind, err := parser.ParseKind(site.Parser)
	if err != nil {
		msg := err.Error()
		return &parser.Result{
			Status:       status.Unknown,
			Summary:      "Error: " + msg,
			SourceType:   "error",
			ErrorMessage: msg,
		}
	}

	url := site.URL
	if site.FeedURL != "" {
		url = site.FeedURL
		if kind == parser.KindAuto {
			kind = parser.KindRSS
		}
	}

	resp, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		msg := err.Error()
		return &parser.Result{
			Status:       status.Unknown,
			Summary:      "Error: " + msg,
			SourceType:   "error",
			ErrorMessage: msg,
		}
	}

	result, err := p.dispatcher.Parse(resp.Body, resp.ContentType, url, kind)
	if err != nil {
		// Only a misconfigured parser kind reaches here.
		msg := err.Error()
		return &parser.Result{
			Status:       status.Unknown,
			Summary:      "Error: " + msg,
			SourceType:   "error",
			ErrorMessage: msg,
		}
	}
	return result
}

// carryForwardChangeTime keeps last_changed_at stable while the status is
// unchanged, and stamps transitions that arrive without a source timestamp.
func (p *Poller) carryForwardChangeTime(result *parser.Result, prev *store.Reading, now time.Time) {
	if result.LastChangedAt != nil {
		return
	}
	if prev != nil && prev.Status == result.Status {
		result.LastChangedAt = prev.LastChangedAt
		return
	}
	result.LastChangedAt = &now
}

func (p *Poller) processAdvisories(ctx context.Context, site config.Site, result *parser.Result) {
	drafts := advisory.Extract(result)
	if len(drafts) == 0 {
		return
	}

	timeout := time.Duration(p.cfg.LLM.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	for _, draft := range drafts {
		known, err := p.store.HasAdvisory(site.ID, draft.Title)
		if err != nil {
			log.Printf("poller: %s: checking advisory: %v", site.ID, err)
			continue
		}
		if known {
			continue
		}

		analyzeCtx, cancel := context.WithTimeout(ctx, timeout)
		analysis := p.analyzer.Analyze(analyzeCtx, site.Name, draft, site.Modules)
		cancel()
		_, err = p.store.InsertAdvisory(&store.Advisory{
			SiteID:          site.ID,
			Title:           draft.Title,
			Description:     draft.Description,
			Severity:        draft.Severity,
			Criticality:     analysis.Criticality,
			AffectsUs:       analysis.AffectsUs,
			AffectedModules: analysis.AffectedModules,
			RelevanceReason: analysis.Reason,
			SourceURL:       draft.Link,
			PublishedAt:     draft.PublishedAt,
		})
		if err != nil {
			log.Printf("poller: %s: storing advisory: %v", site.ID, err)
			continue
		}
		log.Printf("poller: %s: new advisory %q (criticality=%s affects_us=%v)",
			site.ID, draft.Title, analysis.Criticality, analysis.AffectsUs)
	}
}

func (p *Poller) maybeNotify(site config.Site, prev *store.Reading, result *parser.Result, now time.Time) {
	prevStatus := status.Unknown
	if prev != nil {
		prevStatus = prev.Status
	}

	siteRow, err := p.store.GetSite(site.ID)
	if err != nil || siteRow == nil {
		log.Printf("poller: %s: loading notification state: %v", site.ID, err)
		return
	}

	decision := notify.ShouldNotify(prevStatus, result.Status, notify.State{
		LastNotifiedAt:     siteRow.LastNotifiedAt,
		LastNotifiedStatus: siteRow.LastNotifiedStatus,
	}, p.cfg.Cooldown(), now)
	if !decision.Notify {
		return
	}
	if p.mailer == nil {
		log.Printf("poller: %s: would notify (%s) but no mailer configured", site.ID, decision.Reason)
		return
	}

	email := notify.BuildEmail(decision, site.Name, prevStatus, result.Status, result.Summary, site.URL)
	if err := p.mailer.Send(email.Subject, email.TextBody, email.HTMLBody); err != nil {
		log.Printf("poller: %s: sending notification: %v", site.ID, err)
		return
	}
	if err := p.store.RecordNotified(site.ID, result.Status, now); err != nil {
		log.Printf("poller: %s: recording notification: %v", site.ID, err)
	}
	log.Printf("poller: %s: notified (%s)", site.ID, decision.Reason)
}

// Prune applies the retention policy. Called periodically by the watch
// command.
func (p *Poller) Prune() {
	if n, err := p.store.PruneReadings(p.cfg.Retention.ReadingDays); err != nil {
		log.Printf("poller: pruning readings: %v", err)
	} else if n > 0 {
		log.Printf("poller: pruned %d readings", n)
	}
	if n, err := p.store.PruneAdvisories(p.cfg.Retention.AdvisoryDays); err != nil {
		log.Printf("poller: pruning advisories: %v", err)
	} else if n > 0 {
		log.Printf("poller: pruned %d advisories", n)
	}
}
