// Package monitor runs monitoring cycles: it pulls new feed items, scores them
// against the interest profile and turns the relevant ones into delivered leads.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lead_bot/internal/contacts"
	"lead_bot/internal/dedupe"
	"lead_bot/internal/fetcher"
	"lead_bot/internal/model"
	"lead_bot/internal/scoring"
)

// DefaultBatchSize is the number of entries read from each feed per cycle.
const DefaultBatchSize = 50

// Store is the persistence a cycle needs.
type Store interface {
	IsMonitoringEnabled(ctx context.Context) (bool, error)
	LoadProfile(ctx context.Context) (*model.InterestProfile, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	GetWatermark(ctx context.Context, sourceID int64) (int64, bool, error)
	SetWatermark(ctx context.Context, sourceID int64, lastSeen int64) error
	LeadExists(ctx context.Context, sourceID int64, itemID, fingerprint string) (bool, error)
	InsertLead(ctx context.Context, lead *model.Lead) (bool, error)
	RecordCycleCompletion(ctx context.Context, at time.Time) error
}

// FeedFetcher returns the newest entries of a feed.
type FeedFetcher interface {
	FetchItems(ctx context.Context, url string, limit int) ([]model.FeedItem, error)
}

// Notifier delivers a stored lead to its recipient.
type Notifier interface {
	NotifyLead(ctx context.Context, target model.DeliveryTarget, lead *model.Lead) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithClock overrides the time source used for lead and cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor ties fetching, scoring, deduplication and delivery together.
type Monitor struct {
	store     Store
	fetcher   FeedFetcher
	notifier  Notifier
	scorer    *scoring.Scorer
	log       *slog.Logger
	batchSize int
	now       func() time.Time
}

// New creates a Monitor.
func New(store Store, f FeedFetcher, n Notifier, scorer *scoring.Scorer, log *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		store:     store,
		fetcher:   f,
		notifier:  n,
		scorer:    scorer,
		log:       log,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunCycle performs one pass over all sources and returns the number of leads
// delivered. Unless force is set, nothing happens while monitoring is disabled.
// Only failing to read the profile or the source list is reported as an error;
// per-source and per-item problems are logged and skipped.
func (m *Monitor) RunCycle(ctx context.Context, force bool, reason string) (int, error) {
	if !force {
		enabled, err := m.store.IsMonitoringEnabled(ctx)
		if err != nil {
			return 0, fmt.Errorf("read monitoring flag: %w", err)
		}
		if !enabled {
			m.log.Debug("monitoring disabled, cycle skipped", "reason", reason)
			return 0, nil
		}
	}

	profile, err := m.store.LoadProfile(ctx)
	if err != nil {
		return 0, fmt.Errorf("load profile: %w", err)
	}
	if len(profile.Keywords) == 0 {
		m.log.Debug("no keywords configured, cycle skipped", "reason", reason)
		return 0, nil
	}

	sources, err := m.store.ListSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		m.log.Debug("no sources configured, cycle skipped", "reason", reason)
		return 0, nil
	}

	quota := max(1, profile.MaxResultsPerCycle)
	delivered := 0
	for _, src := range sources {
		if delivered >= quota || ctx.Err() != nil {
			break
		}
		delivered += m.processSource(ctx, src, profile, quota-delivered)
	}

	if ctx.Err() != nil {
		m.log.Info("monitoring cycle interrupted", "reason", reason, "leads_sent", delivered)
		return delivered, nil
	}

	if err := m.store.RecordCycleCompletion(ctx, m.now()); err != nil {
		m.log.Error("record cycle completion", "error", err)
	}
	m.log.Info("monitoring cycle done", "reason", reason, "leads_sent", delivered)
	return delivered, nil
}

// processSource evaluates the unseen items of one source and returns how many
// leads it delivered, never more than remaining.
func (m *Monitor) processSource(ctx context.Context, src model.Source, profile *model.InterestProfile, remaining int) int {
	log := m.log.With("source_id", src.ID, "url", src.URL)

	watermark, _, err := m.store.GetWatermark(ctx, src.ID)
	if err != nil {
		log.Error("read watermark", "error", err)
		return 0
	}

	items, err := m.fetcher.FetchItems(ctx, src.URL, m.batchSize)
	if err != nil {
		log.Warn("fetch feed", "kind", errorKind(err), "error", err)
		return 0
	}

	newest := watermark
	sent := 0
	for _, item := range items {
		if sent >= remaining {
			break
		}
		if ctx.Err() != nil {
			return sent
		}
		if item.PublishedAt > 0 && item.PublishedAt <= watermark {
			continue
		}
		newest = max(newest, item.PublishedAt)
		if m.evaluate(ctx, log, src, item, profile) {
			sent++
		}
	}

	if newest > watermark {
		if err := m.store.SetWatermark(ctx, src.ID, newest); err != nil {
			log.Error("update watermark", "error", err)
		}
	}
	if sent > 0 {
		log.Info("leads delivered", "count", sent)
	}
	return sent
}

// evaluate runs one item through scoring and deduplication and, when it
// becomes a new lead, stores and delivers it. It reports whether a lead was
// stored. A failed delivery still counts.
func (m *Monitor) evaluate(ctx context.Context, log *slog.Logger, src model.Source, item model.FeedItem, profile *model.InterestProfile) bool {
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return false
	}

	score, matched := m.scorer.Score(text, profile.Keywords, profile.NegativeKeywords, profile.LangFilter)
	if len(matched) == 0 || score < profile.MinScore {
		return false
	}

	itemID := strings.TrimSpace(item.ID)
	if itemID == "" {
		return false
	}

	fp := dedupe.Fingerprint(text)
	exists, err := m.store.LeadExists(ctx, src.ID, itemID, fp)
	if err != nil {
		log.Error("check lead", "item_id", itemID, "error", err)
		return false
	}
	if exists {
		log.Debug("duplicate item", "item_id", itemID)
		return false
	}

	lead := &model.Lead{
		CreatedAt:       m.now(),
		SourceID:        src.ID,
		SourceItemID:    itemID,
		Text:            text,
		Fingerprint:     fp,
		Link:            item.Link,
		Score:           score,
		MatchedKeywords: matched,
		Contacts:        contacts.Extract(text),
		Status:          model.StatusNew,
		SourceLabel:     src.Label(),
	}
	inserted, err := m.store.InsertLead(ctx, lead)
	if err != nil {
		log.Error("store lead", "item_id", itemID, "error", err)
		return false
	}
	if !inserted {
		return false
	}

	if err := m.notifier.NotifyLead(ctx, profile.Target, lead); err != nil {
		log.Error("deliver lead", "lead_id", lead.ID, "error", err)
	}
	return true
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, fetcher.ErrMalformed):
		return "malformed"
	case errors.Is(err, fetcher.ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}
