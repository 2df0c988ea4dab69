package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lead_bot/internal/fetcher"
	"lead_bot/internal/model"
	"lead_bot/internal/scoring"
	"lead_bot/internal/storage"
)

const marinaText = "Apartment for sale in Marina, 1500000 AED, handover 2026"

var fixedNow = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

type mockFetcher struct {
	mu    sync.Mutex
	feeds map[string][]model.FeedItem
	errs  map[string]error
	calls []string
	// onFetch runs after a fetch is recorded; tests use it to cancel a cycle.
	onFetch func(url string)
}

func (m *mockFetcher) FetchItems(_ context.Context, url string, limit int) ([]model.FeedItem, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	items, err := m.feeds[url], m.errs[url]
	hook := m.onFetch
	m.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockFetcher) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type notification struct {
	Target model.DeliveryTarget
	LeadID int64
	ItemID string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (m *mockNotifier) NotifyLead(_ context.Context, target model.DeliveryTarget, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, notification{Target: target, LeadID: lead.ID, ItemID: lead.SourceItemID})
	return m.err
}

func (m *mockNotifier) getSent() []notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification(nil), m.sent...)
}

// countingStore records every write the monitor issues.
type countingStore struct {
	*storage.SQLite
	mu     sync.Mutex
	writes []string
}

func (c *countingStore) record(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, op)
}

func (c *countingStore) getWrites() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func (c *countingStore) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}

func (c *countingStore) SetWatermark(ctx context.Context, sourceID int64, lastSeen int64) error {
	c.record("SetWatermark")
	return c.SQLite.SetWatermark(ctx, sourceID, lastSeen)
}

func (c *countingStore) InsertLead(ctx context.Context, lead *model.Lead) (bool, error) {
	c.record("InsertLead")
	return c.SQLite.InsertLead(ctx, lead)
}

func (c *countingStore) RecordCycleCompletion(ctx context.Context, at time.Time) error {
	c.record("RecordCycleCompletion")
	return c.SQLite.RecordCycleCompletion(ctx, at)
}

type fixture struct {
	store    *countingStore
	fetcher  *mockFetcher
	notifier *mockNotifier
	monitor  *Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	err = db.EnsureDefaults(context.Background(), model.Settings{
		MonitoringEnabled:  true,
		PollInterval:       time.Minute,
		MinScore:           60,
		MaxResultsPerCycle: 10,
		LangFilter:         model.LangBoth,
		Target:             model.DeliveryTarget{Kind: model.TargetAdmin},
	})
	if err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}

	f := &fixture{
		store:    &countingStore{SQLite: db},
		fetcher:  &mockFetcher{feeds: map[string][]model.FeedItem{}, errs: map[string]error{}},
		notifier: &mockNotifier{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.monitor = New(f.store, f.fetcher, f.notifier, scoring.New(scoring.DefaultWeights()), log,
		WithClock(func() time.Time { return fixedNow }))
	return f
}

func (f *fixture) addSource(t *testing.T, url string, items ...model.FeedItem) model.Source {
	t.Helper()
	src := model.Source{URL: url, Title: url}
	if _, err := f.store.AddSource(context.Background(), &src); err != nil {
		t.Fatalf("add source: %v", err)
	}
	f.fetcher.feeds[url] = items
	return src
}

func (f *fixture) addKeyword(t *testing.T, phrase string) {
	t.Helper()
	if _, err := f.store.AddKeyword(context.Background(), phrase, model.LangBoth); err != nil {
		t.Fatalf("add keyword: %v", err)
	}
}

func (f *fixture) run(t *testing.T, force bool) int {
	t.Helper()
	n, err := f.monitor.RunCycle(context.Background(), force, "test")
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	return n
}

func (f *fixture) leadItemIDs(t *testing.T) []string {
	t.Helper()
	leads, err := f.store.ListLeadsForExport(context.Background(), 0)
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	var ids []string
	for i := len(leads) - 1; i >= 0; i-- {
		ids = append(ids, leads[i].SourceItemID)
	}
	return ids
}

// generic items match the keyword "lead" and pass a zero threshold.
func genericItems(prefix string, n int, firstTS int64) []model.FeedItem {
	items := make([]model.FeedItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.FeedItem{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			Text:        fmt.Sprintf("lead %s number %d", prefix, i),
			Link:        fmt.Sprintf("https://example.com/%s/%d", prefix, i),
			PublishedAt: firstTS + int64(i),
		})
	}
	return items
}

func (f *fixture) useGenericProfile(t *testing.T) {
	t.Helper()
	f.addKeyword(t, "lead")
	if err := f.store.SetMinScore(context.Background(), 0); err != nil {
		t.Fatalf("set min score: %v", err)
	}
}

func TestRunCycleDisabled(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	f.addSource(t, "https://a.example.com/rss", genericItems("a", 2, 100)...)
	if err := f.store.SetMonitoringEnabled(context.Background(), false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	if n := f.run(t, false); n != 0 {
		t.Errorf("expected 0 leads, got %d", n)
	}
	if calls := f.fetcher.getCalls(); len(calls) != 0 {
		t.Errorf("expected no fetches, got %v", calls)
	}
	if writes := f.store.getWrites(); len(writes) != 0 {
		t.Errorf("expected no writes, got %v", writes)
	}

	if diff := cmp.Diff(2, f.run(t, true)); diff != "" {
		t.Errorf("forced run mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleWithoutKeywordsOrSources(t *testing.T) {
	t.Run("no keywords", func(t *testing.T) {
		f := newFixture(t)
		f.addSource(t, "https://a.example.com/rss", genericItems("a", 2, 100)...)
		if n := f.run(t, true); n != 0 {
			t.Errorf("expected 0 leads, got %d", n)
		}
		if calls := f.fetcher.getCalls(); len(calls) != 0 {
			t.Errorf("expected no fetches, got %v", calls)
		}
	})
	t.Run("no sources", func(t *testing.T) {
		f := newFixture(t)
		f.useGenericProfile(t)
		if n := f.run(t, true); n != 0 {
			t.Errorf("expected 0 leads, got %d", n)
		}
	})
}

func TestRunCycleMarinaScenario(t *testing.T) {
	tests := []struct {
		name      string
		stopWord  string
		wantLeads int
	}{
		{name: "stored and delivered", wantLeads: 1},
		{name: "stop word drops it below threshold", stopWord: "apartment", wantLeads: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addKeyword(t, "marina")
			if tt.stopWord != "" {
				if _, err := f.store.AddNegativeKeyword(context.Background(), tt.stopWord); err != nil {
					t.Fatalf("add stop word: %v", err)
				}
			}
			src := f.addSource(t, "https://board.example.com/rss", model.FeedItem{
				ID: "post-1", Text: marinaText, Link: "https://board.example.com/posts/1", PublishedAt: 100,
			})

			if diff := cmp.Diff(tt.wantLeads, f.run(t, false)); diff != "" {
				t.Fatalf("delivered mismatch (-want +got):\n%s", diff)
			}
			if tt.wantLeads == 0 {
				if sent := f.notifier.getSent(); len(sent) != 0 {
					t.Errorf("expected no notifications, got %v", sent)
				}
				return
			}

			sent := f.notifier.getSent()
			if len(sent) != 1 {
				t.Fatalf("expected 1 notification, got %d", len(sent))
			}
			lead, err := f.store.GetLead(context.Background(), sent[0].LeadID)
			if err != nil {
				t.Fatalf("get lead: %v", err)
			}
			if lead.Score < 60 {
				t.Errorf("expected score >= 60, got %d", lead.Score)
			}
			if diff := cmp.Diff([]string{"marina"}, lead.MatchedKeywords); diff != "" {
				t.Errorf("matched mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(model.DeliveryTarget{Kind: model.TargetAdmin}, sent[0].Target); diff != "" {
				t.Errorf("target mismatch (-want +got):\n%s", diff)
			}
			if lead.SourceID != src.ID || lead.Status != model.StatusNew || lead.SourceLabel != src.Label() {
				t.Errorf("unexpected lead fields: %+v", lead)
			}
			if !lead.CreatedAt.Equal(fixedNow) {
				t.Errorf("expected created_at %v, got %v", fixedNow, lead.CreatedAt)
			}
		})
	}
}

func TestRunCycleQuotaAcrossSources(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	if err := f.store.SetMaxResults(context.Background(), 4); err != nil {
		t.Fatalf("set max results: %v", err)
	}
	f.addSource(t, "https://a.example.com/rss", genericItems("a", 3, 100)...)
	f.addSource(t, "https://b.example.com/rss", genericItems("b", 3, 100)...)
	f.addSource(t, "https://c.example.com/rss", genericItems("c", 3, 100)...)

	if diff := cmp.Diff(4, f.run(t, false)); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a-0", "a-1", "a-2", "b-0"}, f.leadItemIDs(t)); diff != "" {
		t.Errorf("leads mismatch (-want +got):\n%s", diff)
	}
	want := []string{"https://a.example.com/rss", "https://b.example.com/rss"}
	if diff := cmp.Diff(want, f.fetcher.getCalls()); diff != "" {
		t.Errorf("fetch calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(4, len(f.notifier.getSent())); diff != "" {
		t.Errorf("notification count mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleWatermark(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.useGenericProfile(t)
	src := f.addSource(t, "https://a.example.com/rss", genericItems("a", 2, 100)...)

	if diff := cmp.Diff(2, f.run(t, false)); diff != "" {
		t.Fatalf("first cycle mismatch (-want +got):\n%s", diff)
	}
	wm, ok, err := f.store.GetWatermark(ctx, src.ID)
	if err != nil || !ok {
		t.Fatalf("expected watermark, ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(int64(101), wm); diff != "" {
		t.Errorf("watermark mismatch (-want +got):\n%s", diff)
	}

	// Older unseen items are skipped without evaluation; newer ones pass.
	f.fetcher.feeds[src.URL] = []model.FeedItem{
		{ID: "old", Text: "lead that arrived late", PublishedAt: 50},
		{ID: "edge", Text: "lead at the watermark", PublishedAt: 101},
		{ID: "new", Text: "lead fresh one", PublishedAt: 300},
	}
	if diff := cmp.Diff(1, f.run(t, false)); diff != "" {
		t.Fatalf("second cycle mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a-0", "a-1", "new"}, f.leadItemIDs(t)); diff != "" {
		t.Errorf("leads mismatch (-want +got):\n%s", diff)
	}
	wm, _, err = f.store.GetWatermark(ctx, src.ID)
	if err != nil {
		t.Fatalf("get watermark: %v", err)
	}
	if diff := cmp.Diff(int64(300), wm); diff != "" {
		t.Errorf("watermark mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleIdleSecondCycleOnlyRecordsCompletion(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	f.addSource(t, "https://a.example.com/rss", genericItems("a", 3, 100)...)

	if diff := cmp.Diff(3, f.run(t, false)); diff != "" {
		t.Fatalf("first cycle mismatch (-want +got):\n%s", diff)
	}
	f.store.reset()

	if diff := cmp.Diff(0, f.run(t, false)); diff != "" {
		t.Errorf("second cycle mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"RecordCycleCompletion"}, f.store.getWrites()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}

	settings, err := f.store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.LastCheckAt == nil || !settings.LastCheckAt.Equal(fixedNow) {
		t.Errorf("expected last check %v, got %v", fixedNow, settings.LastCheckAt)
	}
}

func TestRunCycleFailingSourceDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	a := f.addSource(t, "https://a.example.com/rss")
	f.addSource(t, "https://b.example.com/rss", genericItems("b", 2, 100)...)

	for _, kind := range []error{fetcher.ErrTransient, fetcher.ErrMalformed} {
		f.fetcher.errs[a.URL] = &fetcher.FeedError{URL: a.URL, Kind: kind, Err: errors.New("boom")}
		f.run(t, false)
	}

	if diff := cmp.Diff([]string{"b-0", "b-1"}, f.leadItemIDs(t)); diff != "" {
		t.Errorf("leads mismatch (-want +got):\n%s", diff)
	}
	if _, ok, _ := f.store.GetWatermark(context.Background(), a.ID); ok {
		t.Error("expected no watermark for the failing source")
	}
}

func TestRunCycleDeduplicates(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	f.addSource(t, "https://a.example.com/rss",
		model.FeedItem{ID: "1", Text: "Lead in Marina", PublishedAt: 100},
		model.FeedItem{ID: "1", Text: "lead with reused id", PublishedAt: 101},
	)
	f.addSource(t, "https://b.example.com/rss",
		model.FeedItem{ID: "x", Text: "  LEAD   in marina ", PublishedAt: 100},
	)

	if diff := cmp.Diff(1, f.run(t, false)); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1"}, f.leadItemIDs(t)); diff != "" {
		t.Errorf("leads mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleDropsUnusableItems(t *testing.T) {
	f := newFixture(t)
	f.addKeyword(t, "lead")
	if err := f.store.SetMinScore(context.Background(), 20); err != nil {
		t.Fatalf("set min score: %v", err)
	}
	f.addSource(t, "https://a.example.com/rss",
		model.FeedItem{ID: "blank", Text: "   ", PublishedAt: 100},
		model.FeedItem{ID: "", Text: "lead in marina without id", PublishedAt: 101},
		model.FeedItem{ID: "weak", Text: "lead without signals", PublishedAt: 102},
		model.FeedItem{ID: "other", Text: "nothing relevant", PublishedAt: 103},
		model.FeedItem{ID: "good", Text: "lead in marina", PublishedAt: 104},
	)

	if diff := cmp.Diff(1, f.run(t, false)); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"good"}, f.leadItemIDs(t)); diff != "" {
		t.Errorf("leads mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleDeliveryFailureStillCounts(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	f.notifier.err = errors.New("telegram down")
	f.addSource(t, "https://a.example.com/rss", genericItems("a", 2, 100)...)

	if diff := cmp.Diff(2, f.run(t, false)); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a-0", "a-1"}, f.leadItemIDs(t)); diff != "" {
		t.Errorf("leads mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleChannelTarget(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	target := model.DeliveryTarget{Kind: model.TargetChannel, ChannelID: -100500}
	if err := f.store.SetDeliveryTarget(context.Background(), target); err != nil {
		t.Fatalf("set target: %v", err)
	}
	f.addSource(t, "https://a.example.com/rss", genericItems("a", 1, 100)...)

	f.run(t, false)
	sent := f.notifier.getSent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	if diff := cmp.Diff(target, sent[0].Target); diff != "" {
		t.Errorf("target mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleUndatedItemsBypassWatermark(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	src := f.addSource(t, "https://a.example.com/rss",
		model.FeedItem{ID: "dated", Text: "lead dated", PublishedAt: 500},
		model.FeedItem{ID: "undated", Text: "lead undated"},
	)

	if diff := cmp.Diff(2, f.run(t, false)); diff != "" {
		t.Fatalf("first cycle mismatch (-want +got):\n%s", diff)
	}
	f.store.reset()

	// The undated item is evaluated again but the uniqueness keys stop it.
	if diff := cmp.Diff(0, f.run(t, false)); diff != "" {
		t.Errorf("second cycle mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"RecordCycleCompletion"}, f.store.getWrites()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	wm, _, err := f.store.GetWatermark(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("get watermark: %v", err)
	}
	if diff := cmp.Diff(int64(500), wm); diff != "" {
		t.Errorf("watermark mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleCancelledKeepsWatermark(t *testing.T) {
	f := newFixture(t)
	f.useGenericProfile(t)
	src := f.addSource(t, "https://a.example.com/rss", genericItems("a", 3, 100)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fetcher.onFetch = func(string) { cancel() }

	n, err := f.monitor.RunCycle(ctx, false, "test")
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 leads, got %d", n)
	}
	if _, ok, _ := f.store.GetWatermark(context.Background(), src.ID); ok {
		t.Error("expected watermark to stay unset after cancellation")
	}
	if writes := f.store.getWrites(); len(writes) != 0 {
		t.Errorf("expected no writes, got %v", writes)
	}
}

func TestRunCycleProfileError(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Close()

	if _, err := f.monitor.RunCycle(context.Background(), true, "test"); err == nil {
		t.Fatal("expected error when the profile cannot be loaded")
	}
}
