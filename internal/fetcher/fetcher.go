// Package fetcher downloads syndication feeds and turns their entries into candidate items.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"lead_bot/internal/model"
)

const (
	maxBodySize   = 5 * 1024 * 1024
	idPrefixRunes = 128
	userAgent     = "LeadMonitorBot/1.0"
)

// Error kinds carried by FeedError. Match them with errors.Is.
var (
	ErrTransient = errors.New("transient fetch error")
	ErrMalformed = errors.New("malformed feed")
)

// FeedError reports why a source could not be turned into items.
type FeedError struct {
	URL  string
	Kind error
	Err  error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FeedError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithAttempts sets the total number of tries per fetch.
func WithAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithBackoff sets the base delay; the wait after the n-th failure is n*d.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.backoff = d
		}
	}
}

// WithTimeout bounds every single attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client   HTTPClient
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   client,
		timeout:  20 * time.Second,
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchItems returns up to limit items of the feed at url, in feed order.
// A limit of zero or less returns every entry.
func (f *Fetcher) FetchItems(ctx context.Context, url string, limit int) ([]model.FeedItem, error) {
	feed, err := f.fetchFeed(ctx, url)
	if err != nil {
		return nil, err
	}

	entries := feed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]model.FeedItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toFeedItem(entry))
	}
	return items, nil
}

// Resolve validates that url serves a feed and returns its title, falling back
// to the URL itself for untitled feeds.
func (f *Fetcher) Resolve(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("empty feed URL")
	}
	feed, err := f.fetchFeed(ctx, url)
	if err != nil {
		return "", err
	}
	if title := strings.TrimSpace(feed.Title); title != "" {
		return title, nil
	}
	return url, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return nil, &FeedError{URL: url, Kind: ErrTransient, Err: err}
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, &FeedError{URL: url, Kind: ErrMalformed, Err: err}
	}
	return feed, nil
}

// get downloads url, retrying failed attempts with a linearly growing delay.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, f.newBackoff(), func(ctx context.Context) error {
		b, err := f.getOnce(ctx, url)
		if err != nil {
			return retry.RetryableError(err)
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) newBackoff() retry.Backoff {
	attempt := 0
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * f.backoff, false
	})
	return retry.WithMaxRetries(uint64(f.attempts-1), linear)
}

func (f *Fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func toFeedItem(entry *gofeed.Item) model.FeedItem {
	summary := entry.Description
	if strings.TrimSpace(summary) == "" {
		summary = entry.Content
	}

	var parts []string
	for _, p := range []string{entry.Title, summary} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	text := strings.Join(parts, " ")

	return model.FeedItem{
		ID:          itemID(entry, text),
		Text:        text,
		Link:        entry.Link,
		PublishedAt: itemTimestamp(entry),
	}
}

// itemID prefers the feed's own identifier, then the link, then a text prefix.
func itemID(entry *gofeed.Item, text string) string {
	if id := strings.TrimSpace(entry.GUID); id != "" {
		return id
	}
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	return runePrefix(text, idPrefixRunes)
}

func itemTimestamp(entry *gofeed.Item) int64 {
	switch {
	case entry.PublishedParsed != nil:
		return entry.PublishedParsed.Unix()
	case entry.UpdatedParsed != nil:
		return entry.UpdatedParsed.Unix()
	default:
		return 0
	}
}

func runePrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
