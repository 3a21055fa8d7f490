package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httpretry"
)

// ErrFeedUnavailable marks a feed that cannot be used this cycle: a 404, a
// non-404 client error, or a parse failure that produced zero entries. The
// caller skips the subsystem and moves on.
var ErrFeedUnavailable = errors.New("feed unavailable")

// Fetcher retrieves and parses one Atom feed with bounded retries.
type Fetcher struct {
	client      httpretry.HTTPDoer
	parser      *gofeed.Parser
	maxAttempts int
	baseDelay   time.Duration
}

// NewFetcher creates a feed fetcher. If client is nil a default http.Client
// with a 30s timeout is used. Transport-level failures are retried up to 3
// times with 1s/2s backoff; HTTP status handling is not retried here since
// lore.kernel.org's error statuses are not transient.
func NewFetcher(client httpretry.HTTPDoer) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		client:      client,
		parser:      gofeed.NewParser(),
		maxAttempts: 3,
		baseDelay:   1 * time.Second,
	}
}

// Fetch downloads and parses the feed at feedURL. The returned slice may be
// empty. Policy: 404 and other 4xx are terminal for this cycle; other
// non-200 statuses are logged and the body is parsed anyway; a parse failure
// is terminal because it yields zero entries.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	start := time.Now()
	log.Printf("[Fetcher] Fetching feed from %s", feedURL)

	resp, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		log.Printf("[Fetcher] Feed not found (404) for %s. Possibly invalid subsystem or URL.", feedURL)
		return nil, fmt.Errorf("%w: %s returned 404", ErrFeedUnavailable, feedURL)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		io.Copy(io.Discard, resp.Body)
		log.Printf("[Fetcher] HTTP error %d when fetching %s", resp.StatusCode, feedURL)
		return nil, fmt.Errorf("%w: %s returned %d", ErrFeedUnavailable, feedURL, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		log.Printf("[Fetcher] Unexpected HTTP status %d for %s, continue parsing", resp.StatusCode, feedURL)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		log.Printf("[Fetcher] Feed parsing failed for %s: %v. No entries.", feedURL, err)
		return nil, fmt.Errorf("%w: parse %s: %v", ErrFeedUnavailable, feedURL, err)
	}

	log.Printf("[Fetcher] Fetched %d entries from %s in %d ms",
		len(parsed.Items), feedURL, time.Since(start).Milliseconds())
	return parsed, nil
}

// get performs the HTTP request with up to maxAttempts tries and exponential
// backoff (1s, 2s) on transport errors.
func (f *Fetcher) get(ctx context.Context, feedURL string) (*http.Response, error) {
	delay := f.baseDelay
	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build feed request: %w", err)
		}

		resp, err := f.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		log.Printf("[Fetcher] Attempt %d/%d failed to fetch feed: %v", attempt, f.maxAttempts, err)

		if attempt == f.maxAttempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		delay *= 2
	}

	return nil, fmt.Errorf("fetch feed %s after %d attempts: %w", feedURL, f.maxAttempts, lastErr)
}
