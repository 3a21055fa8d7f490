package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httpretry"
)

// CCFetcher retrieves the To/CC address lists from a message page on the
// archive, used by the cclist filter condition when the series root's
// addresses are not cached yet.
type CCFetcher struct {
	client httpretry.HTTPDoer
}

// NewCCFetcher creates a CC fetcher. If client is nil a RetryClient over a
// default http.Client is used.
func NewCCFetcher(client httpretry.HTTPDoer) *CCFetcher {
	if client == nil {
		client = httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	}
	return &CCFetcher{client: client}
}

var toCCLineRe = regexp.MustCompile(`(?im)^\s*(?:To|Cc):\s*(.+)$`)

// FetchCCList fetches the message page at rootURL and returns the
// deduplicated To+CC addresses, in first-seen order.
func (f *CCFetcher) FetchCCList(ctx context.Context, rootURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rootURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build cc request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cc list from %s: %w", rootURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch cc list from %s: status %d", rootURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read cc page: %w", err)
	}

	return extractAddresses(string(body)), nil
}

// extractAddresses pulls every address from To:/Cc: header lines and
// deduplicates case-insensitively.
func extractAddresses(page string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range toCCLineRe.FindAllStringSubmatch(page, -1) {
		for _, part := range strings.Split(m[1], ",") {
			addr := ExtractEmail(part)
			if addr == "" {
				addr = strings.TrimSpace(part)
			}
			if addr == "" {
				continue
			}
			key := strings.ToLower(addr)
			if !seen[key] {
				seen[key] = true
				out = append(out, addr)
			}
		}
	}
	return out
}
