// Package feishu delivers patch cards and cycle summaries through a Feishu
// custom-bot webhook. Feishu has no thread concept, so the thread contract
// is implemented as best-effort notifications: thread ids stay empty and the
// boolean operations succeed without doing anything.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httpretry"
)

// Client posts interactive cards to one webhook URL.
type Client struct {
	http       httpretry.HTTPDoer
	webhookURL string
}

// NewClient creates a Feishu webhook client. doer falls back to a retrying
// client with a 30 s timeout.
func NewClient(webhookURL string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	}
	return &Client{http: doer, webhookURL: webhookURL}
}

// Name identifies the platform in logs.
func (c *Client) Name() string { return "feishu" }

// SendPatchCard posts the card. Feishu webhooks do not return message ids,
// so both ids are empty on success.
func (c *Client) SendPatchCard(ctx context.Context, card *domain.PatchCard) (string, string, error) {
	if err := c.post(ctx, renderCard(card)); err != nil {
		return "", "", fmt.Errorf("send patch card: %w", err)
	}
	return "", "", nil
}

// SendSubsystemUpdate posts one cycle-summary card for a subsystem.
func (c *Client) SendSubsystemUpdate(ctx context.Context, result domain.SubsystemResult, maxEntries int) error {
	if err := c.post(ctx, renderSubsystemUpdate(result, maxEntries)); err != nil {
		return fmt.Errorf("send subsystem update: %w", err)
	}
	return nil
}

// CreateThread has no Feishu equivalent; a notification card is posted
// instead and no thread id is claimed.
func (c *Client) CreateThread(ctx context.Context, name, anchorMessageID string) (string, bool, error) {
	if err := c.post(ctx, renderNotice("Watching patch", name)); err != nil {
		return "", false, fmt.Errorf("send watch notice: %w", err)
	}
	return "", false, nil
}

// ThreadExists always reports true; there is nothing to check.
func (c *Client) ThreadExists(ctx context.Context, threadID string) (bool, error) { return true, nil }

// DeleteThread is a no-op.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error { return nil }

// SendThreadOverview posts a single summary card and returns an empty
// mapping since there are no per-patch messages to edit later.
func (c *Client) SendThreadOverview(ctx context.Context, threadID string, data *domain.ThreadOverviewData) (map[int]string, error) {
	if data.Card != nil {
		if err := c.post(ctx, renderOverviewSummary(data)); err != nil {
			return nil, fmt.Errorf("send thread overview: %w", err)
		}
	}
	return map[int]string{}, nil
}

// UpdateThreadOverview cannot edit past webhook messages; it succeeds
// without doing anything.
func (c *Client) UpdateThreadOverview(ctx context.Context, threadID, messageID string, sub domain.SubPatchOverview) (bool, error) {
	return true, nil
}

// SendThreadUpdateNotification posts a short update card.
func (c *Client) SendThreadUpdateNotification(ctx context.Context, channelID, threadID, patchCardMessageID string) error {
	if err := c.post(ctx, renderNotice("Thread updated", "New replies arrived on a watched patch.")); err != nil {
		return fmt.Errorf("send thread update notification: %w", err)
	}
	return nil
}

type webhookResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *Client) post(ctx context.Context, card map[string]any) error {
	payload := map[string]any{"msg_type": "interactive", "card": card}
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, raw)
	}

	var wr webhookResponse
	if err := json.Unmarshal(raw, &wr); err == nil && wr.Code != 0 {
		return fmt.Errorf("webhook error %d: %s", wr.Code, wr.Msg)
	}
	return nil
}
