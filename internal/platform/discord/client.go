// Package discord is the Discord REST client: patch cards and cycle
// summaries as channel embeds, discussion threads anchored on the card
// message, and per-sub-patch overview messages inside the thread.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httpretry"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"

	// Discord error code for "a thread was already created from this
	// message".
	codeThreadAlreadyCreated = 160004

	threadAutoArchiveMinutes = 1440
)

// Client talks to the Discord REST API for one bot in one channel.
type Client struct {
	http      httpretry.HTTPDoer
	token     string
	channelID string
	baseURL   string
}

// NewClient creates a Discord client. baseURL falls back to the public API;
// doer falls back to a retrying client with a 30 s timeout.
func NewClient(token, channelID, baseURL string, doer httpretry.HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	}
	return &Client{http: doer, token: token, channelID: channelID, baseURL: baseURL}
}

// Name identifies the platform in logs.
func (c *Client) Name() string { return "discord" }

type message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

type channel struct {
	ID string `json:"id"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendPatchCard posts the card embed to the configured channel.
func (c *Client) SendPatchCard(ctx context.Context, card *domain.PatchCard) (string, string, error) {
	body := map[string]any{"embeds": []embed{renderCardEmbed(card)}}
	var msg message
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", c.channelID), body, &msg); err != nil {
		return "", "", fmt.Errorf("send patch card: %w", err)
	}
	return msg.ID, msg.ChannelID, nil
}

// SendSubsystemUpdate posts one cycle-summary embed for a subsystem.
func (c *Client) SendSubsystemUpdate(ctx context.Context, result domain.SubsystemResult, maxEntries int) error {
	body := map[string]any{"embeds": []embed{renderSubsystemUpdate(result, maxEntries)}}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", c.channelID), body, nil); err != nil {
		return fmt.Errorf("send subsystem update: %w", err)
	}
	return nil
}

// CreateThread starts a public thread from the card's channel message. The
// returned thread id equals the anchor message id. alreadyExists is set
// when Discord reports a thread was already created from that message.
func (c *Client) CreateThread(ctx context.Context, name, anchorMessageID string) (string, bool, error) {
	body := map[string]any{
		"name":                  name,
		"auto_archive_duration": threadAutoArchiveMinutes,
	}
	var ch channel
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages/%s/threads", c.channelID, anchorMessageID), body, &ch)
	if err != nil {
		var apiErr *statusError
		if asStatusError(err, &apiErr) && apiErr.code == codeThreadAlreadyCreated {
			return anchorMessageID, true, nil
		}
		return "", false, fmt.Errorf("create thread: %w", err)
	}
	return ch.ID, false, nil
}

// ThreadExists checks whether the thread channel is still reachable.
func (c *Client) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channels/%s", threadID), nil, nil)
	if err != nil {
		var apiErr *statusError
		if asStatusError(err, &apiErr) && apiErr.status == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("check thread: %w", err)
	}
	return true, nil
}

// DeleteThread removes the thread channel.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/channels/%s", threadID), nil, nil); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// SendThreadOverview posts one message per sub-patch into the thread and
// returns the patch_index to message id mapping.
func (c *Client) SendThreadOverview(ctx context.Context, threadID string, data *domain.ThreadOverviewData) (map[int]string, error) {
	out := make(map[int]string, len(data.SubPatchOverviews))
	for _, sub := range data.SubPatchOverviews {
		body := map[string]any{"content": renderSubPatchOverview(sub)}
		var msg message
		if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", threadID), body, &msg); err != nil {
			return out, fmt.Errorf("send overview for patch %d: %w", sub.Patch.PatchIndex, err)
		}
		out[sub.Patch.PatchIndex] = msg.ID
	}
	return out, nil
}

// UpdateThreadOverview edits one sub-patch overview message in place.
func (c *Client) UpdateThreadOverview(ctx context.Context, threadID, messageID string, sub domain.SubPatchOverview) (bool, error) {
	body := map[string]any{"content": renderSubPatchOverview(sub)}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s/messages/%s", threadID, messageID), body, nil); err != nil {
		return false, fmt.Errorf("update overview message: %w", err)
	}
	return true, nil
}

// SendThreadUpdateNotification posts a short notice in the card's channel
// pointing back at the thread.
func (c *Client) SendThreadUpdateNotification(ctx context.Context, channelID, threadID, patchCardMessageID string) error {
	if channelID == "" {
		channelID = c.channelID
	}
	body := map[string]any{"embeds": []embed{renderThreadUpdateNotice(threadID, patchCardMessageID)}}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), body, nil); err != nil {
		return fmt.Errorf("send thread update notification: %w", err)
	}
	return nil
}

// statusError carries the HTTP status and Discord error code of a failed
// call.
type statusError struct {
	status int
	code   int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("discord api status %d (code %d): %s", e.status, e.code, e.msg)
}

func asStatusError(err error, target **statusError) bool {
	return errors.As(err, target)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		return &statusError{status: resp.StatusCode, code: apiErr.Code, msg: apiErr.Message}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
