package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client())
}

func TestSendPatchCard(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "success"})
	})

	msgID, chanID, err := c.SendPatchCard(context.Background(), &domain.PatchCard{
		Subject: "[PATCH] rust: fix alloc",
		Author:  "Alice",
	})
	require.NoError(t, err)
	assert.Empty(t, msgID)
	assert.Empty(t, chanID)
	assert.Equal(t, "interactive", got["msg_type"])
}

func TestWebhookErrorCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 19001, "msg": "param invalid"})
	})

	_, _, err := c.SendPatchCard(context.Background(), &domain.PatchCard{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "19001")
}

func TestThreadContractIsBestEffort(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"code": 0})
	})
	ctx := context.Background()

	id, already, err := c.CreateThread(ctx, "watching", "anchor")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.False(t, already)

	ok, err := c.ThreadExists(ctx, "whatever")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.DeleteThread(ctx, "whatever"))

	m, err := c.SendThreadOverview(ctx, "", &domain.ThreadOverviewData{Card: &domain.PatchCard{Subject: "s"}})
	require.NoError(t, err)
	assert.Empty(t, m)

	updated, err := c.UpdateThreadOverview(ctx, "", "", domain.SubPatchOverview{})
	require.NoError(t, err)
	assert.True(t, updated)

	// Only CreateThread and SendThreadOverview reach the webhook.
	assert.Equal(t, 2, calls)
}
