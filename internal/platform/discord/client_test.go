package discord

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

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("tok", "chan-1", srv.URL, srv.Client()), srv
}

func TestSendPatchCard(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "m1", "channel_id": "chan-1"})
	})

	msgID, chanID, err := c.SendPatchCard(context.Background(), &domain.PatchCard{
		Subject: "[PATCH] rust: fix alloc",
		Author:  "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", msgID)
	assert.Equal(t, "chan-1", chanID)
	assert.Equal(t, "Bot tok", gotAuth)
	assert.Equal(t, "/channels/chan-1/messages", gotPath)
	assert.Contains(t, gotBody, "embeds")
}

func TestCreateThread_AlreadyExists(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"code": 160004, "message": "thread already created"})
	})

	threadID, already, err := c.CreateThread(context.Background(), "name", "anchor-1")
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, "anchor-1", threadID)
}

func TestCreateThread_Created(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/chan-1/messages/anchor-1/threads", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "thr-1"})
	})

	threadID, already, err := c.CreateThread(context.Background(), "name", "anchor-1")
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, "thr-1", threadID)
}

func TestThreadExists(t *testing.T) {
	status := http.StatusOK
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	ok, err := c.ThreadExists(context.Background(), "thr-1")
	require.NoError(t, err)
	assert.True(t, ok)

	status = http.StatusNotFound
	ok, err = c.ThreadExists(context.Background(), "thr-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendThreadOverview(t *testing.T) {
	next := 0
	ids := []string{"ov-1", "ov-2"}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": ids[next]})
		next++
	})

	data := &domain.ThreadOverviewData{SubPatchOverviews: []domain.SubPatchOverview{
		{Patch: domain.SeriesPatchInfo{PatchIndex: 1, PatchTotal: 2, Subject: "A"}},
		{Patch: domain.SeriesPatchInfo{PatchIndex: 2, PatchTotal: 2, Subject: "B"}},
	}}
	m, err := c.SendThreadOverview(context.Background(), "thr-1", data)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "ov-1", 2: "ov-2"}, m)
}

func TestUpdateThreadOverview(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	ok, err := c.UpdateThreadOverview(context.Background(), "thr-1", "ov-1", domain.SubPatchOverview{
		Patch: domain.SeriesPatchInfo{PatchIndex: 1, PatchTotal: 1, Subject: "A"},
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/channels/thr-1/messages/ov-1", gotPath)
}

func TestAPIErrorSurfacesStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"code": 50001, "message": "Missing Access"})
	})

	_, _, err := c.SendPatchCard(context.Background(), &domain.PatchCard{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Missing Access")
}
