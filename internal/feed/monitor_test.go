package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	names []string
}

func (l *staticLister) ListSubscribed(context.Context) ([]string, error) {
	return l.names, nil
}

func TestRunCycle_AggregatesAcrossSubsystems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/broken/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(atomFeed(
			atomEntry("[PATCH] rust: fix", "p@x", "2026-08-01T10:00:00Z", ""),
		)))
	}))
	defer srv.Close()

	store := newMemMessageStore()
	fetcher := NewFetcher(srv.Client())
	processor := NewProcessor(fetcher, store, &memSubsystemStore{},
		&recordingHandler{}, &recordingHandler{}, "2026-07-01T00:00:00Z")
	monitor := NewMonitor(processor, &staticLister{names: []string{"rust-for-linux", "broken"}},
		func(name string) string { return srv.URL + "/" + name + "/new.atom" })

	result, err := monitor.RunCycle(context.Background())
	require.NoError(t, err)

	// The broken subsystem contributes an error entry, not an abort.
	assert.Equal(t, 2, result.Stats.TotalSubsystems)
	assert.Equal(t, 2, result.Stats.ProcessedSubsystems)
	assert.Equal(t, 1, result.Stats.TotalNewCount)
	assert.Equal(t, 1, result.Stats.ErrorCount)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "rust-for-linux", result.Results[0].Subsystem)
	assert.False(t, result.EndTime.Before(result.StartTime))
}

func TestRunCycle_NoSubscriptions(t *testing.T) {
	monitor := NewMonitor(nil, &staticLister{}, nil)

	result, err := monitor.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Zero(t, result.Stats.TotalNewCount)
}
