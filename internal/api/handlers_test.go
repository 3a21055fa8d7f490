package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/filter"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/subsystem"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/thread"
)

type fakeMonitor struct {
	running bool
	runID   string
	result  *domain.MonitoringResult
	err     error
}

func (m *fakeMonitor) Start() {
	if !m.running {
		m.running = true
		m.runID = "ab12cd34"
	}
}
func (m *fakeMonitor) Stop()           { m.running = false; m.runID = "" }
func (m *fakeMonitor) IsRunning() bool { return m.running }
func (m *fakeMonitor) RunID() string   { return m.runID }
func (m *fakeMonitor) Stats() map[string]int64 {
	return map[string]int64{"total_cycles": 2}
}
func (m *fakeMonitor) RunOnce(context.Context) (*domain.MonitoringResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.MonitoringResult{}, nil
}

type fakeWatcher struct {
	thread *domain.PatchThread
	err    error
}

func (w *fakeWatcher) Watch(context.Context, string) (*domain.PatchThread, error) {
	return w.thread, w.err
}

type fakeSubsystems struct {
	subscribed   []string
	unsubscribed []string
	listed       []domain.Subsystem
	actions      []string
}

func (s *fakeSubsystems) Subscribe(_ context.Context, _ subsystem.Operator, names []string) ([]string, error) {
	s.subscribed = append(s.subscribed, names...)
	return names, nil
}
func (s *fakeSubsystems) Unsubscribe(_ context.Context, _ subsystem.Operator, names []string) ([]string, error) {
	s.unsubscribed = append(s.unsubscribed, names...)
	return names, nil
}
func (s *fakeSubsystems) List(context.Context, bool) ([]domain.Subsystem, error) {
	return s.listed, nil
}
func (s *fakeSubsystems) Search(context.Context, string) ([]domain.Subsystem, error) {
	return s.listed, nil
}
func (s *fakeSubsystems) RecordAction(_ context.Context, _ subsystem.Operator, action, _ string) {
	s.actions = append(s.actions, action)
}
func (s *fakeSubsystems) RecentOperations(context.Context, int) ([]domain.OperationLog, error) {
	return nil, nil
}

type fakeFilters struct {
	filters   map[string]*domain.PatchCardFilter
	exclusive bool
}

func newFakeFilters() *fakeFilters {
	return &fakeFilters{filters: map[string]*domain.PatchCardFilter{}}
}

func (f *fakeFilters) CreateFilter(_ context.Context, name string, conditions domain.FilterConditions, description, createdBy string, enabled bool) (*domain.PatchCardFilter, error) {
	out := &domain.PatchCardFilter{Name: name, Enabled: enabled, Conditions: conditions, Description: description, CreatedBy: createdBy}
	f.filters[name] = out
	return out, nil
}
func (f *fakeFilters) ListFilters(context.Context, bool) ([]domain.PatchCardFilter, error) {
	var out []domain.PatchCardFilter
	for _, v := range f.filters {
		out = append(out, *v)
	}
	return out, nil
}
func (f *fakeFilters) GetFilter(_ context.Context, name string) (*domain.PatchCardFilter, error) {
	if v, ok := f.filters[name]; ok {
		return v, nil
	}
	return nil, filter.ErrNotFound
}
func (f *fakeFilters) DeleteFilter(_ context.Context, name string) error {
	if _, ok := f.filters[name]; !ok {
		return filter.ErrNotFound
	}
	delete(f.filters, name)
	return nil
}
func (f *fakeFilters) ClearFilters(context.Context) (int, error) {
	n := len(f.filters)
	f.filters = map[string]*domain.PatchCardFilter{}
	return n, nil
}
func (f *fakeFilters) ToggleFilter(_ context.Context, name string, enabled *bool) error {
	v, ok := f.filters[name]
	if !ok {
		return filter.ErrNotFound
	}
	if enabled == nil {
		v.Enabled = !v.Enabled
	} else {
		v.Enabled = *enabled
	}
	return nil
}
func (f *fakeFilters) AddCondition(_ context.Context, name, field, pattern string) (*domain.PatchCardFilter, error) {
	v, ok := f.filters[name]
	if !ok {
		return nil, filter.ErrNotFound
	}
	if v.Conditions == nil {
		v.Conditions = domain.FilterConditions{}
	}
	v.Conditions[field] = domain.NewCondition(pattern)
	return v, nil
}
func (f *fakeFilters) RemoveCondition(_ context.Context, name, field, _ string) (*domain.PatchCardFilter, error) {
	v, ok := f.filters[name]
	if !ok {
		return nil, filter.ErrNotFound
	}
	if _, ok := v.Conditions[field]; !ok {
		return nil, filter.ErrConditionNotFound
	}
	delete(v.Conditions, field)
	return v, nil
}
func (f *fakeFilters) RemoveTypes(_ context.Context, name string, fields []string) (*domain.PatchCardFilter, error) {
	v, ok := f.filters[name]
	if !ok {
		return nil, filter.ErrNotFound
	}
	for _, field := range fields {
		delete(v.Conditions, field)
	}
	return v, nil
}
func (f *fakeFilters) SupportedTypes() map[string]string {
	return domain.SupportedFilterFields()
}
func (f *fakeFilters) ExclusiveMode(context.Context) (bool, error) { return f.exclusive, nil }
func (f *fakeFilters) SetExclusiveMode(_ context.Context, on bool) error {
	f.exclusive = on
	return nil
}

type testEnv struct {
	monitor    *fakeMonitor
	watcher    *fakeWatcher
	subsystems *fakeSubsystems
	filters    *fakeFilters
	handler    http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		monitor:    &fakeMonitor{},
		watcher:    &fakeWatcher{},
		subsystems: &fakeSubsystems{},
		filters:    newFakeFilters(),
	}
	env.handler = SetupRoutes(NewHandlers(env.monitor, env.watcher, env.subsystems, env.filters, nil))
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth_NoChecker(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestMonitorStartStopStatus(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/monitor/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["started"])
	assert.Equal(t, "ab12cd34", body["run_id"])
	assert.Contains(t, env.subsystems.actions, domain.ActionStartMonitor)

	// A second start reports the running instance instead of failing.
	rec = env.do(t, http.MethodPost, "/api/monitor/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["started"])

	rec = env.do(t, http.MethodGet, "/api/monitor/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["running"])

	rec = env.do(t, http.MethodPost, "/api/monitor/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["stopped"])
	assert.False(t, env.monitor.running)
}

func TestMonitorRun(t *testing.T) {
	env := newTestEnv()
	env.monitor.result = &domain.MonitoringResult{
		Stats: domain.MonitoringStats{TotalNewCount: 4},
	}

	rec := env.do(t, http.MethodPost, "/api/monitor/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody(t, rec)["stats"].(map[string]any)
	assert.Equal(t, float64(4), stats["total_new_count"])
	assert.Contains(t, env.subsystems.actions, domain.ActionRunMonitor)
}

func TestWatch_Created(t *testing.T) {
	env := newTestEnv()
	env.watcher.thread = &domain.PatchThread{ThreadID: "thr-1", IsActive: true}

	rec := env.do(t, http.MethodPost, "/api/watch", map[string]string{"message_id_header": "cov@x"})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["created"])
	assert.Contains(t, env.subsystems.actions, domain.ActionWatch)
}

func TestWatch_AlreadyExists(t *testing.T) {
	env := newTestEnv()
	env.watcher.thread = &domain.PatchThread{ThreadID: "thr-1"}
	env.watcher.err = thread.ErrThreadExists

	rec := env.do(t, http.MethodPost, "/api/watch", map[string]string{"message_id_header": "cov@x"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["already_exists"])
	assert.Empty(t, env.subsystems.actions)
}

func TestWatch_NotFound(t *testing.T) {
	env := newTestEnv()
	env.watcher.err = thread.ErrCardNotFound

	rec := env.do(t, http.MethodPost, "/api/watch", map[string]string{"message_id_header": "gone@x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatch_MissingHeader(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/watch", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWatch_InternalError(t *testing.T) {
	env := newTestEnv()
	env.watcher.err = errors.New("discord down")

	rec := env.do(t, http.MethodPost, "/api/watch", map[string]string{"message_id_header": "cov@x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubscribe(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/subsystems/subscribe",
		map[string]any{"names": []string{"rust", "netdev"}, "operator_name": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"rust", "netdev"}, env.subsystems.subscribed)
}

func TestSubscribe_MissingNames(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/subsystems/subscribe", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchSubsystems_RequiresKeyword(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/subsystems/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilterLifecycle(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/filters", map[string]any{
		"name":       "rust",
		"conditions": map[string]any{"subject": "rust"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/filters/rust", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/filters/rust/conditions",
		map[string]string{"field": "author", "pattern": "ojeda"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/filters/rust/disable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.filters.filters["rust"].Enabled)

	rec = env.do(t, http.MethodDelete, "/api/filters/rust", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateFilter_UnsupportedType(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/filters", map[string]any{
		"name":       "rust",
		"conditions": map[string]any{"severity": "high"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFilter_NotFound(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/filters/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExclusiveMode(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/filters/config/exclusive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["exclusive_mode"])

	rec = env.do(t, http.MethodPut, "/api/filters/config/exclusive", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.filters.exclusive)
}

func TestFilterTypes(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/filters/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	types := decodeBody(t, rec)["types"].(map[string]any)
	assert.Contains(t, types, "subject")
}
