package api

import (
	"net/http"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httputil"
)

// HandleMonitorStart starts the background monitoring loop.
//
//	POST /api/monitor/start
func (h *Handlers) HandleMonitorStart(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	if h.monitor.IsRunning() {
		httputil.OK(w, map[string]any{
			"started": false,
			"message": "monitor already running",
			"run_id":  h.monitor.RunID(),
		})
		return
	}

	h.monitor.Start()
	if !h.monitor.IsRunning() {
		httputil.Error(w, http.StatusConflict, "monitor did not start (no subscribed subsystems?)")
		return
	}

	h.subsystems.RecordAction(r.Context(), req.operator(), domain.ActionStartMonitor, h.monitor.RunID())
	httputil.OK(w, map[string]any{"started": true, "run_id": h.monitor.RunID()})
}

// HandleMonitorStop stops the background monitoring loop.
//
//	POST /api/monitor/stop
func (h *Handlers) HandleMonitorStop(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	if !h.monitor.IsRunning() {
		httputil.OK(w, map[string]any{"stopped": false, "message": "monitor not running"})
		return
	}

	runID := h.monitor.RunID()
	h.monitor.Stop()
	h.subsystems.RecordAction(r.Context(), req.operator(), domain.ActionStopMonitor, runID)
	httputil.OK(w, map[string]any{"stopped": true, "run_id": runID})
}

// HandleMonitorRun executes a single monitoring cycle synchronously.
//
//	POST /api/monitor/run
func (h *Handlers) HandleMonitorRun(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.monitor.RunOnce(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	h.subsystems.RecordAction(r.Context(), req.operator(), domain.ActionRunMonitor, "")
	httputil.OK(w, result)
}

// HandleMonitorStatus reports the loop state and cumulative stats.
//
//	GET /api/monitor/status
func (h *Handlers) HandleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"running": h.monitor.IsRunning(),
		"run_id":  h.monitor.RunID(),
		"stats":   h.monitor.Stats(),
	})
}
