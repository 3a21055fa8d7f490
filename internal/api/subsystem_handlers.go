package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httputil"
)

type subscriptionRequest struct {
	operatorRequest
	Names []string `json:"names"`
}

// HandleSubscribe subscribes one or more subsystems, creating unknown
// names on the fly.
//
//	POST /api/subsystems/subscribe
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Names) == 0 {
		httputil.BadRequest(w, "names is required")
		return
	}

	changed, err := h.subsystems.Subscribe(r.Context(), req.operator(), req.Names)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"subscribed": changed})
}

// HandleUnsubscribe unsubscribes one or more subsystems. Unknown or
// already-unsubscribed names are skipped.
//
//	POST /api/subsystems/unsubscribe
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Names) == 0 {
		httputil.BadRequest(w, "names is required")
		return
	}

	changed, err := h.subsystems.Unsubscribe(r.Context(), req.operator(), req.Names)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"unsubscribed": changed})
}

// HandleListSubsystems lists known subsystems, optionally only the
// subscribed ones.
//
//	GET /api/subsystems?subscribed=true
func (h *Handlers) HandleListSubsystems(w http.ResponseWriter, r *http.Request) {
	subscribedOnly := r.URL.Query().Get("subscribed") == "true"
	out, err := h.subsystems.List(r.Context(), subscribedOnly)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"subsystems": out, "count": len(out)})
}

// HandleSearchSubsystems searches known subsystems by name fragment.
//
//	GET /api/subsystems/search?q=net
func (h *Handlers) HandleSearchSubsystems(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		httputil.BadRequest(w, "q is required")
		return
	}
	out, err := h.subsystems.Search(r.Context(), keyword)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"subsystems": out, "count": len(out)})
}

// HandleRecentOperations lists the most recent audit records.
//
//	GET /api/operations?limit=20
func (h *Handlers) HandleRecentOperations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	out, err := h.subsystems.RecentOperations(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"operations": out, "count": len(out)})
}
