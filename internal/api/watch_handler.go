package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httputil"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/patchcard"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/thread"
)

type watchRequest struct {
	operatorRequest
	MessageIDHeader string `json:"message_id_header"`
}

// HandleWatch creates (or recreates) the discussion thread for a patch.
// The target may be any message in the series; sub-patches resolve to
// their cover letter.
//
//	POST /api/watch
func (h *Handlers) HandleWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.MessageIDHeader = strings.TrimSpace(req.MessageIDHeader)
	if req.MessageIDHeader == "" {
		httputil.BadRequest(w, "message_id_header is required")
		return
	}

	t, err := h.watcher.Watch(r.Context(), req.MessageIDHeader)
	switch {
	case errors.Is(err, thread.ErrThreadExists):
		httputil.OK(w, map[string]any{"created": false, "already_exists": true, "thread": t})
		return
	case errors.Is(err, thread.ErrCardNotFound), errors.Is(err, patchcard.ErrMessageNotFound):
		httputil.NotFound(w, "no patch found for "+req.MessageIDHeader)
		return
	case errors.Is(err, patchcard.ErrNotAPatch):
		httputil.BadRequest(w, req.MessageIDHeader+" is not a patch")
		return
	case errors.Is(err, thread.ErrNoPlatformMessage):
		httputil.Error(w, http.StatusConflict, "patch card has no platform message to anchor a thread on")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	h.subsystems.RecordAction(r.Context(), req.operator(), domain.ActionWatch, req.MessageIDHeader)
	httputil.Created(w, map[string]any{"created": true, "thread": t})
}
