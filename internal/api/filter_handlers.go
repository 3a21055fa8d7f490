package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httputil"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/filter"
)

type createFilterRequest struct {
	Name        string                  `json:"name"`
	Conditions  domain.FilterConditions `json:"conditions"`
	Description string                  `json:"description"`
	CreatedBy   string                  `json:"created_by"`
	Enabled     *bool                   `json:"enabled"`
}

// HandleCreateFilter creates a rule group, or merges conditions into an
// existing group of the same name.
//
//	POST /api/filters
func (h *Handlers) HandleCreateFilter(w http.ResponseWriter, r *http.Request) {
	var req createFilterRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	if len(req.Conditions) == 0 {
		httputil.BadRequest(w, "conditions is required")
		return
	}
	for field := range req.Conditions {
		if !isSupportedField(field) {
			httputil.BadRequest(w, "unsupported condition type: "+field)
			return
		}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	out, err := h.filters.CreateFilter(r.Context(), req.Name, req.Conditions, req.Description, req.CreatedBy, enabled)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, out)
}

// HandleListFilters lists rule groups.
//
//	GET /api/filters?enabled=true
func (h *Handlers) HandleListFilters(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	out, err := h.filters.ListFilters(r.Context(), enabledOnly)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	exclusive, err := h.filters.ExclusiveMode(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"filters":        out,
		"count":          len(out),
		"exclusive_mode": exclusive,
	})
}

// HandleGetFilter shows one rule group.
//
//	GET /api/filters/{name}
func (h *Handlers) HandleGetFilter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	out, err := h.filters.GetFilter(r.Context(), name)
	if errors.Is(err, filter.ErrNotFound) {
		httputil.NotFound(w, "filter "+name+" not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, out)
}

// HandleDeleteFilter removes one rule group.
//
//	DELETE /api/filters/{name}
func (h *Handlers) HandleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.filters.DeleteFilter(r.Context(), name)
	if errors.Is(err, filter.ErrNotFound) {
		httputil.NotFound(w, "filter "+name+" not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandleClearFilters removes every rule group.
//
//	DELETE /api/filters
func (h *Handlers) HandleClearFilters(w http.ResponseWriter, r *http.Request) {
	n, err := h.filters.ClearFilters(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"deleted": n})
}

// HandleEnableFilter enables a rule group.
//
//	POST /api/filters/{name}/enable
func (h *Handlers) HandleEnableFilter(w http.ResponseWriter, r *http.Request) {
	h.toggleFilter(w, r, boolPtr(true))
}

// HandleDisableFilter disables a rule group.
//
//	POST /api/filters/{name}/disable
func (h *Handlers) HandleDisableFilter(w http.ResponseWriter, r *http.Request) {
	h.toggleFilter(w, r, boolPtr(false))
}

// HandleToggleFilter flips a rule group's enabled state.
//
//	POST /api/filters/{name}/toggle
func (h *Handlers) HandleToggleFilter(w http.ResponseWriter, r *http.Request) {
	h.toggleFilter(w, r, nil)
}

func (h *Handlers) toggleFilter(w http.ResponseWriter, r *http.Request, enabled *bool) {
	name := chi.URLParam(r, "name")
	err := h.filters.ToggleFilter(r.Context(), name, enabled)
	if errors.Is(err, filter.ErrNotFound) {
		httputil.NotFound(w, "filter "+name+" not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	out, err := h.filters.GetFilter(r.Context(), name)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, out)
}

type conditionRequest struct {
	Field   string `json:"field"`
	Pattern string `json:"pattern"`
}

// HandleAddCondition adds one pattern to a rule group's condition field.
//
//	POST /api/filters/{name}/conditions
func (h *Handlers) HandleAddCondition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req conditionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Field == "" || req.Pattern == "" {
		httputil.BadRequest(w, "field and pattern are required")
		return
	}
	if !isSupportedField(req.Field) {
		httputil.BadRequest(w, "unsupported condition type: "+req.Field)
		return
	}

	out, err := h.filters.AddCondition(r.Context(), name, req.Field, req.Pattern)
	if errors.Is(err, filter.ErrNotFound) {
		httputil.NotFound(w, "filter "+name+" not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, out)
}

// HandleRemoveCondition removes one pattern from a rule group's condition
// field; removing the last pattern removes the field.
//
//	DELETE /api/filters/{name}/conditions
func (h *Handlers) HandleRemoveCondition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req conditionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Field == "" || req.Pattern == "" {
		httputil.BadRequest(w, "field and pattern are required")
		return
	}

	out, err := h.filters.RemoveCondition(r.Context(), name, req.Field, req.Pattern)
	switch {
	case errors.Is(err, filter.ErrNotFound):
		httputil.NotFound(w, "filter "+name+" not found")
		return
	case errors.Is(err, filter.ErrConditionNotFound):
		httputil.NotFound(w, "no such condition on filter "+name)
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, out)
}

type removeTypesRequest struct {
	Fields []string `json:"fields"`
}

// HandleRemoveTypes removes whole condition fields from a rule group.
//
//	DELETE /api/filters/{name}/types
func (h *Handlers) HandleRemoveTypes(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req removeTypesRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		httputil.BadRequest(w, "fields is required")
		return
	}

	out, err := h.filters.RemoveTypes(r.Context(), name, req.Fields)
	switch {
	case errors.Is(err, filter.ErrNotFound):
		httputil.NotFound(w, "filter "+name+" not found")
		return
	case errors.Is(err, filter.ErrConditionNotFound):
		httputil.NotFound(w, "no such condition type on filter "+name)
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, out)
}

// HandleFilterTypes lists the recognized condition fields.
//
//	GET /api/filters/types
func (h *Handlers) HandleFilterTypes(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"types": h.filters.SupportedTypes()})
}

// HandleGetExclusiveMode reports the exclusive-mode setting.
//
//	GET /api/filters/config/exclusive
func (h *Handlers) HandleGetExclusiveMode(w http.ResponseWriter, r *http.Request) {
	on, err := h.filters.ExclusiveMode(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"exclusive_mode": on})
}

type exclusiveModeRequest struct {
	Enabled *bool `json:"enabled"`
}

// HandleSetExclusiveMode sets the exclusive-mode setting.
//
//	PUT /api/filters/config/exclusive
func (h *Handlers) HandleSetExclusiveMode(w http.ResponseWriter, r *http.Request) {
	var req exclusiveModeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		httputil.BadRequest(w, "enabled is required")
		return
	}

	if err := h.filters.SetExclusiveMode(r.Context(), *req.Enabled); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"exclusive_mode": *req.Enabled})
}

func isSupportedField(field string) bool {
	switch field {
	case domain.FilterFieldAuthor, domain.FilterFieldAuthorEmail,
		domain.FilterFieldSubsys, domain.FilterFieldSubsystem,
		domain.FilterFieldSubject, domain.FilterFieldKeywords,
		domain.FilterFieldCCList, domain.FilterFieldCC:
		return true
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
