package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hpungsan/cortex/internal/errors"
	"github.com/hpungsan/cortex/internal/store"
)

// Handlers contains HTTP route handlers for the capsule viewer.
type Handlers struct {
	store    *store.Store
	renderer *Renderer
}

// HandleList handles GET /capsules — list captured capsules, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)

	ids, err := h.store.ListRecentIDs(limit)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	items := make([]ListItem, 0, len(ids))
	for _, id := range ids {
		c, err := h.store.Get(id)
		if err != nil {
			// Capsule deleted between listing and reading; skip it.
			continue
		}
		_, diagErr := h.store.GetDiagnosis(id)
		items = append(items, ListItem{
			ID:           c.ID,
			ReceivedAt:   c.ReceivedAt,
			PageTitle:    c.Context.Title,
			URL:          c.Context.URL,
			Instructions: c.Instructions,
			HasDiagnosis: diagErr == nil,
		})
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Capsules",
			Version: h.renderer.version,
		},
		Items: items,
		Limit: limit,
	})
}

// HandleDetail handles GET /capsules/{id} — view a single capsule and
// its diagnosis, if one was produced.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("capsule ID is required"))
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   c.ID,
			Version: h.renderer.version,
		},
		ID:          c.ID,
		ReceivedAt:  c.ReceivedAt,
		CapsuleJSON: string(raw),
	}

	if text, err := h.store.GetDiagnosis(id); err == nil {
		data.Diagnosis = renderMarkdown(text)
		data.HasDiagnosis = true
	}

	h.renderer.renderPage(w, "detail", data)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
