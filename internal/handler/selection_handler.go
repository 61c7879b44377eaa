// internal/handler/selection_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/cache"
	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/selection"
)

// SelectionStore persists selection state between requests.
type SelectionStore interface {
	Save(ctx context.Context, id uuid.UUID, state *selection.State) error
	Load(ctx context.Context, id uuid.UUID) (*selection.State, error)
}

// SelectionHandler holds the dependencies for selection HTTP handlers
type SelectionHandler struct {
	Store SelectionStore
	Log   zerolog.Logger
}

type selectionView struct {
	Key            uuid.UUID          `json:"key"`
	Mode           selection.Mode     `json:"mode"`
	EffectiveCount int                `json:"effective_count"`
	PendingCount   int                `json:"pending_count"`
	ReadyCount     int                `json:"ready_count"`
	Pending        map[int64][]string `json:"pending"`
	State          *selection.State   `json:"state"`
}

func view(key uuid.UUID, s *selection.State, total int) selectionView {
	return selectionView{
		Key:            key,
		Mode:           s.Mode(),
		EffectiveCount: s.EffectiveCount(total),
		PendingCount:   s.PendingCount(),
		ReadyCount:     s.ReadyCount(total),
		Pending:        s.Pending(),
		State:          s,
	}
}

// Routes mounts the selection endpoints.
func (h *SelectionHandler) Routes(r chi.Router) {
	r.Post("/selections", h.CreateSelection)
	r.Route("/selections/{key}", func(r chi.Router) {
		r.Get("/", h.GetSelection)
		r.Post("/toggle", h.ToggleRow)
		r.Post("/select-all", h.SelectAllMatching)
		r.Post("/emails/{contactID}", h.ResolveEmail)
		r.Post("/skip/{contactID}", h.Skip)
		r.Post("/clear", h.Clear)
		r.Post("/submission", h.Submission)
	})
}

// CreateSelection starts an empty explicit selection.
func (h *SelectionHandler) CreateSelection(w http.ResponseWriter, r *http.Request) {
	key := uuid.New()
	state := selection.New()
	if err := h.Store.Save(r.Context(), key, state); err != nil {
		h.storeFailed(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusCreated, view(key, state, 0))
}

// GetSelection reports counts against ?total=, the current match count.
func (h *SelectionHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	key, state, ok := h.load(w, r)
	if !ok {
		return
	}
	total, _ := strconv.Atoi(r.URL.Query().Get("total"))
	controller.WriteJSON(w, http.StatusOK, view(key, state, total))
}

func (h *SelectionHandler) ToggleRow(w http.ResponseWriter, r *http.Request) {
	var row selection.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil || row.ID <= 0 {
		controller.BadRequest(w, "invalid row")
		return
	}
	h.mutate(w, r, func(s *selection.State) error {
		s.ToggleRow(row)
		return nil
	})
}

func (h *SelectionHandler) SelectAllMatching(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows []selection.Row `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		controller.BadRequest(w, "invalid body")
		return
	}
	h.mutate(w, r, func(s *selection.State) error {
		s.SelectAllMatching(body.Rows)
		return nil
	})
}

// ResolveEmail picks one address for a contact with several.
func (h *SelectionHandler) ResolveEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := controller.IDParam(r, "contactID")
	if !ok {
		controller.BadRequest(w, "invalid contact id")
		return
	}
	var body struct {
		Email   string `json:"email"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Address == "" {
		controller.BadRequest(w, "address is required")
		return
	}
	h.mutate(w, r, func(s *selection.State) error {
		return s.ResolveEmail(selection.Row{ID: id, Email: body.Email}, body.Address)
	})
}

func (h *SelectionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, ok := controller.IDParam(r, "contactID")
	if !ok {
		controller.BadRequest(w, "invalid contact id")
		return
	}
	h.mutate(w, r, func(s *selection.State) error {
		s.Skip(id)
		return nil
	})
}

func (h *SelectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *selection.State) error {
		s.Clear()
		return nil
	})
}

// Submission materializes the selection against the filters in view.
func (h *SelectionHandler) Submission(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filters model.ContactFilter `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		controller.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	_, state, ok := h.load(w, r)
	if !ok {
		return
	}
	controller.WriteJSON(w, http.StatusOK, state.Materialize(body.Filters))
}

func (h *SelectionHandler) load(w http.ResponseWriter, r *http.Request) (uuid.UUID, *selection.State, bool) {
	key, err := uuid.Parse(chi.URLParam(r, "key"))
	if err != nil {
		controller.BadRequest(w, "invalid selection key")
		return uuid.Nil, nil, false
	}
	state, err := h.Store.Load(r.Context(), key)
	if errors.Is(err, cache.ErrSelectionNotFound) {
		controller.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "selection not found", "retryable": false})
		return uuid.Nil, nil, false
	}
	if err != nil {
		h.storeFailed(w, err)
		return uuid.Nil, nil, false
	}
	return key, state, true
}

// mutate loads, applies fn and saves. An fn error is the client's fault.
func (h *SelectionHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(*selection.State) error) {
	key, state, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := fn(state); err != nil {
		controller.BadRequest(w, err.Error())
		return
	}
	if err := h.Store.Save(r.Context(), key, state); err != nil {
		h.storeFailed(w, err)
		return
	}
	total, _ := strconv.Atoi(r.URL.Query().Get("total"))
	controller.WriteJSON(w, http.StatusOK, view(key, state, total))
}

func (h *SelectionHandler) storeFailed(w http.ResponseWriter, err error) {
	h.Log.Error().Err(err).Msg("selection store failed")
	controller.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "selection store unavailable", "retryable": true})
}
