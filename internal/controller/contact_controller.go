package controller

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/selection"
	"github.com/unclebandit/outreach-backend/internal/service"
)

type ContactController struct {
	Contacts *service.ContactQueryService
	Log      zerolog.Logger
}

// Search runs a segmentation query. page is zero-based.
func (c *ContactController) Search(w http.ResponseWriter, r *http.Request) {
	var req service.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid body: "+err.Error())
		return
	}
	page, err := c.Contacts.Search(r.Context(), req)
	if err != nil {
		WriteError(w, c.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// ResolveRecipients turns a selection submission into the final recipient list.
func (c *ContactController) ResolveRecipients(w http.ResponseWriter, r *http.Request) {
	var sub selection.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		BadRequest(w, "invalid body: "+err.Error())
		return
	}
	list, err := c.Contacts.ResolveRecipients(r.Context(), sub)
	if err != nil {
		WriteError(w, c.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}
