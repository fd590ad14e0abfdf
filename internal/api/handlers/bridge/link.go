package bridge

import (
	"encoding/json"
	"net/http"

	"Skybridge/internal/api/middleware"
	"Skybridge/internal/core/bridge"
)

// LinkHandler handles the identity link lifecycle endpoints
type LinkHandler struct {
	service bridge.Service
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(service bridge.Service) *LinkHandler {
	return &LinkHandler{service: service}
}

// HandleLink links the authenticated account to an external identity
// POST /xrpc/social.skybridge.bridge.link
func (h *LinkHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetActorID(r)

	var req bridge.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	identity, err := h.service.Link(r.Context(), accountID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, identity)
}

// HandleUnlink destroys the authenticated account's link
// POST /xrpc/social.skybridge.bridge.unlink
func (h *LinkHandler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetActorID(r)

	if err := h.service.Unlink(r.Context(), accountID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"unlinked": true})
}

// HandleGetLink reports the authenticated account's bridge state
// GET /xrpc/social.skybridge.bridge.getLink
func (h *LinkHandler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetActorID(r)

	status, err := h.service.GetLink(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// HandleUpdateSettings toggles the linked identity's bridge flags
// POST /xrpc/social.skybridge.bridge.updateSettings
func (h *LinkHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetActorID(r)

	var update bridge.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	identity, err := h.service.UpdateSettings(r.Context(), accountID, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, identity)
}
