package bridge

import (
	"encoding/json"
	"net/http"

	"Skybridge/internal/api/middleware"
	"Skybridge/internal/core/bridge"
)

// BroadcastHandler handles the outbound broadcast endpoint
type BroadcastHandler struct {
	service bridge.Service
}

// NewBroadcastHandler creates a new broadcast handler
func NewBroadcastHandler(service bridge.Service) *BroadcastHandler {
	return &BroadcastHandler{service: service}
}

type broadcastRequest struct {
	ContentID int64 `json:"contentId"`
}

// HandleBroadcast publishes a content item through the platform identity
// POST /xrpc/social.skybridge.bridge.broadcast
func (h *BroadcastHandler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetActorID(r)

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if req.ContentID <= 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "contentId is required")
		return
	}

	result, err := h.service.Broadcast(r.Context(), req.ContentID, accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
