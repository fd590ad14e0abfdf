package bridge

import (
	"net/http"
	"strconv"

	"Skybridge/internal/core/bridge"
)

// SyncHandler handles the inbound sync and sweep endpoints
type SyncHandler struct {
	service bridge.Service
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service bridge.Service) *SyncHandler {
	return &SyncHandler{service: service}
}

// contentIDParam reads the contentId query parameter
func contentIDParam(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("contentId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// HandleSyncReplies imports external thread replies as local comments
// POST /xrpc/social.skybridge.bridge.syncReplies?contentId=N
func (h *SyncHandler) HandleSyncReplies(w http.ResponseWriter, r *http.Request) {
	contentID, ok := contentIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "contentId parameter is required")
		return
	}

	result, err := h.service.SyncReplies(r.Context(), contentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleSyncEngagement refreshes the cached engagement counts
// POST /xrpc/social.skybridge.bridge.syncEngagement?contentId=N
func (h *SyncHandler) HandleSyncEngagement(w http.ResponseWriter, r *http.Request) {
	contentID, ok := contentIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "contentId parameter is required")
		return
	}

	snapshot, err := h.service.SyncEngagement(r.Context(), contentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// HandleRefreshSweep refreshes every connected identity nearing expiry.
// Operational endpoint, gated by the admin token middleware.
// POST /xrpc/social.skybridge.bridge.refreshSweep
func (h *SyncHandler) HandleRefreshSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RefreshSweep(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
