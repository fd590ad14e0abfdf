package bridge

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"Skybridge/internal/core/bridge"
)

// XRPCError represents an XRPC error response
type XRPCError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes an XRPC error response
func writeError(w http.ResponseWriter, status int, error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(XRPCError{
		Error:   error,
		Message: message,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// writeJSON writes a success response
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers already sent; nothing useful left to do.
		_ = err
	}
}

// handleServiceError converts bridge service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	var nfe *bridge.IdentityNotFoundError
	var bfe *bridge.BroadcastFailedError
	var nee *bridge.NotEnabledError
	var ae *bridge.AuthError

	switch {
	case bridge.IsValidationError(err):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.As(err, &ae):
		if ae.Reconnect {
			writeError(w, http.StatusUnauthorized, "ReconnectRequired", err.Error())
		} else {
			writeError(w, http.StatusUnauthorized, "AuthenticationFailed", err.Error())
		}
	case errors.Is(err, bridge.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", "You do not own this content")
	case errors.As(err, &nfe):
		writeError(w, http.StatusNotFound, "IdentityNotFound", err.Error())
	case errors.Is(err, bridge.ErrIdentityNotLinked):
		writeError(w, http.StatusNotFound, "NotLinked", "Account has no linked identity")
	case errors.Is(err, bridge.ErrNotConnected):
		writeError(w, http.StatusNotFound, "NotConnected", "Identity has no stored credentials")
	case errors.Is(err, bridge.ErrContentNotFound):
		writeError(w, http.StatusNotFound, "ContentNotFound", "Content not found")
	case errors.Is(err, bridge.ErrNotBroadcast):
		writeError(w, http.StatusNotFound, "NotBroadcast", "Content has not been broadcast")
	case errors.Is(err, bridge.ErrIdentityTaken):
		writeError(w, http.StatusConflict, "IdentityTaken", "External identity is already linked to another account")
	case bridge.IsConflict(err):
		writeError(w, http.StatusConflict, "AlreadyExists", err.Error())
	case bridge.IsNotEligible(err):
		writeError(w, http.StatusUnprocessableEntity, "NotEligible", err.Error())
	case errors.As(err, &nee):
		writeError(w, http.StatusUnprocessableEntity, "NotEnabled", err.Error())
	case errors.As(err, &bfe):
		writeError(w, http.StatusBadGateway, "BroadcastFailed", err.Error())
	case bridge.IsTransportError(err):
		writeError(w, http.StatusServiceUnavailable, "UpstreamUnavailable", "External service is unavailable, try again later")
	default:
		log.Printf("bridge handler error: %v", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
