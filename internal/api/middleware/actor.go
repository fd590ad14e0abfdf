package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// Context keys for request-scoped identity
type contextKey string

const actorIDKey contextKey = "actor_id"

// ActorHeader carries the authenticated local account ID, injected by the
// host platform's auth layer in front of this service. Authentication
// itself happens upstream; this service only trusts the header.
const ActorHeader = "X-Skybridge-Actor"

// AdminTokenHeader carries the shared secret for operational endpoints
// (refresh sweep).
const AdminTokenHeader = "X-Skybridge-Admin-Token"

// RequireActor ensures the request carries an authenticated account ID.
// Returns 401 when the header is missing or malformed; otherwise injects
// the account ID into the request context.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(ActorHeader)
		if raw == "" {
			writeAuthError(w, "Missing "+ActorHeader+" header")
			return
		}

		accountID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || accountID <= 0 {
			writeAuthError(w, "Invalid account ID in "+ActorHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), actorIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdminToken gates operational endpoints behind a shared secret.
// With an empty configured token the endpoints are disabled outright.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get(AdminTokenHeader) != token {
				writeAuthError(w, "Admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetActorID extracts the authenticated account ID from the request
// context. Returns 0 if not authenticated.
func GetActorID(r *http.Request) int64 {
	id, _ := r.Context().Value(actorIDKey).(int64)
	return id
}

// SetTestActorID sets the account ID in the context for testing purposes
func SetTestActorID(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, actorIDKey, accountID)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   "AuthenticationRequired",
		"message": message,
	}); err != nil {
		log.Printf("Failed to write auth error response: %v", err)
	}
}
