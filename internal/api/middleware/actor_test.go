package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequireActor(t *testing.T) {
	var seenAccountID int64
	handler := RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAccountID = GetActorID(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid actor header passes through", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(ActorHeader, "42")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(42), seenAccountID)
	})

	t.Run("missing header is a 401", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header is a 401", func(t *testing.T) {
		for _, value := range []string{"abc", "-1", "0", "1.5"} {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(ActorHeader, value)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code, "value %q should be rejected", value)
		}
	})
}

func TestRequireAdminToken(t *testing.T) {
	handler := RequireAdminToken("sweep-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("correct token passes through", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set(AdminTokenHeader, "sweep-secret")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong token is a 401", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set(AdminTokenHeader, "guess")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty configured token disables the endpoint", func(t *testing.T) {
		disabled := RequireAdminToken("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set(AdminTokenHeader, "")
		w := httptest.NewRecorder()

		disabled.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("limits per actor within the window", func(t *testing.T) {
		rl := NewRateLimiter(2, time.Minute)
		handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		codes := []int{}
		for i := 0; i < 3; i++ {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(ActorHeader, "7")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("separate actors have separate windows", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Minute)
		handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		for _, actor := range []string{"7", "8"} {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(ActorHeader, actor)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}
