package controlapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
)

// apiKeyHeader carries the API key. "Authorization: Bearer <key>" is accepted too.
const apiKeyHeader = "X-API-Key"

// authenticateAPIKey compares the SHA-256 of the presented key with the
// configured hash in constant time.
func (a *API) authenticateAPIKey(next http.Handler) http.Handler {
	if a.opts.SkipAuth {
		return next
	}

	expected, err := hex.DecodeString(strings.ToLower(a.opts.APIKeyHash))
	if err != nil {
		panic("controlapi: apiKeyHash must be hex encoded")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := presentedKey(r)
		if key == "" {
			unauthorized(w, r, "Missing API key")
			return
		}

		sum := sha256.Sum256([]byte(key))
		if subtle.ConstantTimeCompare(sum[:], expected) != 1 {
			logger.FromContext(r.Context()).Warn("rejected request with invalid API key")
			unauthorized(w, r, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func presentedKey(r *http.Request) string {
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, ErrorResponse{Code: "ERR_UNAUTHORIZED", Message: msg})
}

// metricsMiddleware records latency and status per route pattern. Patterns
// keep label cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		observability.ControlPlaneReqDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		observability.ControlPlaneReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
