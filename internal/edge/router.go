package edge

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rafaeljc/bifrost/internal/logger"
)

// NewRouter mounts proxy behind the shared middleware stack. Every path and
// method reaches the proxy; scoping is the coordinator's business.
func NewRouter(proxy http.Handler, log *slog.Logger) *chi.Mux {
	if proxy == nil {
		panic("edge: proxy handler cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Handle("/", proxy)
	r.Handle("/*", proxy)
	return r
}
