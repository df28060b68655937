// Package controlapi implements the REST API of the Bifrost control plane:
// CRUD over segmentation rules and a rendering of the published document.
package controlapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/publish"
	"github.com/rafaeljc/bifrost/internal/store"
)

// Options tunes the API.
type Options struct {
	// APIKeyHash is the hex SHA-256 of the accepted API key.
	APIKeyHash string
	// SkipAuth disables authentication (tests and local development only).
	SkipAuth bool
	// PublishTimeout bounds the asynchronous push after a write.
	PublishTimeout time.Duration
	// Retry bounds the retries of that push.
	Retry publish.RetryPolicy
	// Logger is the base request logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// API holds dependencies and the router for the control plane.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	rules     store.RuleRepository
	publisher publish.Publisher
	opts      Options

	// publishMu serializes pushes so an older document never overwrites a newer one.
	publishMu sync.Mutex
	inflight  sync.WaitGroup
}

// NewAPI creates the API. publisher receives the full document after every
// successful write; it may be nil when no fast store is configured, in which
// case the syncer alone propagates changes.
//
// Panics if rules is nil or authentication is enabled without a key hash.
func NewAPI(rules store.RuleRepository, publisher publish.Publisher, opts Options) *API {
	if rules == nil {
		panic("controlapi: rule repository cannot be nil")
	}
	if !opts.SkipAuth && opts.APIKeyHash == "" {
		panic("controlapi: apiKeyHash cannot be empty when authentication is enabled")
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	api := &API{
		Router:    chi.NewRouter(),
		rules:     rules,
		publisher: publisher,
		opts:      opts,
	}

	api.configureRoutes()
	return api
}

func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(logger.RequestLogger(a.opts.Logger))
	a.Router.Use(metricsMiddleware)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(a.authenticateAPIKey)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", a.handleListRules)
			r.Put("/", a.handleUpsertRule)

			// Rule paths contain slashes, so they travel in the query string.
			r.Get("/lookup", a.handleGetRule)
			r.Delete("/lookup", a.handleDeleteRule)
		})

		r.Get("/document", a.handleGetDocument)
	})
}

func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// Wait blocks until every in-flight publish has finished.
func (a *API) Wait() {
	a.inflight.Wait()
}

// publishAsync pushes the current document in the background. The push is
// detached from the request; failures are logged and left to the syncer.
func (a *API) publishAsync(log *slog.Logger) {
	if a.publisher == nil {
		return
	}

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.opts.PublishTimeout)
		defer cancel()

		a.publishMu.Lock()
		defer a.publishMu.Unlock()

		rules, err := a.rules.AllRules(ctx)
		if err != nil {
			observability.ControlPlanePublishTotal.WithLabelValues("fail").Inc()
			log.Error("failed to read rules for publish", slog.Any("error", err))
			return
		}

		if err := publish.WithRetry(ctx, log, a.publisher, store.BuildDocument(rules), a.opts.Retry); err != nil {
			observability.ControlPlanePublishTotal.WithLabelValues("fail").Inc()
			log.Error("failed to push document after retries", slog.Any("error", err))
			return
		}
		observability.ControlPlanePublishTotal.WithLabelValues("success").Inc()
	}()
}
