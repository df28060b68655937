package controlapi

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/rafaeljc/bifrost/internal/logger"
	"github.com/rafaeljc/bifrost/internal/store"
)

// handleListRules processes GET /api/v1/rules?page=&page_size=.
func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	page, err := parseOptionalInt(r, "page", 1)
	if err != nil {
		badQuery(w, r, err)
		return
	}
	pageSize, err := parseOptionalInt(r, "page_size", 10)
	if err != nil {
		badQuery(w, r, err)
		return
	}

	// Out-of-bounds values are clamped, not rejected.
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	rules, totalItems, err := a.rules.ListRules(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		log.Error("failed to list rules from db", slog.Any("error", err))
		internalError(w, r, "Failed to list rules")
		return
	}

	dtos := make([]Rule, len(rules))
	for i, rule := range rules {
		dtos[i] = ruleFromStore(rule)
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(pageSize)))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, PaginatedResponse{
		Data: dtos,
		Pagination: Pagination{
			TotalItems:  totalItems,
			TotalPages:  totalPages,
			CurrentPage: page,
			PageSize:    pageSize,
		},
	})
}

// handleGetRule processes GET /api/v1/rules/lookup?path=.
func (a *API) handleGetRule(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	rule, err := a.rules.GetRule(r.Context(), path)
	if errors.Is(err, store.ErrRuleNotFound) {
		notFound(w, r, path)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to get rule from db", slog.String("path", path), slog.Any("error", err))
		internalError(w, r, "Failed to get rule")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ruleFromStore(rule))
}

// handleUpsertRule processes PUT /api/v1/rules. It answers 201 when the path
// had no rule and 200 when an existing rule was replaced.
func (a *API) handleUpsertRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req UpsertRuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.Any("error", err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	rule := req.toStore()
	created, err := a.rules.UpsertRule(r.Context(), rule)
	if err != nil {
		log.Error("failed to upsert rule in db", slog.String("path", rule.Path), slog.Any("error", err))
		internalError(w, r, "Failed to save rule")
		return
	}

	a.publishAsync(log)

	log.Info("rule saved",
		slog.String("path", rule.Path),
		slog.Int("segment", rule.SplitThreshold),
		slog.Bool("created", created),
	)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	render.Status(r, status)
	render.JSON(w, r, ruleFromStore(rule))
}

// handleDeleteRule processes DELETE /api/v1/rules/lookup?path=.
func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	err := a.rules.DeleteRule(r.Context(), path)
	if errors.Is(err, store.ErrRuleNotFound) {
		notFound(w, r, path)
		return
	}
	if err != nil {
		log.Error("failed to delete rule from db", slog.String("path", path), slog.Any("error", err))
		internalError(w, r, "Failed to delete rule")
		return
	}

	a.publishAsync(log)

	log.Info("rule deleted", slog.String("path", path))
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDocument renders every rule in the format the edge providers read.
func (a *API) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rules, err := a.rules.AllRules(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to read rules for document", slog.Any("error", err))
		internalError(w, r, "Failed to build document")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, store.BuildDocument(rules))
}

// --- Private Helpers ---

// parseOptionalInt returns defaultValue when key is absent and an error only
// when it is present but malformed.
func parseOptionalInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}

func requirePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" || !strings.HasPrefix(path, "/") {
		badQuery(w, r, errors.New("parameter 'path' is required and must start with '/'"))
		return "", false
	}
	return path, true
}

func badQuery(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_QUERY_PARAM", Message: err.Error()})
}

func notFound(w http.ResponseWriter, r *http.Request, path string) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrorResponse{Code: "ERR_NOT_FOUND", Message: fmt.Sprintf("No rule for path %q", path)})
}

func internalError(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: msg})
}
