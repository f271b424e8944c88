// Package handler exposes onboarding applications to reviewers.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"onboard/internal/application/models"
	"onboard/internal/platform/middleware"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store reads stored applications.
type Store interface {
	FindByID(ctx context.Context, id int64) (*models.Application, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Application, error)
}

// Handler serves the reviewer endpoints.
type Handler struct {
	store     Store
	logger    *slog.Logger
	tokenHash []byte
}

// New creates a reviewer Handler. tokenHash is the bcrypt hash reviewers'
// X-Admin-Token must match.
func New(store Store, tokenHash []byte, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		logger:    logger,
		tokenHash: tokenHash,
	}
}

// Register mounts the reviewer routes under /admin/applications.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/applications", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(h.tokenHash, h.logger))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	apps, err := h.store.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list applications",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list applications"))
		return
	}

	summaries := make([]models.Summary, 0, len(apps))
	for _, app := range apps {
		summaries = append(summaries, app.ToSummary())
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"applications": summaries})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}

	app, err := h.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "application not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load application",
			"request_id", requestID,
			"application_id", id,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load application"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, app.ToSummary())
}
