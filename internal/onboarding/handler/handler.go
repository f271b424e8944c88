// Package handler serves the public onboarding endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboard/internal/onboarding/models"
	"onboard/internal/upload"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

// Service runs one submission after its files are stored.
type Service interface {
	Handle(ctx context.Context, files upload.Files, form models.Form) (*models.Result, error)
}

// Receiver stores the multipart upload of a request.
type Receiver interface {
	Receive(ctx context.Context, r *http.Request) (upload.Files, map[string]string, error)
	MaxFileBytes() int64
}

// formOverhead is the allowance for text fields and multipart framing on top
// of the two file parts.
const formOverhead int64 = 1 << 20

type Handler struct {
	service  Service
	uploads  Receiver
	logger   *slog.Logger
	submitMW []func(http.Handler) http.Handler
}

// New creates the onboarding handler. submitMW wraps only the submission route.
func New(service Service, uploads Receiver, logger *slog.Logger, submitMW ...func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:  service,
		uploads:  uploads,
		logger:   logger,
		submitMW: submitMW,
	}
}

// Register registers the onboarding routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleWelcome)
	r.With(h.submitMW...).Post("/api/onboard", h.handleSubmit)
}

func (h *Handler) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.WelcomeResponse{Message: models.WelcomeMessage})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, 2*h.uploads.MaxFileBytes()+formOverhead)
	files, values, err := h.uploads.Receive(ctx, r)
	if err != nil {
		h.logger.WarnContext(ctx, "upload rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteFailure(w, models.SubmitFailureMessage, err)
		return
	}

	result, err := h.service.Handle(ctx, files, models.FormFromValues(values))
	if err != nil {
		httputil.WriteFailure(w, models.SubmitFailureMessage, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.SubmitResponse{
		Message:       models.SubmitSuccessMessage,
		ApplicationID: result.ApplicationID,
	})
}
