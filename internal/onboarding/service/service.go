// Package service runs one onboarding submission: it checks the request,
// validates the certificate container, persists the application and always
// deletes the uploaded container before returning.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appmodels "onboard/internal/application/models"
	"onboard/internal/audit"
	"onboard/internal/certificate"
	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/upload"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Validator,Store,AuditPublisher

type Validator interface {
	Validate(ctx context.Context, path, password string) (*certificate.Identity, error)
}

type Store interface {
	Insert(ctx context.Context, sub appmodels.Submission) (int64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	msgFilesMissing  = "ID Card or Certificate file is missing."
	msgFieldsMissing = "Missing required form fields (password, name, email, or signature)."
)

// DefaultDBTimeout bounds the repository insert when no option overrides it.
const DefaultDBTimeout = 5 * time.Second

// Service orchestrates a submission. It is safe for concurrent use.
type Service struct {
	validator Validator
	store     Store
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	dbTimeout time.Duration
	tracer    trace.Tracer
}

type Option func(*Service)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDBTimeout bounds the repository insert.
func WithDBTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dbTimeout = d
		}
	}
}

func New(validator Validator, store Store, opts ...Option) *Service {
	s := &Service{
		validator: validator,
		store:     store,
		logger:    slog.Default(),
		dbTimeout: DefaultDBTimeout,
		tracer:    otel.Tracer("onboard/onboarding"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one submission. The certificate container in files is
// deleted on every path; the ID card is kept for review.
func (s *Service) Handle(ctx context.Context, files upload.Files, form models.Form) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.Handle")
	defer span.End()

	lease := newCertificateLease(files.Get(upload.FieldCertificate))
	defer s.release(ctx, lease)

	result, err := s.handle(ctx, files, form)
	s.recordOutcome(ctx, span, result, err)
	return result, err
}

func (s *Service) handle(ctx context.Context, files upload.Files, form models.Form) (*models.Result, error) {
	idCard := files.Get(upload.FieldIDCard)
	cert := files.Get(upload.FieldCertificate)
	if idCard == nil || cert == nil {
		return nil, dErrors.New(dErrors.CodeMissingInput, msgFilesMissing)
	}
	if !form.Complete() {
		return nil, dErrors.New(dErrors.CodeMissingInput, msgFieldsMissing)
	}

	start := time.Now()
	identity, err := s.validator.Validate(ctx, cert.Path, form.CertificatePassword)
	s.metrics.ObserveValidationLatency(time.Since(start))
	if err != nil {
		return nil, validationFailure(err)
	}

	sub := appmodels.Submission{
		FullName:          form.FullName,
		EmailAddress:      form.EmailAddress,
		SignatureBase64:   form.SignatureBase64,
		IDCardPath:        idCard.Path,
		SubjectCN:         identity.SubjectCN(),
		IssuerCN:          identity.IssuerCN(),
		SerialNumber:      identity.SerialNumber,
		ValidFrom:         identity.ValidFrom,
		ValidTo:           identity.ValidTo,
		SubjectAttributes: certificate.Strings(identity.Subject),
		IssuerAttributes:  certificate.Strings(identity.Issuer),
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()
	id, err := s.store.Insert(insertCtx, sub)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "saving the application timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to save application")
	}

	return &models.Result{ApplicationID: id, Identity: identity}, nil
}

// validationFailure turns a validator error into a coded error that keeps the
// validator's message for the caller.
func validationFailure(err error) error {
	kind, ok := certificate.KindOf(err)
	switch {
	case !ok:
		return dErrors.Wrap(err, dErrors.CodeInternal, "certificate validation failed unexpectedly")
	case kind == certificate.KindTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, err.Error())
	default:
		return dErrors.Wrap(err, dErrors.CodeInvalidCertificate, err.Error())
	}
}

func (s *Service) release(ctx context.Context, lease *certificateLease) {
	if err := lease.release(); err != nil {
		s.metrics.IncrementCleanupFailures()
		s.logger.WarnContext(ctx, "failed to delete certificate file",
			"request_id", requestcontext.RequestID(ctx),
			"path", lease.path,
			"error", err,
		)
	}
}

func (s *Service) recordOutcome(ctx context.Context, span trace.Span, result *models.Result, err error) {
	requestID := requestcontext.RequestID(ctx)

	if err == nil {
		span.SetAttributes(attribute.Int64("application.id", result.ApplicationID))
		s.metrics.IncrementOutcome("accepted", "")
		s.logger.InfoContext(ctx, "application submitted",
			"request_id", requestID,
			"application_id", result.ApplicationID,
			"serial_number", result.Identity.SerialNumber,
		)
		s.emit(ctx, audit.Event{
			Type:          audit.EventApplicationSubmitted,
			ApplicationID: result.ApplicationID,
			SubjectCN:     result.Identity.SubjectCN(),
			IssuerCN:      result.Identity.IssuerCN(),
			SerialNumber:  result.Identity.SerialNumber,
		})
		return
	}

	kind := failureKind(err)
	outcome := "rejected"
	if de, ok := dErrors.As(err); ok && de.Category() == dErrors.ServerFault {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.logger.ErrorContext(ctx, "application submission failed",
			"request_id", requestID,
			"kind", kind,
			"error", err,
		)
	} else {
		span.SetAttributes(attribute.String("onboarding.rejection_kind", kind))
		s.logger.InfoContext(ctx, "application rejected",
			"request_id", requestID,
			"kind", kind,
			"reason", err.Error(),
		)
	}
	s.metrics.IncrementOutcome(outcome, kind)
	s.emit(ctx, audit.Event{
		Type:          audit.EventApplicationRejected,
		RejectionKind: kind,
		Reason:        err.Error(),
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"event_type", event.Type,
			"error", err,
		)
	}
}

// failureKind prefers the certificate failure kind over the coarser error code.
func failureKind(err error) string {
	if kind, ok := certificate.KindOf(err); ok {
		return string(kind)
	}
	if de, ok := dErrors.As(err); ok {
		return string(de.Code)
	}
	return "unknown"
}
