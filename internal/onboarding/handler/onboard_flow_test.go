package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/application/store"
	"onboard/internal/audit"
	"onboard/internal/certificate"
	"onboard/internal/onboarding/handler"
	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/upload"
	"onboard/pkg/testutil"
)

type flow struct {
	router http.Handler
	apps   *store.InMemoryStore
	events *audit.InMemoryStore
	dir    string
}

func newFlow(t *testing.T) flow {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := filepath.Join(t.TempDir(), "uploads")
	apps := store.NewInMemoryStore()
	events := audit.NewInMemoryStore()

	svc := service.New(certificate.NewValidator(), apps,
		service.WithAuditPublisher(audit.NewPublisher(events)),
		service.WithMetrics(metrics.New(prometheus.NewRegistry())),
		service.WithLogger(logger),
	)
	r := chi.NewRouter()
	handler.New(svc, upload.NewStore(dir), logger).Register(r)
	return flow{router: r, apps: apps, events: events, dir: dir}
}

func (f flow) storedFiles(t *testing.T, prefix string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.dir, prefix+"*"))
	require.NoError(t, err)
	return matches
}

func submission(t *testing.T, pfx []byte, password string) *http.Request {
	return testutil.NewMultipartForm().
		Field(models.FieldCertificatePassword, password).
		Field(models.FieldFullName, "Aminatou Bello").
		Field(models.FieldEmailAddress, "aminatou@example.cm").
		Field(models.FieldSignatureBase64, "c2lnbmF0dXJl").
		File(testutil.FilePart{Field: "idCard", FileName: "id.png", ContentType: "image/png", Data: []byte("\x89PNG")}).
		File(testutil.FilePart{Field: "certificate", FileName: "client.pfx", ContentType: "application/x-pkcs12", Data: pfx}).
		Request(t, http.MethodPost, "/api/onboard")
}

func TestOnboardingFlow(t *testing.T) {
	testutil.Given(t, "a CamGovCA certificate and its password", func(t *testing.T) {
		f := newFlow(t)
		pfx := testutil.NewPFX(t, testutil.PFXOptions{
			SubjectCN: "Aminatou Bello",
			NotBefore: time.Now().Add(-time.Hour),
			NotAfter:  time.Now().AddDate(1, 0, 0),
			Password:  "correct horse",
		})

		rec := testutil.DoRequest(f.router, submission(t, pfx.Data, "correct horse"))

		testutil.Then(t, "the application is created", func(t *testing.T) {
			testutil.AssertStatus(t, rec, http.StatusCreated)
			body := testutil.UnmarshalResponse[models.SubmitResponse](t, rec)
			assert.Equal(t, "Application submitted and validated successfully!", body.Message)
			assert.Positive(t, body.ApplicationID)

			app, err := f.apps.FindByID(t.Context(), body.ApplicationID)
			require.NoError(t, err)
			assert.Equal(t, "CamGovCA", app.IssuerCN)
			assert.Equal(t, "Aminatou Bello", app.SubjectCN)
		})

		testutil.Then(t, "the certificate is deleted and the ID card kept", func(t *testing.T) {
			assert.Empty(t, f.storedFiles(t, "certificate-"))
			idCards := f.storedFiles(t, "idCard-")
			require.Len(t, idCards, 1)
			app, err := f.apps.FindByID(t.Context(), 1)
			require.NoError(t, err)
			assert.Equal(t, idCards[0], app.IDCardPath)
		})

		testutil.Then(t, "a submitted event is recorded", func(t *testing.T) {
			events := f.events.ListByType(audit.EventApplicationSubmitted)
			require.Len(t, events, 1)
			assert.Equal(t, int64(1), events[0].ApplicationID)
		})
	})

	testutil.Given(t, "a certificate submitted with the wrong password", func(t *testing.T) {
		f := newFlow(t)
		pfx := testutil.NewPFX(t, testutil.PFXOptions{Password: "right"})

		rec := testutil.DoRequest(f.router, submission(t, pfx.Data, "wrong"))

		testutil.Then(t, "the request fails with a decrypt error", func(t *testing.T) {
			testutil.AssertStatus(t, rec, http.StatusBadRequest)
			body := testutil.UnmarshalErrorResponse(t, rec)
			assert.Equal(t, "Application submission failed.", body["message"])
			assert.Contains(t, body["error"], "decrypt")
		})

		testutil.Then(t, "nothing is stored and the certificate is removed", func(t *testing.T) {
			assert.Zero(t, f.apps.Len())
			assert.Empty(t, f.storedFiles(t, "certificate-"))
			assert.Len(t, f.storedFiles(t, "idCard-"), 1)
		})

		testutil.Then(t, "a rejection event names the failure kind", func(t *testing.T) {
			events := f.events.ListByType(audit.EventApplicationRejected)
			require.Len(t, events, 1)
			assert.Equal(t, string(certificate.KindMalformedOrWrongPassword), events[0].RejectionKind)
		})
	})

	testutil.Given(t, "a zip file as the ID card", func(t *testing.T) {
		f := newFlow(t)
		pfx := testutil.NewPFX(t, testutil.PFXOptions{Password: "pw"})
		req := testutil.NewMultipartForm().
			Field(models.FieldCertificatePassword, "pw").
			File(testutil.FilePart{Field: "certificate", FileName: "client.p12", Data: pfx.Data}).
			File(testutil.FilePart{Field: "idCard", FileName: "id.zip", ContentType: "application/zip", Data: []byte("PK")}).
			Request(t, http.MethodPost, "/api/onboard")

		rec := testutil.DoRequest(f.router, req)

		testutil.Then(t, "the upload is refused before any validation", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "Invalid file type for ID Card. Only JPG, PNG, and PDF are allowed.")
			assert.Empty(t, f.events.List(), "the orchestrator never ran")
			entries, err := os.ReadDir(f.dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	})
}
