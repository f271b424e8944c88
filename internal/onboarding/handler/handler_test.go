package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"onboard/internal/onboarding/handler/mocks"
	"onboard/internal/onboarding/models"
	"onboard/internal/upload"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
	dir     string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	s.dir = filepath.Join(s.T().TempDir(), "uploads")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, upload.NewStore(s.dir, upload.WithMaxFileBytes(64)), logger)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) form() *testutil.MultipartForm {
	return testutil.NewMultipartForm().
		Field(models.FieldCertificatePassword, "pw").
		Field(models.FieldFullName, "Jean Mbarga").
		Field(models.FieldEmailAddress, "jean@example.cm").
		Field(models.FieldSignatureBase64, "c2ln").
		File(testutil.FilePart{Field: "idCard", FileName: "id.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
}

func (s *HandlerSuite) TestWelcome() {
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/"))

	testutil.AssertStatusOK(s.T(), rec)
	testutil.AssertJSONContains(s.T(), rec, "message", "Welcome to the ANTIC Onboarding API! The server is running.")
}

func (s *HandlerSuite) TestSubmitCreated() {
	s.service.EXPECT().Handle(gomock.Any(), gomock.Any(), models.Form{
		CertificatePassword: "pw",
		FullName:            "Jean Mbarga",
		EmailAddress:        "jean@example.cm",
		SignatureBase64:     "c2ln",
	}).DoAndReturn(func(_ context.Context, files upload.Files, _ models.Form) (*models.Result, error) {
		s.Require().NotNil(files.Get(upload.FieldIDCard))
		s.Require().NotNil(files.Get(upload.FieldCertificate))
		return &models.Result{ApplicationID: 12}, nil
	})
	req := s.form().
		File(testutil.FilePart{Field: "certificate", FileName: "me.p12", Data: []byte("p12")}).
		Request(s.T(), http.MethodPost, "/api/onboard")

	rec := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rec, http.StatusCreated)
	body := testutil.UnmarshalResponse[models.SubmitResponse](s.T(), rec)
	s.Equal("Application submitted and validated successfully!", body.Message)
	s.Equal(int64(12), body.ApplicationID)
}

func (s *HandlerSuite) TestUploadRejectionSkipsService() {
	for _, tc := range []struct {
		name string
		part testutil.FilePart
		want string
	}{
		{
			name: "text file as certificate",
			part: testutil.FilePart{Field: "certificate", FileName: "cert.txt", ContentType: "text/plain", Data: []byte("x")},
			want: "Invalid file type for Certificate. Only .pfx and .p12 files are allowed.",
		},
		{
			name: "oversize certificate",
			part: testutil.FilePart{Field: "certificate", FileName: "big.pfx", Data: []byte(strings.Repeat("a", 65))},
			want: "File too large.",
		},
	} {
		s.Run(tc.name, func() {
			req := s.form().File(tc.part).Request(s.T(), http.MethodPost, "/api/onboard")

			rec := testutil.DoRequest(s.router, req)

			testutil.AssertStatus(s.T(), rec, http.StatusBadRequest)
			body := testutil.UnmarshalErrorResponse(s.T(), rec)
			s.Equal("Application submission failed.", body["message"])
			s.Equal(tc.want, body["error"])
		})
	}
}

func (s *HandlerSuite) TestServiceErrorsMapToStatus() {
	for _, tc := range []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing input",
			err:        dErrors.New(dErrors.CodeMissingInput, "ID Card or Certificate file is missing."),
			wantStatus: http.StatusBadRequest,
			wantError:  "ID Card or Certificate file is missing.",
		},
		{
			name:       "invalid certificate",
			err:        dErrors.New(dErrors.CodeInvalidCertificate, "Certificate validation failed: Certificate is expired or not yet valid."),
			wantStatus: http.StatusBadRequest,
			wantError:  "Certificate validation failed: Certificate is expired or not yet valid.",
		},
		{
			name:       "persistence failure",
			err:        dErrors.New(dErrors.CodePersistence, "failed to save application"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	} {
		s.Run(tc.name, func() {
			s.service.EXPECT().Handle(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tc.err)
			req := s.form().Request(s.T(), http.MethodPost, "/api/onboard")

			rec := testutil.DoRequest(s.router, req)

			testutil.AssertStatusAndError(s.T(), rec, tc.wantStatus, tc.wantError)
		})
	}
}

func (s *HandlerSuite) TestNonMultipartRequest() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/onboard", map[string]string{"fullName": "Jean"})

	rec := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "Request must be multipart/form-data.")
}
