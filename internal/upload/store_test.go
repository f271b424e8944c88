package upload

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
	"onboard/pkg/testutil"
)

func TestAccept(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		mimeType string
		fileName string
		wantErr  string
	}{
		{name: "jpeg id card", field: FieldIDCard, mimeType: "image/jpeg", fileName: "id.jpg"},
		{name: "png id card", field: FieldIDCard, mimeType: "image/png", fileName: "id.png"},
		{name: "pdf id card", field: FieldIDCard, mimeType: "application/pdf", fileName: "id.pdf"},
		{name: "id card with parameters", field: FieldIDCard, mimeType: "application/pdf; name=id.pdf", fileName: "id.pdf"},
		{name: "zip id card", field: FieldIDCard, mimeType: "application/zip", fileName: "id.zip", wantErr: "Only JPG, PNG, and PDF"},
		{name: "id card without type", field: FieldIDCard, mimeType: "", fileName: "id.jpg", wantErr: "Only JPG, PNG, and PDF"},
		{name: "pfx certificate", field: FieldCertificate, mimeType: "application/x-pkcs12", fileName: "me.pfx"},
		{name: "upper-case p12 certificate", field: FieldCertificate, mimeType: "application/octet-stream", fileName: "ME.P12"},
		{name: "txt certificate", field: FieldCertificate, mimeType: "application/x-pkcs12", fileName: "me.txt", wantErr: "Only .pfx and .p12"},
		{name: "certificate without extension", field: FieldCertificate, fileName: "pfx", wantErr: "Only .pfx and .p12"},
		{name: "unexpected field", field: Field("selfie"), mimeType: "image/png", fileName: "me.png", wantErr: "Unexpected file field."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Accept(tt.field, tt.mimeType, tt.fileName)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUploadRejected))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStoragePath(t *testing.T) {
	now := time.UnixMilli(1718000000123)

	got := StoragePath("uploads", FieldCertificate, "../../etc/My Cert.P12", now, "abc")
	assert.Equal(t, filepath.Join("uploads", "certificate-1718000000123-abc.P12"), got)

	got = StoragePath("uploads", FieldIDCard, "scan", now, "xyz")
	assert.Equal(t, filepath.Join("uploads", "idCard-1718000000123-xyz"), got)
}

type receiveFixture struct {
	dir   string
	store *Store
}

func newReceiveFixture(t *testing.T, opts ...Option) receiveFixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	return receiveFixture{dir: dir, store: NewStore(dir, opts...)}
}

func (f receiveFixture) entries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func idCardPart() testutil.FilePart {
	return testutil.FilePart{Field: "idCard", FileName: "front.png", ContentType: "image/png", Data: []byte("\x89PNG fake image")}
}

func certificatePart() testutil.FilePart {
	return testutil.FilePart{Field: "certificate", FileName: "client.pfx", ContentType: "application/x-pkcs12", Data: []byte("pkcs12 bytes")}
}

func TestReceive(t *testing.T) {
	testutil.Given(t, "a well-formed onboarding form", func(t *testing.T) {
		f := newReceiveFixture(t, WithSuffix(func() string { return "fixed" }))
		req := testutil.NewMultipartForm().
			Field("fullName", "Jean Mbarga").
			Field("emailAddress", "jean@example.cm").
			File(idCardPart()).
			File(certificatePart()).
			Request(t, http.MethodPost, "/api/onboard")
		ctx := requestcontext.WithTime(context.Background(), time.UnixMilli(1718000000000))

		files, values, err := f.store.Receive(ctx, req)

		testutil.Then(t, "both files are stored under generated names", func(t *testing.T) {
			require.NoError(t, err)
			idCard := files.Get(FieldIDCard)
			cert := files.Get(FieldCertificate)
			require.NotNil(t, idCard)
			require.NotNil(t, cert)

			assert.Equal(t, filepath.Join(f.dir, "idCard-1718000000000-fixed.png"), idCard.Path)
			assert.Equal(t, filepath.Join(f.dir, "certificate-1718000000000-fixed.pfx"), cert.Path)
			assert.Equal(t, "image/png", idCard.MimeType)
			assert.Equal(t, "client.pfx", cert.OriginalName)
			assert.Equal(t, int64(len("pkcs12 bytes")), cert.Size)

			data, readErr := os.ReadFile(cert.Path)
			require.NoError(t, readErr)
			assert.Equal(t, "pkcs12 bytes", string(data))
		})

		testutil.Then(t, "text fields are returned as values", func(t *testing.T) {
			assert.Equal(t, "Jean Mbarga", values["fullName"])
			assert.Equal(t, "jean@example.cm", values["emailAddress"])
		})

		testutil.Then(t, "the storage directory is private", func(t *testing.T) {
			info, statErr := os.Stat(f.dir)
			require.NoError(t, statErr)
			assert.True(t, info.IsDir())
			assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
		})
	})

	testutil.Given(t, "a form without files", func(t *testing.T) {
		f := newReceiveFixture(t)
		req := testutil.NewMultipartForm().Field("fullName", "Jean").Request(t, http.MethodPost, "/")

		files, values, err := f.store.Receive(context.Background(), req)

		testutil.Then(t, "nothing is written and the directory is not created", func(t *testing.T) {
			require.NoError(t, err)
			assert.Nil(t, files.Get(FieldIDCard))
			assert.Nil(t, files.Get(FieldCertificate))
			assert.Equal(t, "Jean", values["fullName"])
			_, statErr := os.Stat(f.dir)
			assert.True(t, os.IsNotExist(statErr))
		})
	})
}

func TestReceiveRejections(t *testing.T) {
	zipIDCard := testutil.FilePart{Field: "idCard", FileName: "id.zip", ContentType: "application/zip", Data: []byte("PK")}
	txtCertificate := testutil.FilePart{Field: "certificate", FileName: "cert.txt", ContentType: "text/plain", Data: []byte("hello")}

	tests := []struct {
		name    string
		parts   []testutil.FilePart
		opts    []Option
		code    dErrors.Code
		wantMsg string
	}{
		{
			name:    "zip id card after a stored certificate",
			parts:   []testutil.FilePart{certificatePart(), zipIDCard},
			code:    dErrors.CodeUploadRejected,
			wantMsg: "Invalid file type for ID Card",
		},
		{
			name:    "txt certificate after a stored id card",
			parts:   []testutil.FilePart{idCardPart(), txtCertificate},
			code:    dErrors.CodeUploadRejected,
			wantMsg: "Invalid file type for Certificate",
		},
		{
			name:    "unexpected file field",
			parts:   []testutil.FilePart{idCardPart(), {Field: "selfie", FileName: "me.png", ContentType: "image/png", Data: []byte("x")}},
			code:    dErrors.CodeUploadRejected,
			wantMsg: "Unexpected file field.",
		},
		{
			name:    "second certificate",
			parts:   []testutil.FilePart{certificatePart(), certificatePart()},
			code:    dErrors.CodeUploadRejected,
			wantMsg: "Only one file is allowed for field certificate.",
		},
		{
			name:    "oversize certificate",
			parts:   []testutil.FilePart{idCardPart(), {Field: "certificate", FileName: "big.p12", Data: []byte(strings.Repeat("a", 33))}},
			opts:    []Option{WithMaxFileBytes(32)},
			code:    dErrors.CodeUploadRejected,
			wantMsg: "File too large.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReceiveFixture(t, tt.opts...)
			form := testutil.NewMultipartForm().Field("fullName", "Jean")
			for _, p := range tt.parts {
				form.File(p)
			}

			files, values, err := f.store.Receive(context.Background(), form.Request(t, http.MethodPost, "/"))

			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, tt.code), "unexpected code for %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Nil(t, files)
			assert.Nil(t, values)
			assert.Empty(t, f.entries(t), "rejected uploads must leave no files behind")
		})
	}
}

func TestReceiveAcceptsFileAtLimit(t *testing.T) {
	f := newReceiveFixture(t, WithMaxFileBytes(32))
	req := testutil.NewMultipartForm().
		File(testutil.FilePart{Field: "certificate", FileName: "edge.p12", Data: []byte(strings.Repeat("a", 32))}).
		Request(t, http.MethodPost, "/")

	files, _, err := f.store.Receive(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, int64(32), files.Get(FieldCertificate).Size)
}

func TestReceiveRequiresMultipart(t *testing.T) {
	f := newReceiveFixture(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/", map[string]string{"fullName": "Jean"})

	_, _, err := f.store.Receive(context.Background(), req)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestFilesRemove(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "a.pfx", []byte("x"))
	files := Files{
		FieldCertificate: {Field: FieldCertificate, Path: path},
		FieldIDCard:      {Field: FieldIDCard, Path: filepath.Join(dir, "already-gone.png")},
	}

	require.NoError(t, files.Remove())
	assert.False(t, testutil.FileExists(path))
}
