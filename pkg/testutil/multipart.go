package testutil

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
)

// FilePart is one file to place in a multipart form.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// MultipartForm accumulates fields and files in the order they are added.
type MultipartForm struct {
	fields [][2]string
	files  []FilePart
}

// NewMultipartForm starts an empty form.
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{}
}

// Field appends a text field.
func (f *MultipartForm) Field(name, value string) *MultipartForm {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

// File appends a file part.
func (f *MultipartForm) File(part FilePart) *MultipartForm {
	f.files = append(f.files, part)
	return f
}

// Request encodes the form and returns a request with the matching
// Content-Type. Fields are written before files.
func (f *MultipartForm) Request(t *testing.T, method, path string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, kv := range f.fields {
		require.NoError(t, w.WriteField(kv[0], kv[1]), "write field %s", kv[0])
	}
	for _, p := range f.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.Field, p.FileName))
		if p.ContentType != "" {
			h.Set("Content-Type", p.ContentType)
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err, "create part %s", p.Field)
		_, err = pw.Write(p.Data)
		require.NoError(t, err, "write part %s", p.Field)
	}
	require.NoError(t, w.Close(), "close multipart writer")

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
