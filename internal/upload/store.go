// Package upload receives the onboarding form's files and writes them to a
// local storage directory under unique names.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

const maxFieldBytes int64 = 1 << 20

// UploadedFile is one stored part.
type UploadedFile struct {
	Field        Field
	Path         string
	MimeType     string
	OriginalName string
	Size         int64
}

// Files holds at most one stored file per field.
type Files map[Field]*UploadedFile

// Get returns the file stored for field, or nil.
func (f Files) Get(field Field) *UploadedFile {
	if f == nil {
		return nil
	}
	return f[field]
}

// Remove deletes every stored file and returns the first error seen.
func (f Files) Remove() error {
	var first error
	for _, file := range f {
		if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) && first == nil {
			first = err
		}
	}
	return first
}

// Store writes accepted files into dir. It is safe for concurrent use.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
	suffix   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFileBytes overrides the per-file size ceiling.
func WithMaxFileBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithLogger sets the logger used for cleanup warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSuffix overrides the random component of stored file names.
func WithSuffix(fn func() string) Option {
	return func(s *Store) {
		s.suffix = fn
	}
}

// NewStore creates a Store rooted at dir. The directory is created on first use.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:      dir,
		maxBytes: DefaultMaxFileBytes,
		logger:   slog.Default(),
		suffix:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// MaxFileBytes returns the per-file size ceiling.
func (s *Store) MaxFileBytes() int64 {
	return s.maxBytes
}

// Receive streams the multipart body of r. File parts are checked with Accept and
// written to disk; other parts are returned as form values. When any part is
// rejected every file already written for this request is removed.
func (s *Store) Receive(ctx context.Context, r *http.Request) (Files, map[string]string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "Request must be multipart/form-data.")
	}

	files := Files{}
	values := map[string]string{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.discard(ctx, files)
			return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "Malformed multipart body.")
		}

		if part.FileName() == "" {
			value, err := readValue(part)
			_ = part.Close()
			if err != nil {
				s.discard(ctx, files)
				return nil, nil, err
			}
			if _, seen := values[part.FormName()]; !seen {
				values[part.FormName()] = value
			}
			continue
		}

		file, err := s.storePart(ctx, part, files)
		_ = part.Close()
		if err != nil {
			s.discard(ctx, files)
			return nil, nil, err
		}
		files[file.Field] = file
	}
	return files, values, nil
}

func (s *Store) storePart(ctx context.Context, part *multipart.Part, files Files) (*UploadedFile, error) {
	field := Field(part.FormName())
	mimeType := part.Header.Get("Content-Type")
	name := part.FileName()

	if err := Accept(field, mimeType, name); err != nil {
		return nil, err
	}
	if files.Get(field) != nil {
		return nil, dErrors.New(dErrors.CodeUploadRejected, fmt.Sprintf("Only one file is allowed for field %s.", field))
	}
	if err := s.ensureDir(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to prepare upload directory")
	}

	path := StoragePath(s.dir, field, name, requestcontext.Now(ctx), s.suffix())
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store upload")
	}

	n, copyErr := io.Copy(out, io.LimitReader(part, s.maxBytes+1))
	closeErr := out.Close()
	switch {
	case copyErr != nil:
		s.remove(ctx, path)
		var maxErr *http.MaxBytesError
		if errors.As(copyErr, &maxErr) {
			return nil, dErrors.Wrap(copyErr, dErrors.CodeUploadRejected, "File too large.")
		}
		return nil, dErrors.Wrap(copyErr, dErrors.CodeBadRequest, "Upload interrupted.")
	case n > s.maxBytes:
		s.remove(ctx, path)
		return nil, dErrors.New(dErrors.CodeUploadRejected, "File too large.")
	case closeErr != nil:
		s.remove(ctx, path)
		return nil, dErrors.Wrap(closeErr, dErrors.CodeInternal, "failed to store upload")
	}

	return &UploadedFile{
		Field:        field,
		Path:         path,
		MimeType:     mimeType,
		OriginalName: name,
		Size:         n,
	}, nil
}

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.dir, 0o700)
}

func (s *Store) discard(ctx context.Context, files Files) {
	for _, file := range files {
		s.remove(ctx, file.Path)
	}
}

func (s *Store) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WarnContext(ctx, "failed to remove rejected upload",
			"request_id", requestcontext.RequestID(ctx),
			"path", path,
			"error", err,
		)
	}
}

func readValue(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", dErrors.Wrap(err, dErrors.CodeUploadRejected, "Request body too large.")
		}
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "Malformed multipart body.")
	}
	if int64(len(data)) > maxFieldBytes {
		return "", dErrors.New(dErrors.CodeUploadRejected, fmt.Sprintf("Field %s is too large.", part.FormName()))
	}
	return string(data), nil
}
