package upload

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	dErrors "onboard/pkg/domain-errors"
)

// Field names the multipart file fields the onboarding form carries.
type Field string

const (
	FieldIDCard      Field = "idCard"
	FieldCertificate Field = "certificate"
)

// DefaultMaxFileBytes is the per-file ceiling applied when no option overrides it.
const DefaultMaxFileBytes int64 = 5 << 20

var idCardTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"application/pdf": {},
}

var certificateExtensions = map[string]struct{}{
	".pfx": {},
	".p12": {},
}

// Accept decides whether a file announced under field may be stored.
// It looks only at metadata; content is never sniffed.
func Accept(field Field, mimeType, originalName string) error {
	switch field {
	case FieldIDCard:
		mediaType, _, err := mime.ParseMediaType(mimeType)
		if err != nil {
			mediaType = strings.ToLower(strings.TrimSpace(mimeType))
		}
		if _, ok := idCardTypes[mediaType]; !ok {
			return dErrors.New(dErrors.CodeUploadRejected, "Invalid file type for ID Card. Only JPG, PNG, and PDF are allowed.")
		}
		return nil
	case FieldCertificate:
		ext := strings.ToLower(filepath.Ext(originalName))
		if _, ok := certificateExtensions[ext]; !ok {
			return dErrors.New(dErrors.CodeUploadRejected, "Invalid file type for Certificate. Only .pfx and .p12 files are allowed.")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeUploadRejected, "Unexpected file field.")
	}
}

// StoragePath names the file a part is written to: <dir>/<field>-<unixMillis>-<suffix><ext>.
// The extension is taken from the client-supplied name; the rest of that name is discarded.
func StoragePath(dir string, field Field, originalName string, now time.Time, suffix string) string {
	ext := filepath.Ext(filepath.Base(originalName))
	name := fmt.Sprintf("%s-%d-%s%s", field, now.UnixMilli(), suffix, ext)
	return filepath.Join(dir, name)
}
