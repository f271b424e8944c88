package service

import (
	"errors"
	"os"
	"sync"

	"onboard/internal/upload"
)

// certificateLease owns the uploaded certificate container for the duration
// of a request. release deletes it at most once.
type certificateLease struct {
	path string
	once sync.Once
	err  error
}

func newCertificateLease(file *upload.UploadedFile) *certificateLease {
	if file == nil {
		return &certificateLease{}
	}
	return &certificateLease{path: file.Path}
}

func (l *certificateLease) release() error {
	l.once.Do(func() {
		if l.path == "" {
			return
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.err = err
		}
	})
	return l.err
}
