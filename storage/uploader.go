package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned by NewCloudflareR2Uploader when no bucket is configured.
var ErrNotConfigured = errors.New("object storage is not configured")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores ranking exports in object storage.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}
