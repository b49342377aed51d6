package storage

import (
	"context"
	"io"
)

// Storage is the object store used for generated artifacts (ledger export archives)
type Storage interface {
	// Put stores the object under key
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Delete removes an object. Returns nil if it doesn't exist.
	Delete(ctx context.Context, key string) error

	// GetURL returns the URL for an object key
	GetURL(key string) string
}

// Config holds object storage settings
type Config struct {
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	PublicURL   string
}
