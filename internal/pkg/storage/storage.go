package storage

import (
	"context"
	"io"
)

// ObjectStore is the minimal object storage surface used for ledger statements
type ObjectStore interface {
	// Put stores an object under key
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// GetURL returns the URL an operator can fetch the object from
	GetURL(key string) string
}

// Config describes an S3-compatible bucket (AWS S3 or MinIO)
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}
