// Package storage keeps the uploaded bytes of loan documents
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when no object exists under a key
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore persists document bytes by object key
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
