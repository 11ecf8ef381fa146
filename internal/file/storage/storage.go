// Package storage puts uploaded objects on local disk or in an S3 bucket.
package storage

import (
	"context"
	"io"
)

// Storage stores and removes objects by key.
type Storage interface {
	// Put writes size bytes from r under key and returns the path recorded in file metadata.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object at path. A missing object is not an error.
	Delete(ctx context.Context, path string) error
	// Type is the storage_type recorded with each file.
	Type() string
}
