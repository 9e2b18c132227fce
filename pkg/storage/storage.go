// Package storage provides file storage for uploaded export files.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about a stored upload
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for upload storage operations
type Storage interface {
	// Save stores an uploaded file and returns its metadata, including the
	// filesystem path handed to the ingestion pipeline.
	Save(ctx context.Context, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored file
	Open(ctx context.Context, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a stored file
	Delete(ctx context.Context, fileID uuid.UUID) error
}

// Config holds storage configuration
type Config struct {
	LocalPath string
}

// New creates a local-disk storage backend
func New(cfg *Config) (Storage, error) {
	return newLocalStorage(cfg.LocalPath)
}
