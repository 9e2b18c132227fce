package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// localStorage stores uploads on the local filesystem. Each file is written
// under root/<id><ext> with a sidecar <id>.json holding its metadata.
type localStorage struct {
	root string
}

func newLocalStorage(root string) (*localStorage, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &localStorage{root: root}, nil
}

func (s *localStorage) Save(_ context.Context, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	id := uuid.New()
	ext := filepath.Ext(filename)
	path := filepath.Join(s.root, id.String()+ext)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	info := &FileInfo{
		ID:          id,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        path,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.writeMeta(info); err != nil {
		os.Remove(path)
		return nil, err
	}

	return info, nil
}

func (s *localStorage) Open(_ context.Context, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.readMeta(fileID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open stored file: %w", err)
	}
	return f, info, nil
}

func (s *localStorage) Delete(_ context.Context, fileID uuid.UUID) error {
	info, err := s.readMeta(fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored file: %w", err)
	}
	if err := os.Remove(s.metaPath(fileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file metadata: %w", err)
	}
	return nil
}

func (s *localStorage) metaPath(id uuid.UUID) string {
	return filepath.Join(s.root, id.String()+".json")
}

func (s *localStorage) writeMeta(info *FileInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal file metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(info.ID), data, 0o644); err != nil {
		return fmt.Errorf("write file metadata: %w", err)
	}
	return nil
}

func (s *localStorage) readMeta(id uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, fmt.Errorf("read file metadata: %w", err)
	}
	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal file metadata: %w", err)
	}
	return &info, nil
}
