package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hadiqa-go/internal/hq"
)

// FileSystemTarget stores uploads as files in a directory structure:
//
//	<root>/
//	  app_videos/
//	    <id>.<format>  (media)
//	    <id>.json      (resource descriptor)
type FileSystemTarget struct {
	name    string
	root    string
	baseURL string
	clock   hq.Clock
	idgen   hq.IDGenerator
}

// NewFileSystemTarget creates a new filesystem upload target rooted at root.
func NewFileSystemTarget(name, root, baseURL string, clock hq.Clock, idgen hq.IDGenerator) (*FileSystemTarget, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &FileSystemTarget{name: name, root: root, baseURL: baseURL, clock: clock, idgen: idgen}, nil
}

func (t *FileSystemTarget) Upload(_ context.Context, req hq.UploadRequest, r io.Reader, size int64) (*hq.UploadedResource, error) {
	publicID := newPublicID(req, t.idgen)
	destPath := filepath.Join(t.root, filepath.FromSlash(objectKey(publicID, req.Format)))

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	if err := writeFile(destPath, r, size); err != nil {
		return nil, err
	}

	res := describe(req, publicID, t.baseURL, t.clock.Now())
	meta, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}
	metaPath := filepath.Join(t.root, filepath.FromSlash(publicID)+".json")
	if err := os.WriteFile(metaPath, meta, 0644); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("writing descriptor: %w", err)
	}
	return res, nil
}

// ValidateSetup verifies that the upload root is an accessible directory.
func (t *FileSystemTarget) ValidateSetup(context.Context) error {
	info, err := os.Stat(t.root)
	if err != nil {
		return fmt.Errorf("upload root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload root is not a directory: %s", t.root)
	}

	testFile := filepath.Join(t.root, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("upload root is not writable: %w", err)
	}
	os.Remove(testFile)
	return nil
}

// writeFile writes r to destPath through a temp file and verifies the size.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ hq.UploadTarget = (*FileSystemTarget)(nil)
