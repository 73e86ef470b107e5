package testutil

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"hadiqa-go/internal/hq"
)

// MockMediaManager is an in-memory media store for testing.
type MockMediaManager struct {
	files map[string][]byte
}

// NewMockMediaManager creates a new mock media manager.
func NewMockMediaManager() *MockMediaManager {
	return &MockMediaManager{files: make(map[string][]byte)}
}

// AddFile adds a media file.
func (m *MockMediaManager) AddFile(path string, content []byte) {
	m.files[path] = content
}

func (m *MockMediaManager) Resolve(rawPath string) (*hq.MediaFile, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	content, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	format := strings.TrimPrefix(filepath.Ext(absPath), ".")
	return hq.NewMediaFile(absPath, format, "video/"+format, int64(len(content))), nil
}

func (m *MockMediaManager) Open(file *hq.MediaFile) (io.ReadCloser, error) {
	content, ok := m.files[file.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", file.String())
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

var _ hq.MediaManager = (*MockMediaManager)(nil)
