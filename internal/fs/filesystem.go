package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"hadiqa-go/internal/hq"
)

// mimeTypes maps the accepted media extensions to their MIME types.
var mimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/x-m4v",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
}

// OSMediaManager is the real filesystem implementation of hq.MediaManager.
// It only accepts regular files with a known video extension.
type OSMediaManager struct{}

// NewOSMediaManager creates a media manager that operates on the real filesystem.
func NewOSMediaManager() *OSMediaManager {
	return &OSMediaManager{}
}

// Resolve validates a raw path and returns a MediaFile.
func (m *OSMediaManager) Resolve(rawPath string) (*hq.MediaFile, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", absPath)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	format, mimeType, ok := MediaFormat(absPath)
	if !ok {
		return nil, fmt.Errorf("unsupported media type: %s", absPath)
	}

	return hq.NewMediaFile(absPath, format, mimeType, info.Size()), nil
}

// Open opens a media file for reading.
func (m *OSMediaManager) Open(file *hq.MediaFile) (io.ReadCloser, error) {
	return os.Open(file.String())
}

// FindMedia discovers media files under dir, sorted by path.
// When recursive is true, subdirectories are walked as well.
func (m *OSMediaManager) FindMedia(dir string, recursive bool) ([]*hq.MediaFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var files []*hq.MediaFile
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, _, ok := MediaFormat(p); !ok {
			return nil
		}
		f, err := m.Resolve(p)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	slices.SortFunc(files, func(a, b *hq.MediaFile) int { return strings.Compare(a.String(), b.String()) })
	return files, nil
}

// MediaFormat returns the lowercase extension and MIME type of path,
// and whether the extension is an accepted video format.
func MediaFormat(path string) (format, mimeType string, ok bool) {
	format = strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	mimeType, ok = mimeTypes[format]
	return format, mimeType, ok
}

var _ hq.MediaManager = (*OSMediaManager)(nil)
