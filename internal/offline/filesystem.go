package offline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// filesystemStore keeps cached items as files.
//
// Directory structure:
//
//	<cache_dir>/
//	  files/
//	    <sha256 of url>    (cached media)
type filesystemStore struct {
	filesDir string
}

// NewFileSystemCache creates an offline cache rooted at cacheDir.
// maxSize is the maximum total size in bytes; must be positive.
func NewFileSystemCache(fetcher Fetcher, cacheDir string, maxSize int64) (*Cache, error) {
	filesDir := filepath.Join(cacheDir, "files")
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create offline cache directory: %w", err)
	}

	return &Cache{
		fetcher: fetcher,
		store:   &filesystemStore{filesDir: filesDir},
		maxSize: maxSize,
	}, nil
}

// Put writes to a temp file first so a failed download never leaves a partial item.
func (s *filesystemStore) Put(key string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.filesDir, ".partial-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing cache item: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("committing cache item: %w", err)
	}
	return n, nil
}

func (s *filesystemStore) Remove(key string) { os.Remove(s.path(key)) }

func (s *filesystemStore) Open(key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}

func (s *filesystemStore) Has(key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *filesystemStore) Len() (int, error) {
	entries, err := s.items()
	return len(entries), err
}

func (s *filesystemStore) ContentSize() (int64, error) {
	entries, err := s.items()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

func (s *filesystemStore) Clear() error {
	entries, err := os.ReadDir(s.filesDir)
	if err != nil {
		return fmt.Errorf("reading offline cache: %w", err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.filesDir, e.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *filesystemStore) path(key string) string {
	return filepath.Join(s.filesDir, key)
}

// items lists committed cache files, skipping in-flight temp files.
func (s *filesystemStore) items() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(s.filesDir)
	if err != nil {
		return nil, fmt.Errorf("reading offline cache: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
