package hq

import (
	"context"
	"io"
	"time"
)

// Upload defaults applied to every admin upload.
const (
	CommonTag       = "hadiqa_v4"
	UploadFolder    = "app_videos"
	UntitledCaption = "بدون عنوان"
	NewVideoTitle   = "فيديو جديد"
)

// UploadRequest describes one media file pushed to the upload target.
type UploadRequest struct {
	Filename string
	Format   string
	Folder   string
	Tags     []string
	Caption  string
	Width    int
	Height   int
}

// UploadedResource is the descriptor the upload target reports on success.
type UploadedResource struct {
	PublicID  string
	SecureURL string
	Format    string
	Version   int64
	Width     int
	Height    int
	Caption   string
	Tags      []string
	CreatedAt time.Time
}

// UploadTarget stores admin-uploaded media and makes it playable.
type UploadTarget interface {
	// Upload reads size bytes from r and stores them under a new public id.
	Upload(ctx context.Context, req UploadRequest, r io.Reader, size int64) (*UploadedResource, error)

	// ValidateSetup verifies that the target is reachable and configured.
	ValidateSetup(ctx context.Context) error
}

// OfflineCache keeps local copies of media so they play without a network.
type OfflineCache interface {
	// Add downloads url into the cache. Adding a cached url is a no-op.
	Add(ctx context.Context, url string) error

	// Contains reports whether url is cached.
	Contains(url string) (bool, error)

	// Open returns the cached bytes for url.
	Open(url string) (io.ReadCloser, error)

	// Clear removes every cached item.
	Clear() error

	// Count returns the number of cached items.
	Count() (int, error)

	// Size returns the total cached bytes.
	Size() (int64, error)
}

// VideoInsight is the AI analysis of an uploaded clip.
type VideoInsight struct {
	Summary     string   `json:"summary"`
	HorrorLevel float64  `json:"horrorLevel"`
	Tags        []string `json:"tags"`
}

// PlaceholderInsight is served whenever analysis fails, so callers always get
// a well-formed result.
func PlaceholderInsight() VideoInsight {
	return VideoInsight{
		Summary:     "تعذر التحليل، لكن الروح موجودة..",
		HorrorLevel: 5,
		Tags:        []string{"رعب"},
	}
}

// Analyzer runs AI analysis over raw media bytes.
type Analyzer interface {
	Analyze(ctx context.Context, media []byte, mimeType string) (*VideoInsight, error)
}

// MediaManager resolves and opens local media files for upload and analysis.
// It abstracts file access to enable testing without touching the real filesystem.
type MediaManager interface {
	// Resolve validates a raw path and returns a MediaFile.
	Resolve(rawPath string) (*MediaFile, error)

	// Open opens a media file for reading.
	Open(file *MediaFile) (io.ReadCloser, error)
}

// MediaFile is a validated local media file with cached metadata.
// MediaFile values are created by MediaManager.Resolve.
type MediaFile struct {
	absPath  string
	format   string
	mimeType string
	size     int64
}

// NewMediaFile creates a MediaFile from its components.
// This is primarily for use by MediaManager implementations.
func NewMediaFile(absPath, format, mimeType string, size int64) *MediaFile {
	return &MediaFile{absPath: absPath, format: format, mimeType: mimeType, size: size}
}

func (m *MediaFile) String() string   { return m.absPath }
func (m *MediaFile) Format() string   { return m.format }
func (m *MediaFile) MIMEType() string { return m.mimeType }
func (m *MediaFile) Size() int64      { return m.size }

// Sealer protects exported state bundles with a passphrase.
type Sealer interface {
	// Seal reads plaintext from r and writes ciphertext to w.
	Seal(passphrase string, r io.Reader, w io.Writer) error

	// Open reads ciphertext from r and writes plaintext to w.
	// It fails if the passphrase is wrong or the data was tampered with.
	Open(passphrase string, r io.Reader, w io.Writer) error
}
