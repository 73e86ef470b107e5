package upload

import (
	"fmt"
	"strings"
	"time"

	"hadiqa-go/internal/hq"
)

// objectKey is the storage key for a public id, e.g. "app_videos/3f2a.mp4".
func objectKey(publicID, format string) string {
	if format == "" {
		return publicID
	}
	return publicID + "." + format
}

// newPublicID places a fresh id under the request folder.
func newPublicID(req hq.UploadRequest, idgen hq.IDGenerator) string {
	id := idgen.New()
	if req.Folder == "" {
		return id
	}
	return strings.TrimSuffix(req.Folder, "/") + "/" + id
}

// describe builds the resource descriptor returned to the caller.
func describe(req hq.UploadRequest, publicID, baseURL string, now time.Time) *hq.UploadedResource {
	return &hq.UploadedResource{
		PublicID:  publicID,
		SecureURL: fmt.Sprintf("%s/%s", strings.TrimSuffix(baseURL, "/"), objectKey(publicID, req.Format)),
		Format:    req.Format,
		Version:   now.Unix(),
		Width:     req.Width,
		Height:    req.Height,
		Caption:   req.Caption,
		Tags:      append([]string(nil), req.Tags...),
		CreatedAt: now.UTC(),
	}
}
