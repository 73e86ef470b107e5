package upload

import (
	"context"
	"fmt"

	"hadiqa-go/internal/config"
	"hadiqa-go/internal/hq"
)

// NewUploadTargetFromConfig creates an UploadTarget implementation based on the upload config type.
func NewUploadTargetFromConfig(ctx context.Context, cfg config.UploadConfig, clock hq.Clock, idgen hq.IDGenerator) (hq.UploadTarget, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryTarget(cfg.Name, cfg.PublicBaseURL, clock, idgen), nil
	case "s3":
		t, err := NewS3Target(ctx, S3ConfigFromEnv(S3Config{
			Name:          cfg.Name,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.PublicBaseURL,
		}), clock, idgen)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem upload target requires fs_root to be set")
		}
		t, err := NewFileSystemTarget(cfg.Name, cfg.FSRoot, cfg.PublicBaseURL, clock, idgen)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown upload target type: %s", cfg.Type)
	}
}
