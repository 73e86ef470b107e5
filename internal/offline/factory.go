package offline

import (
	"fmt"
	"time"

	"hadiqa-go/internal/config"
	"hadiqa-go/internal/hq"
)

// DefaultMaxSize is the default maximum offline cache size (256MB).
const DefaultMaxSize int64 = 256 * 1024 * 1024

// DefaultFetchTimeout bounds a single media download.
const DefaultFetchTimeout = 2 * time.Minute

// NewOfflineCacheFromConfig creates an OfflineCache implementation based on the config type.
func NewOfflineCacheFromConfig(cfg config.OfflineConfig, fetcher Fetcher) (hq.OfflineCache, error) {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher(DefaultFetchTimeout)
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryCache(fetcher, maxSize), nil
	case "filesystem":
		if cfg.CacheDir == "" {
			return nil, fmt.Errorf("filesystem offline cache requires cache_dir to be set")
		}
		c, err := NewFileSystemCache(fetcher, cfg.CacheDir, maxSize)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown offline cache type: %s", cfg.Type)
	}
}
