package encryption

import (
	"fmt"

	"hadiqa-go/internal/config"
	"hadiqa-go/internal/hq"
)

// NewSealerFromConfig creates a Sealer based on the configuration type.
func NewSealerFromConfig(cfg config.EncryptionConfig) (hq.Sealer, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeSealer(0), nil
	case "test":
		return NewTestSealer(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
