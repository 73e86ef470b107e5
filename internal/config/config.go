package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for hadiqa.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Store      StoreConfig      `toml:"store"`
	Upload     UploadConfig     `toml:"upload"`
	Offline    OfflineConfig    `toml:"offline"`
	Encryption EncryptionConfig `toml:"encryption"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Oracle     OracleConfig     `toml:"oracle"`
	Server     ServerConfig     `toml:"server"`
}

// StoreConfig represents configuration for the local state store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type"`               // "sqlite", "postgres" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	DSN     string `toml:"dsn,omitempty"`      // only used for type=postgres
}

// UploadConfig represents configuration for the admin upload target.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type UploadConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// PublicBaseURL prefixes the object key to build a playable URL.
	PublicBaseURL string `toml:"public_base_url,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// OfflineConfig represents configuration for the offline media cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type OfflineConfig struct {
	Type     string `toml:"type"`                // "memory" or "filesystem"
	CacheDir string `toml:"cache_dir,omitempty"` // only used for type=filesystem
	MaxSize  int64  `toml:"max_size"`            // max total size in bytes; must be positive
}

// EncryptionConfig selects how exported state bundles are sealed.
type EncryptionConfig struct {
	Type string `toml:"type"` // "age" (default) or "test"
}

// CatalogConfig locates the remote video listing.
type CatalogConfig struct {
	BaseURL        string `toml:"base_url"`
	CloudName      string `toml:"cloud_name"`
	Tag            string `toml:"tag"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OracleConfig configures the AI analysis and live voice endpoints.
// The API key is read from the environment variable named by APIKeyEnv.
type OracleConfig struct {
	Endpoint   string `toml:"endpoint"`
	LiveURL    string `toml:"live_url"`
	Model      string `toml:"model"`
	LiveModel  string `toml:"live_model"`
	APIKeyEnv  string `toml:"api_key_env"`
	DailyLimit int    `toml:"daily_limit"`
}

// ServerConfig configures the HTTP API.
// The admin token secret is read from the environment variable named by JWTSecretEnv.
type ServerConfig struct {
	Addr         string  `toml:"addr"`
	JWTSecretEnv string  `toml:"jwt_secret_env"`
	RateLimit    float64 `toml:"rate_limit"` // requests per second per client on the oracle routes
	RateBurst    int     `toml:"rate_burst"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Upload: UploadConfig{
			Type:          "filesystem",
			Name:          "local",
			FSRoot:        filepath.Join(baseDir, "uploads"),
			PublicBaseURL: "file://" + filepath.Join(baseDir, "uploads"),
		},
		Offline: OfflineConfig{
			Type:     "filesystem",
			CacheDir: filepath.Join(baseDir, "offline"),
			MaxSize:  512 * 1024 * 1024,
		},
		Encryption: EncryptionConfig{Type: "age"},
		Catalog: CatalogConfig{
			BaseURL:        "https://res.cloudinary.com",
			CloudName:      "dlrvn33p0",
			Tag:            "hadiqa_v4",
			TimeoutSeconds: 15,
		},
		Oracle: OracleConfig{
			Endpoint:   "https://generativelanguage.googleapis.com/v1beta",
			LiveURL:    "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
			Model:      "gemini-2.5-flash",
			LiveModel:  "gemini-2.5-flash-native-audio-preview-09-2025",
			APIKeyEnv:  "HADIQA_API_KEY",
			DailyLimit: 10,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			JWTSecretEnv: "HADIQA_JWT_SECRET",
			RateLimit:    1,
			RateBurst:    5,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
