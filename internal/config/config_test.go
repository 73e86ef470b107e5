package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/hadiqa",
		LogDir:  "/home/user/.local/share/hadiqa/log",
		Store:   StoreConfig{Type: "postgres", DSN: "postgres://localhost/hadiqa"},
		Upload: UploadConfig{
			Type:          "s3",
			Name:          "clips",
			S3Bucket:      "hadiqa-media",
			S3Prefix:      "app_videos",
			S3Region:      "eu-west-1",
			PublicBaseURL: "https://cdn.example.com",
		},
		Offline:    OfflineConfig{Type: "memory", MaxSize: 2048},
		Encryption: EncryptionConfig{Type: "test"},
		Catalog:    CatalogConfig{BaseURL: "https://media.example.com", CloudName: "demo", Tag: "hadiqa_v4", TimeoutSeconds: 5},
		Oracle:     OracleConfig{Model: "m1", APIKeyEnv: "KEY", DailyLimit: 3},
		Server:     ServerConfig{Addr: ":9000", RateLimit: 2.5, RateBurst: 4},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Store != original.Store {
		t.Errorf("Store = %+v, want %+v", got.Store, original.Store)
	}
	if got.Upload != original.Upload {
		t.Errorf("Upload = %+v, want %+v", got.Upload, original.Upload)
	}
	if got.Offline.MaxSize != 2048 {
		t.Errorf("Offline.MaxSize = %d, want %d", got.Offline.MaxSize, 2048)
	}
	if got.Encryption.Type != "test" {
		t.Errorf("Encryption.Type = %q, want %q", got.Encryption.Type, "test")
	}
	if got.Catalog != original.Catalog {
		t.Errorf("Catalog = %+v, want %+v", got.Catalog, original.Catalog)
	}
	if got.Oracle.DailyLimit != 3 {
		t.Errorf("Oracle.DailyLimit = %d, want %d", got.Oracle.DailyLimit, 3)
	}
	if got.Server.RateLimit != 2.5 {
		t.Errorf("Server.RateLimit = %v, want %v", got.Server.RateLimit, 2.5)
	}
}

func TestManager_Read_InvalidTOML(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("store = [")); err == nil {
		t.Fatal("Read() expected error for invalid TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/hadiqa")

	if cfg.BaseDir != "/data/hadiqa" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/hadiqa")
	}
	if cfg.LogDir != "/data/hadiqa/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/hadiqa/log")
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.DataDir != "/data/hadiqa/db" {
		t.Errorf("Store = %+v, want sqlite in /data/hadiqa/db", cfg.Store)
	}
	if cfg.Upload.FSRoot != "/data/hadiqa/uploads" {
		t.Errorf("Upload.FSRoot = %q, want %q", cfg.Upload.FSRoot, "/data/hadiqa/uploads")
	}
	if cfg.Offline.MaxSize <= 0 {
		t.Errorf("Offline.MaxSize = %d, want positive", cfg.Offline.MaxSize)
	}
	if cfg.Catalog.Tag != "hadiqa_v4" {
		t.Errorf("Catalog.Tag = %q, want %q", cfg.Catalog.Tag, "hadiqa_v4")
	}
	if cfg.Oracle.DailyLimit != 10 {
		t.Errorf("Oracle.DailyLimit = %d, want %d", cfg.Oracle.DailyLimit, 10)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "hadiqa.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "conf", "hadiqa.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "hadiqa.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "hadiqa.toml")
		cfg := NewConfig(dir)
		cfg.Store = StoreConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Store.Type != "memory" {
			t.Errorf("Store.Type = %q, want %q", got.Store.Type, "memory")
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/hadiqa.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
