package app

import (
	"fmt"
	"os"
	"path/filepath"

	"hadiqa-go/internal/config"
)

// Environment overrides read by GetDefaults.
const (
	envConfigPath = "HADIQA_CONFIG_PATH"
	envHome       = "HADIQA_HOME"
	envAddr       = "HADIQA_ADDR"

	defaultAddr         = "127.0.0.1:8080"
	defaultAPIKeyEnv    = "HADIQA_API_KEY"
	defaultJWTSecretEnv = "HADIQA_JWT_SECRET"
)

// GetDefaults returns the values a fresh install starts from.
//
//   - config_path: HADIQA_CONFIG_PATH, else ~/.config/hadiqa.toml
//   - base_dir: HADIQA_HOME, else ~/.local/share/hadiqa
//   - log_dir: base_dir/log
//   - server_addr: HADIQA_ADDR, else 127.0.0.1:8080
//   - api_key_env, jwt_secret_env: names of the variables holding the secrets
func GetDefaults() (map[string]string, error) {
	home := ""
	if os.Getenv(envConfigPath) == "" || os.Getenv(envHome) == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		home = h
	}

	configPath := envOr(envConfigPath, filepath.Join(home, ".config", "hadiqa.toml"))
	baseDir := envOr(envHome, filepath.Join(home, ".local", "share", "hadiqa"))

	return map[string]string{
		"config_path":    configPath,
		"base_dir":       baseDir,
		"log_dir":        filepath.Join(baseDir, "log"),
		"server_addr":    envOr(envAddr, defaultAddr),
		"api_key_env":    defaultAPIKeyEnv,
		"jwt_secret_env": defaultJWTSecretEnv,
	}, nil
}

// ConfigFromDefaults builds the config written by `hadiqa config init`.
func ConfigFromDefaults(defaults map[string]string) *config.Config {
	cfg := config.NewConfig(defaults["base_dir"])
	if v := defaults["server_addr"]; v != "" {
		cfg.Server.Addr = v
	}
	if v := defaults["api_key_env"]; v != "" {
		cfg.Oracle.APIKeyEnv = v
	}
	if v := defaults["jwt_secret_env"]; v != "" {
		cfg.Server.JWTSecretEnv = v
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
