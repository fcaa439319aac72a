// Package config loads and saves the application configuration under
// ~/.layoffscrub (or the file named by LAYOFFSCRUB_CONFIG). Secrets
// never live here; the warehouse password is in the credential store.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"layoffscrub/internal/common"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// EnvConfigFile overrides the config file location when set.
const EnvConfigFile = "LAYOFFSCRUB_CONFIG"

// GetConfigPath returns the configuration directory.
func GetConfigPath() string {
	if configPath := os.Getenv(EnvConfigFile); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".layoffscrub")
}

// GetConfigFile returns the configuration file location.
func GetConfigFile() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Default returns the configuration a fresh machine starts from.
func Default() *models.Config {
	dir := GetConfigPath()
	return &models.Config{
		Store: models.Store{
			Path: filepath.Join(dir, "layoffs.db"),
		},
		Cleaning: models.Cleaning{
			OnMalformedDate: "abort",
		},
		Rules: models.Rules{
			Path:   filepath.Join(dir, "rules.yaml"),
			Branch: "main",
		},
		Logging: models.Logging{
			Level: "info",
		},
	}
}

// Load reads the configuration, falling back to defaults when no file
// exists yet.
func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	cleanedPath, err := common.CleanPath(configFile)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("Invalid config file path %s", configFile), "config")
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigPermission,
			fmt.Sprintf("Failed to read config file %s", cleanedPath))
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
			fmt.Sprintf("Config file %s is not valid YAML", cleanedPath)).
			WithSuggestions(
				"Fix the reported YAML syntax error",
				"Run 'layoffscrub setup' to regenerate the file",
			)
	}
	return cfg, nil
}

// Save writes the configuration.
func Save(cfg *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, common.DirPermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigPermission,
			fmt.Sprintf("Failed to create config directory %s", configPath))
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to marshal configuration")
	}

	configFile := GetConfigFile()
	if err := os.WriteFile(configFile, data, common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigPermission,
			fmt.Sprintf("Failed to write config file %s", configFile))
	}

	return nil
}

// Exists reports whether a configuration file has been written.
func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
