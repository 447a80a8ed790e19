package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	apiclient "github.com/gooji/deployer/pkg/api/client"
)

const defaultAPIBase = "http://localhost:4000"

type cliConfig struct {
	APIBaseURL string            `json:"api_base_url"`
	Session    apiclient.Session `json:"session"`
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// configPath honours GOOJI_CONFIG, then the user config dir.
func configPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("GOOJI_CONFIG")); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gooji", "config.json"), nil
}
