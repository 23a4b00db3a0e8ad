// Package project persists the engine's typed inputs and outputs as JSON:
// configuration, part lists, sheet lists, and nest results.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/deepnest-next/gonest/internal/model"
)

// DefaultConfigDir returns the default directory for configuration:
// ~/.gonest/, or ./.gonest when the home directory is unknown. The NFP
// cache directory is resolved separately and does not default here.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".gonest")
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// SaveConfig persists a NestConfig to the given path as JSON. It creates
// any missing parent directories automatically.
func SaveConfig(path string, config model.NestConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadConfig reads a NestConfig from the given path. If the file does not
// exist, it returns DefaultConfig with no error.
func LoadConfig(path string) (model.NestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.DefaultConfig(), nil
		}
		return model.NestConfig{}, err
	}
	config := model.DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return model.NestConfig{}, err
	}
	return config, nil
}

// LoadParts reads a part list from a JSON file.
func LoadParts(path string) ([]model.Part, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parts []model.Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, model.WrapError(model.KindInvalidInput, err)
	}
	return parts, nil
}

// LoadSheets reads a sheet list from a JSON file.
func LoadSheets(path string) ([]model.Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sheets []model.Sheet
	if err := json.Unmarshal(data, &sheets); err != nil {
		return nil, model.WrapError(model.KindInvalidInput, err)
	}
	return sheets, nil
}

// SaveResult writes a nest result to the given path as indented JSON.
func SaveResult(path string, result model.NestResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
