// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for cospa.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.cospa/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cospa-vn/cospa-tui/internal/model"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete cospa configuration.
type Config struct {
	// API configuration (backend endpoint)
	API APIConfig `toml:"api"`

	// State configuration (local persistence)
	State StateConfig `toml:"state"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Map configuration
	Map MapConfig `toml:"map"`
}

// APIConfig contains backend API configuration.
type APIConfig struct {
	// BaseURL is the URL of the cospa backend
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the request timeout in seconds
	TimeoutSecs int `toml:"timeout_secs"`
}

// StateConfig contains local state configuration.
type StateConfig struct {
	// Dir is the directory for preferences and the history database
	// (empty = default ~/.cospa)
	Dir string `toml:"dir"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the color theme: "dark" or "light"
	Theme string `toml:"theme"`
	// SplitPercent is the width of the results pane as a percentage
	// of the terminal. Valid range is 30-70.
	SplitPercent int `toml:"split_percent"`
}

// MapConfig contains the initial map center.
type MapConfig struct {
	// CenterLat/CenterLng override the default center when both are set
	CenterLat float64 `toml:"center_lat"`
	CenterLng float64 `toml:"center_lng"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8000",
			TimeoutSecs: 60,
		},
		State: StateConfig{
			Dir: "",
		},
		UI: UIConfig{
			Theme:        "dark",
			SplitPercent: 40,
		},
		Map: MapConfig{
			CenterLat: model.DefaultCenter.Lat,
			CenterLng: model.DefaultCenter.Lng,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the cospa configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".cospa"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// StateDir resolves the state directory, creating it if needed.
// Resolution order: COSPA_STATE_DIR, config value, ~/.cospa.
func (c *Config) StateDir() (string, error) {
	dir := c.State.Dir
	if env := os.Getenv("COSPA_STATE_DIR"); env != "" {
		dir = env
	}
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create state directory: %w", err)
	}
	return dir, nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from an explicit path, with env
// overrides and validation applied.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# cospa configuration file")
	fmt.Fprintln(file, "# Generated by cospa - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// OVERRIDES / DEFAULTS / VALIDATION
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COSPA_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("COSPA_STATE_DIR"); v != "" {
		c.State.Dir = v
	}
}

// SetDefaults fills zero values with defaults after loading.
func (c *Config) SetDefaults() {
	def := Default()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = def.API.TimeoutSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.UI.SplitPercent == 0 {
		c.UI.SplitPercent = def.UI.SplitPercent
	}
	if c.Map.CenterLat == 0 && c.Map.CenterLng == 0 {
		c.Map.CenterLat = def.Map.CenterLat
		c.Map.CenterLng = def.Map.CenterLng
	}
}

// ValidationError represents a single config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("invalid URL: %s", c.API.BaseURL),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("unsupported scheme: %s", u.Scheme),
			})
		}
	}

	if c.API.TimeoutSecs < 0 || c.API.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("must be 0-600, got %d", c.API.TimeoutSecs),
		})
	}

	if c.UI.Theme != "" && c.UI.Theme != "dark" && c.UI.Theme != "light" {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("must be \"dark\" or \"light\", got %q", c.UI.Theme),
		})
	}

	if c.UI.SplitPercent != 0 && (c.UI.SplitPercent < 30 || c.UI.SplitPercent > 70) {
		errs = append(errs, ValidationError{
			Field:   "ui.split_percent",
			Message: fmt.Sprintf("must be 30-70, got %d", c.UI.SplitPercent),
		})
	}

	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		errs = append(errs, ValidationError{
			Field:   "map.center_lat",
			Message: fmt.Sprintf("must be -90..90, got %v", c.Map.CenterLat),
		})
	}
	if c.Map.CenterLng < -180 || c.Map.CenterLng > 180 {
		errs = append(errs, ValidationError{
			Field:   "map.center_lng",
			Message: fmt.Sprintf("must be -180..180, got %v", c.Map.CenterLng),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Center returns the configured map center.
func (c *Config) Center() model.Coordinates {
	return model.Coordinates{Lat: c.Map.CenterLat, Lng: c.Map.CenterLng}
}
