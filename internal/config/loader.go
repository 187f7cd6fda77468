package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default policy file name.
const DefaultConfigFile = ".rustator"

// File is the on-disk YAML policy file. All fields are optional; zero values
// leave the corresponding Config field untouched, so the file only needs to
// list what the user wants to override.
//
// Example:
//
//	control_addr: 127.0.0.1:9063
//	socks_addr: 127.0.0.1:9052
//	rotation:
//	  interval: 90s
//	  min_spacing: 15s
//	  max_per_hour: 40
//	lookup:
//	  ip_url: https://api.ipify.org?format=json
//	  geo_url: https://ipapi.co/%s/json/
//	history: true
type File struct {
	ControlAddr string `yaml:"control_addr"`
	SocksAddr   string `yaml:"socks_addr"`
	CookieFile  string `yaml:"cookie_file"`

	Rotation struct {
		Interval   time.Duration `yaml:"interval"`
		MinSpacing time.Duration `yaml:"min_spacing"`
		MaxPerHour int           `yaml:"max_per_hour"`
	} `yaml:"rotation"`

	Lookup struct {
		IPURL       string        `yaml:"ip_url"`
		TorCheckURL string        `yaml:"tor_check_url"`
		GeoURL      string        `yaml:"geo_url"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"lookup"`

	History    bool   `yaml:"history"`
	HistoryDir string `yaml:"history_dir"`
}

// LoadConfigFile loads the policy file at path.
// If the file does not exist, it returns ErrConfigNotFound; callers decide
// whether that matters based on whether the path was explicitly requested.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cf, nil
}

// FindConfigFile searches for the policy file in the following order:
// 1. If configPath is specified, use it directly
// 2. .rustator in the current directory
// 3. .rustator in the user's home directory
//
// Returns the path if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// ApplyTo overlays the non-zero fields of the file onto cfg.
// CLI flags are applied after the file, so flags win over the file and the
// file wins over built-in defaults.
func (f *File) ApplyTo(cfg *Config) {
	if f.ControlAddr != "" {
		cfg.ControlAddr = f.ControlAddr
	}
	if f.SocksAddr != "" {
		cfg.SocksAddr = f.SocksAddr
	}
	if f.CookieFile != "" {
		cfg.CookieFile = f.CookieFile
	}
	if f.Rotation.Interval > 0 {
		cfg.RotationInterval = f.Rotation.Interval
	}
	if f.Rotation.MinSpacing > 0 {
		cfg.MinSpacing = f.Rotation.MinSpacing
	}
	if f.Rotation.MaxPerHour > 0 {
		cfg.MaxRotationsPerHour = f.Rotation.MaxPerHour
	}
	if f.Lookup.IPURL != "" {
		cfg.IPLookupURL = f.Lookup.IPURL
	}
	if f.Lookup.TorCheckURL != "" {
		cfg.TorCheckURL = f.Lookup.TorCheckURL
	}
	if f.Lookup.GeoURL != "" {
		cfg.GeoLookupURL = f.Lookup.GeoURL
	}
	if f.Lookup.Timeout > 0 {
		cfg.LookupTimeout = f.Lookup.Timeout
	}
	if f.History {
		cfg.HistoryEnabled = true
	}
	if f.HistoryDir != "" {
		cfg.HistoryDir = f.HistoryDir
	}
}
