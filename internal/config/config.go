// Package config provides XML and YAML configuration management for the mirror server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"UploadMirror" yaml:"-"`

	// Server configuration
	Server ServerConfig `xml:"Server" yaml:"server"`

	// Upload receiver configuration
	Upload UploadConfig `xml:"Upload" yaml:"upload"`

	// Upstream hosting service
	Upstream UpstreamConfig `xml:"Upstream" yaml:"upstream"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced" yaml:"advanced"`
}

// ServerConfig contains HTTP server settings.
// Zero timeouts leave the net/http defaults (no timeout) in place.
type ServerConfig struct {
	Port         int    `xml:"Port" yaml:"port"`
	BindAddress  string `xml:"BindAddress" yaml:"bindAddress"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds" yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds" yaml:"idleTimeoutSeconds"`
}

// UploadConfig contains the receiver limits and the staging location
type UploadConfig struct {
	FieldName            string `xml:"FieldName" yaml:"fieldName"`
	MaxFileSize          int64  `xml:"MaxFileSizeBytes" yaml:"maxFileSizeBytes"`
	AllowedTypes         string `xml:"AllowedTypes" yaml:"allowedTypes"`
	TempDirectory        string `xml:"TempDirectory" yaml:"tempDirectory"`
	StaleAfterMinutes    int    `xml:"StaleAfterMinutes" yaml:"staleAfterMinutes"`
	SweepIntervalMinutes int    `xml:"SweepIntervalMinutes" yaml:"sweepIntervalMinutes"`
}

// UpstreamConfig points at the third-party hosting service
type UpstreamConfig struct {
	BaseURL        string `xml:"BaseURL" yaml:"baseURL"`
	UploadPath     string `xml:"UploadPath" yaml:"uploadPath"`
	FilePathPrefix string `xml:"FilePathPrefix" yaml:"filePathPrefix"`
	TimeoutSeconds int    `xml:"TimeoutSeconds" yaml:"timeoutSeconds"`
}

// AdvancedConfig contains logging options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel" yaml:"logLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging" yaml:"enableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        3000,
			BindAddress: "0.0.0.0",
			IdleTimeout: 120,
		},
		Upload: UploadConfig{
			FieldName:            "file",
			MaxFileSize:          5 * 1024 * 1024,
			AllowedTypes:         "jpeg|jpg|png|gif|mp4|webm|ogg",
			TempDirectory:        "./data/uploads",
			StaleAfterMinutes:    60,
			SweepIntervalMinutes: 10,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://telegra.ph",
			UploadPath:     "/upload",
			FilePathPrefix: "/file/",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from an XML or YAML file, picked by extension
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so partial files keep sane values
	config := DefaultConfig()
	if isYAML(configPath) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = xml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves the configuration in the format implied by the file extension
func (c *AppConfig) Save(configPath string) error {
	var content []byte
	if isYAML(configPath) {
		output, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		content = append([]byte("# Upload Mirror Configuration\n# This file is auto-generated on first run\n\n"), output...)
	} else {
		output, err := xml.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		header := []byte(xml.Header + "\n<!-- Upload Mirror Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
		content = append(header, output...)
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects values the server cannot start with
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("invalid max file size: %d", c.Upload.MaxFileSize)
	}
	if c.Upload.FieldName == "" {
		return fmt.Errorf("upload field name must not be empty")
	}
	if c.Upload.AllowedTypes == "" {
		return fmt.Errorf("allowed types must not be empty")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL must not be empty")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves the staging directory
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Upload.TempDirectory = dataDir
	}

	if base := os.Getenv("UPSTREAM_BASE_URL"); base != "" {
		c.Upstream.BaseURL = base
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Upload.TempDirectory) {
		c.Upload.TempDirectory = filepath.Join(configDir, c.Upload.TempDirectory)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetTempDir returns the absolute staging directory path
func (c *AppConfig) GetTempDir() string {
	return c.Upload.TempDirectory
}

// UpstreamTimeout returns zero when no timeout is configured
func (c *AppConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// StaleAfter is the age after which orphaned staged files are swept
func (c *AppConfig) StaleAfter() time.Duration {
	return time.Duration(c.Upload.StaleAfterMinutes) * time.Minute
}

// SweepInterval returns zero when sweeping is disabled
func (c *AppConfig) SweepInterval() time.Duration {
	return time.Duration(c.Upload.SweepIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Upload.TempDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
