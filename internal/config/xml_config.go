// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
)

// FileName is the default config file name, looked up next to the executable.
const FileName = "ThermalAnalyzer.config"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ThermalAnalyzer"`

	Server   ServerConfig   `xml:"Server"`
	Storage  StorageConfig  `xml:"Storage"`
	Analysis AnalysisConfig `xml:"Analysis"`
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings. Uploaded images only live
// here while a session holds them.
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
}

// AnalysisConfig contains analysis and session settings
type AnalysisConfig struct {
	DelayMilliseconds      int    `xml:"DelayMilliseconds"`
	ProfilePath            string `xml:"ProfilePath"`
	MaxSessions            int    `xml:"MaxSessions"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	EnableHistory          bool   `xml:"EnableHistory"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
	// MaxPreviewSize caps inline previews, e.g. "64M". Empty means no cap.
	MaxPreviewSize string `xml:"MaxPreviewSize"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "100M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
		},
		Analysis: AnalysisConfig{
			DelayMilliseconds:      4000,
			ProfilePath:            "",
			MaxSessions:            50,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			EnableHistory:          true,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	var config *AppConfig

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config = DefaultConfig()
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Thermal Emission Analyzer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves the uploads directory along with it
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
	}

	if delay := os.Getenv("ANALYSIS_DELAY_MS"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil && d > 0 {
			c.Analysis.DelayMilliseconds = d
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = strings.ToLower(level)
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if c.Analysis.ProfilePath != "" && !filepath.IsAbs(c.Analysis.ProfilePath) {
		c.Analysis.ProfilePath = filepath.Join(configDir, c.Analysis.ProfilePath)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// AnalysisDelay returns the mock analysis duration.
func (c *AppConfig) AnalysisDelay() time.Duration {
	return time.Duration(c.Analysis.DelayMilliseconds) * time.Millisecond
}

// SessionTimeout returns how long an idle session is kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Analysis.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the period of the session cleanup loop. Values
// below one minute fall back to the default.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Analysis.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Analysis.CleanupIntervalMinutes) * time.Minute
}

// MaxPreviewBytes parses MaxPreviewSize with the same units as BodyLimit.
// It returns 0 when no cap is configured.
func (c *AppConfig) MaxPreviewBytes() (int64, error) {
	v := strings.TrimSpace(c.Advanced.MaxPreviewSize)
	if v == "" {
		return 0, nil
	}
	n, err := bytes.Parse(v)
	if err != nil {
		return 0, fmt.Errorf("invalid MaxPreviewSize %q: %w", v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid MaxPreviewSize %q: negative size", v)
	}
	return n, nil
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
