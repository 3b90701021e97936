// Package config loads, validates and persists the application
// configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cineripr/cineripr/internal/fileops"
)

// Config represents the complete application configuration
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Subfolders SubfoldersConfig `yaml:"subfolders" mapstructure:"subfolders"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Demo       bool             `yaml:"demo" mapstructure:"demo"`
}

// PathsConfig holds the three directory roots the organizer works across
type PathsConfig struct {
	DownloadRoots []string `yaml:"download_roots" mapstructure:"download_roots"`
	ExtractedRoot string   `yaml:"extracted_root" mapstructure:"extracted_root"`
	FinishedRoot  string   `yaml:"finished_root" mapstructure:"finished_root"`
}

// ExtractionConfig controls the external 7-Zip invocation
type ExtractionConfig struct {
	SevenZip     string        `yaml:"seven_zip" mapstructure:"seven_zip"`         // Path to the 7z binary (empty = auto-detect on PATH)
	CPUCores     int           `yaml:"cpu_cores" mapstructure:"cpu_cores"`         // Threads passed via -mmt (0 = default)
	StallTimeout time.Duration `yaml:"stall_timeout" mapstructure:"stall_timeout"` // Kill the extractor after this long without output
}

// SubfoldersConfig selects which companion subfolders are carried over
type SubfoldersConfig struct {
	IncludeSample bool `yaml:"include_sample" mapstructure:"include_sample"`
	IncludeSub    bool `yaml:"include_sub" mapstructure:"include_sub"`
	IncludeOther  bool `yaml:"include_other" mapstructure:"include_other"`
}

// Policy converts the YAML toggles into the relocation engine's form.
func (c SubfoldersConfig) Policy() fileops.SubfolderPolicy {
	return fileops.SubfolderPolicy{
		IncludeSample: c.IncludeSample,
		IncludeSubs:   c.IncludeSub,
		IncludeOther:  c.IncludeOther,
	}
}

// SchedulerConfig configures the periodic run in serve mode
type SchedulerConfig struct {
	Schedule string `yaml:"schedule" mapstructure:"schedule"` // cron expression or @every duration
}

// LogConfig represents logging configuration with rotation support
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`               // Log file path (empty = console only)
	Level      string `yaml:"level" mapstructure:"level"`             // Log level (debug, info, warn, error)
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // Max size in MB before rotation
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // Max age in days to keep files
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // Max number of old files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // Compress old log files
}

// Validate checks internal consistency without touching the filesystem
func (c *Config) Validate() error {
	if len(c.Paths.DownloadRoots) == 0 {
		return fmt.Errorf("paths download_roots cannot be empty")
	}
	for i, root := range c.Paths.DownloadRoots {
		if root == "" {
			return fmt.Errorf("paths download_roots[%d] cannot be empty", i)
		}
	}
	if c.Paths.ExtractedRoot == "" {
		return fmt.Errorf("paths extracted_root cannot be empty")
	}
	if c.Paths.FinishedRoot == "" {
		return fmt.Errorf("paths finished_root cannot be empty")
	}

	if c.Extraction.CPUCores < 0 {
		return fmt.Errorf("extraction cpu_cores must be non-negative")
	}
	if c.Extraction.StallTimeout < 0 {
		return fmt.Errorf("extraction stall_timeout must be non-negative")
	}

	if c.Log.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		isValid := false
		for _, level := range validLevels {
			if c.Log.Level == level {
				isValid = true
				break
			}
		}
		if !isValid {
			return fmt.Errorf("log.level must be one of: debug, info, warn, error")
		}
	}
	if c.Log.MaxSize < 0 {
		return fmt.Errorf("log.max_size must be non-negative")
	}
	if c.Log.MaxAge < 0 {
		return fmt.Errorf("log.max_age must be non-negative")
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DownloadRoots: []string{},
			ExtractedRoot: "./extracted",
			FinishedRoot:  "./finished",
		},
		Extraction: ExtractionConfig{
			SevenZip:     "", // Auto-detect 7z/7za/7zr on PATH
			CPUCores:     2,
			StallTimeout: 10 * time.Minute,
		},
		Subfolders: SubfoldersConfig{
			IncludeSample: false,
			IncludeSub:    true,
			IncludeOther:  false,
		},
		Scheduler: SchedulerConfig{
			Schedule: "@every 15m",
		},
		Log: LogConfig{
			File:       "",     // Empty = console only
			Level:      "info", // Default log level
			MaxSize:    100,    // 100MB max size
			MaxAge:     30,     // Keep for 30 days
			MaxBackups: 10,     // Keep 10 old files
			Compress:   true,   // Compress old files
		},
		Demo: false,
	}
}

// SaveToFile saves a configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from file and merges with defaults
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Look for config file in common locations
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if configFile != "" {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil, fmt.Errorf("no configuration file found. Please create config.yaml or use --config flag")
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// GetConfigFilePath returns the configuration file path used by viper
func GetConfigFilePath() string {
	return viper.ConfigFileUsed()
}
