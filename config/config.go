package config

import (
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"path"
	"time"
)

type yamlConfig struct {
	IsDebug                bool    `yaml:"debug"`
	LogFilePath            string  `yaml:"log_file_path"`
	ToolDirName            string  `yaml:"tool_dir_name"`
	DBFileName             string  `yaml:"db_file_name"`
	DocumentExtension      string  `yaml:"document_extension"`
	BackupDirName          string  `yaml:"backup_dir_name"`
	MaxConcurrentParsers   int64   `yaml:"max_concurrent_parsers"`
	AutoVersion            bool    `yaml:"auto_version"`
	ChangeToleranceSeconds float64 `yaml:"change_tolerance_seconds"`
	WatchDebounceMS        int64   `yaml:"watch_debounce_ms"`
	ShowProgress           bool    `yaml:"show_progress"`
}

type Config struct {
	IsDebug              bool
	LogFilePath          string
	ToolDirName          string
	DBFileName           string
	DocumentExtension    string
	BackupDirName        string
	MaxConcurrentParsers int64
	AutoVersion          bool
	ChangeTolerance      time.Duration
	WatchDebounce        time.Duration
	ShowProgress         bool
}

// Default is used by tests and when a config file leaves a value unset.
func Default() *Config {
	return &Config{
		LogFilePath:          "set-tools.log",
		ToolDirName:          ".set-tools",
		DBFileName:           "sets.db",
		DocumentExtension:    ".als",
		BackupDirName:        "Backup",
		MaxConcurrentParsers: 4,
		AutoVersion:          true,
		ChangeTolerance:      time.Second,
		WatchDebounce:        1500 * time.Millisecond,
	}
}

func Load(defaultConfigData []byte) (*Config, error) {
	configFile := "config.yaml"
	_, err := os.Stat(configFile)

	if err != nil {
		log.Print("No config file found. Creating a new config file...")
		err := os.WriteFile(configFile, defaultConfigData, 0600)

		if err != nil {
			return nil, err
		}
	}

	return parseConfigFile(configFile)
}

func parseConfigFile(configFilePath string) (*Config, error) {
	yamlFile, err := os.ReadFile(path.Clean(configFilePath))

	if err != nil {
		return nil, err
	}

	return parseConfig(yamlFile)
}

func parseConfig(data []byte) (*Config, error) {
	defaults := Default()

	// Unset keys keep their defaults
	config := &yamlConfig{
		LogFilePath:            defaults.LogFilePath,
		ToolDirName:            defaults.ToolDirName,
		DBFileName:             defaults.DBFileName,
		DocumentExtension:      defaults.DocumentExtension,
		BackupDirName:          defaults.BackupDirName,
		MaxConcurrentParsers:   defaults.MaxConcurrentParsers,
		AutoVersion:            defaults.AutoVersion,
		ChangeToleranceSeconds: defaults.ChangeTolerance.Seconds(),
		WatchDebounceMS:        defaults.WatchDebounce.Milliseconds(),
	}

	err := yaml.Unmarshal(data, config)

	if err != nil {
		return nil, err
	}

	if config.MaxConcurrentParsers < 1 {
		config.MaxConcurrentParsers = 1
	}

	return &Config{
		IsDebug:              config.IsDebug,
		LogFilePath:          config.LogFilePath,
		ToolDirName:          config.ToolDirName,
		DBFileName:           config.DBFileName,
		DocumentExtension:    config.DocumentExtension,
		BackupDirName:        config.BackupDirName,
		MaxConcurrentParsers: config.MaxConcurrentParsers,
		AutoVersion:          config.AutoVersion,
		ChangeTolerance:      time.Duration(config.ChangeToleranceSeconds * float64(time.Second)),
		WatchDebounce:        time.Duration(config.WatchDebounceMS) * time.Millisecond,
		ShowProgress:         config.ShowProgress,
	}, nil
}

// MetadataPath is the internal per-project area, <project>/.<tool>.
func (c *Config) MetadataPath(projectPath string) string {
	return path.Join(projectPath, c.ToolDirName)
}

func (c *Config) DBPath(projectPath string) string {
	return path.Join(c.MetadataPath(projectPath), "db", c.DBFileName)
}

// FilesPath holds version copies, one directory per document base name.
func (c *Config) FilesPath(projectPath string) string {
	return path.Join(c.MetadataPath(projectPath), "files")
}
