package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"lineage/internal/paths"
)

// CurrentVersion is the config schema version this build reads
const CurrentVersion = 1

// LogLevelEnvVar overrides logging.level
const LogLevelEnvVar = "LINEAGE_LOG_LEVEL"

// Config represents the complete lineage configuration
type Config struct {
	Version int    `json:"version" mapstructure:"version"`
	Backend string `json:"backend" mapstructure:"backend"`

	Git     GitConfig     `json:"git" mapstructure:"git"`
	Svn     SvnConfig     `json:"svn" mapstructure:"svn"`
	Graph   GraphConfig   `json:"graph" mapstructure:"graph"`
	Filters FiltersConfig `json:"filters" mapstructure:"filters"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// GitConfig contains Git backend configuration
type GitConfig struct {
	Ref           string `json:"ref" mapstructure:"ref"`
	DetectRenames bool   `json:"detectRenames" mapstructure:"detectRenames"`
	MaxCommits    int    `json:"maxCommits" mapstructure:"maxCommits"`
}

// SvnConfig contains Subversion backend configuration
type SvnConfig struct {
	LogFile string `json:"logFile" mapstructure:"logFile"`
	URL     string `json:"url" mapstructure:"url"`
	Range   string `json:"range" mapstructure:"range"`
}

// GraphConfig tunes move detection
type GraphConfig struct {
	// MovePairing is "parent" or "same-epoch"
	MovePairing string `json:"movePairing" mapstructure:"movePairing"`
}

// FiltersConfig restricts which paths are tracked (doublestar globs)
type FiltersConfig struct {
	Include []string `json:"include" mapstructure:"include"`
	Exclude []string `json:"exclude" mapstructure:"exclude"`
}

// CacheConfig contains query cache configuration
type CacheConfig struct {
	Size int `json:"size" mapstructure:"size"`
}

// StorageConfig contains journal configuration
type StorageConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DBName  string `json:"dbName" mapstructure:"dbName"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"`
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSizeMB  int    `json:"maxSizeMB" mapstructure:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Backend: "git",
		Git: GitConfig{
			Ref:           "HEAD",
			DetectRenames: true,
		},
		Svn: SvnConfig{
			Range: "1:HEAD",
		},
		Graph: GraphConfig{
			MovePairing: "parent",
		},
		Filters: FiltersConfig{
			Include: []string{},
			Exclude: []string{},
		},
		Cache: CacheConfig{
			Size: 1024,
		},
		Storage: StorageConfig{
			Enabled: true,
			DBName:  "lineage.db",
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// setDefaults registers every default so a partial config file and
// environment overrides merge over them
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("git.ref", d.Git.Ref)
	v.SetDefault("git.detectRenames", d.Git.DetectRenames)
	v.SetDefault("git.maxCommits", d.Git.MaxCommits)
	v.SetDefault("svn.logFile", d.Svn.LogFile)
	v.SetDefault("svn.url", d.Svn.URL)
	v.SetDefault("svn.range", d.Svn.Range)
	v.SetDefault("graph.movePairing", d.Graph.MovePairing)
	v.SetDefault("filters.include", d.Filters.Include)
	v.SetDefault("filters.exclude", d.Filters.Exclude)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("storage.enabled", d.Storage.Enabled)
	v.SetDefault("storage.dbName", d.Storage.DBName)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSizeMB", d.Logging.MaxSizeMB)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// LoadConfig loads configuration from .lineage/config.json under repoRoot.
// A missing file yields the defaults; LINEAGE_LOG_LEVEL overrides the level.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.DataDir(repoRoot))

	if err := v.BindEnv("logging.level", LogLevelEnvVar); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{Field: "file", Message: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}
	return &cfg, nil
}

// Save writes the configuration to .lineage/config.json under repoRoot
func (c *Config) Save(repoRoot string) error {
	dir, err := paths.EnsureDataDir(repoRoot)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	switch c.Backend {
	case "git":
		if c.Git.MaxCommits < 0 {
			return &ConfigError{Field: "git.maxCommits", Message: "must not be negative"}
		}
	case "svn":
		if c.Svn.LogFile == "" && c.Svn.URL == "" {
			return &ConfigError{Field: "svn", Message: "logFile or url is required"}
		}
	default:
		return &ConfigError{Field: "backend", Message: fmt.Sprintf("unknown backend %q (want git or svn)", c.Backend)}
	}

	switch c.Graph.MovePairing {
	case "", "parent", "same-epoch":
	default:
		return &ConfigError{Field: "graph.movePairing", Message: fmt.Sprintf("unknown pairing %q", c.Graph.MovePairing)}
	}

	if c.Cache.Size <= 0 {
		return &ConfigError{Field: "cache.size", Message: "must be positive"}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
