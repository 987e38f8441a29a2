// Package config loads morpheus settings from .morpheus.yaml, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jward/morpheus"
)

// FileName is the config file looked up in the workspace root.
const FileName = ".morpheus.yaml"

// EnvPrefix prefixes every environment override, e.g. MORPHEUS_LOG_VERBOSITY.
const EnvPrefix = "MORPHEUS"

// Config is the complete morpheus configuration.
type Config struct {
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
	Index  IndexConfig  `json:"index" yaml:"index" mapstructure:"index"`
	Rename RenameConfig `json:"rename" yaml:"rename" mapstructure:"rename"`
	Query  QueryConfig  `json:"query" yaml:"query" mapstructure:"query"`
}

// LogConfig controls commonlog output.
type LogConfig struct {
	// Verbosity is the commonlog level: 0 for errors only up to 5 for debug.
	Verbosity int    `json:"verbosity" yaml:"verbosity" mapstructure:"verbosity"`
	File      string `json:"file" yaml:"file" mapstructure:"file"`
}

// IndexConfig controls workspace loading.
type IndexConfig struct {
	Extensions    []string `json:"extensions" yaml:"extensions" mapstructure:"extensions"`
	PathCacheSize int      `json:"pathCacheSize" yaml:"pathCacheSize" mapstructure:"pathCacheSize"`
	Workers       int      `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// RenameConfig holds extra words rename refuses, on top of the built-in set.
type RenameConfig struct {
	Reserved []string `json:"reserved" yaml:"reserved" mapstructure:"reserved"`
}

type QueryConfig struct {
	// Suggestions caps "did you mean" candidates; zero disables them.
	Suggestions int `json:"suggestions" yaml:"suggestions" mapstructure:"suggestions"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Verbosity: 1,
		},
		Index: IndexConfig{
			Extensions:    []string{".scr"},
			PathCacheSize: 256,
		},
		Rename: RenameConfig{
			Reserved: []string{},
		},
		Query: QueryConfig{
			Suggestions: 3,
		},
	}
}

// Load reads the configuration for a workspace. A .env file in root is
// applied to the environment first, without overriding variables that are
// already set. When path is empty, root/.morpheus.yaml is used if present.
func Load(root, path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.verbosity", d.Log.Verbosity)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("index.extensions", d.Index.Extensions)
	v.SetDefault("index.pathCacheSize", d.Index.PathCacheSize)
	v.SetDefault("index.workers", d.Index.Workers)
	v.SetDefault("rename.reserved", d.Rename.Reserved)
	v.SetDefault("query.suggestions", d.Query.Suggestions)
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Log.Verbosity < 0 || c.Log.Verbosity > 5 {
		return &ConfigError{Field: "log.verbosity", Message: "must be between 0 and 5"}
	}
	if len(c.Index.Extensions) == 0 {
		return &ConfigError{Field: "index.extensions", Message: "must not be empty"}
	}
	for _, ext := range c.Index.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return &ConfigError{Field: "index.extensions", Message: fmt.Sprintf("%q must start with a dot", ext)}
		}
	}
	if c.Index.PathCacheSize < 0 {
		return &ConfigError{Field: "index.pathCacheSize", Message: "must not be negative"}
	}
	if c.Index.Workers < 0 {
		return &ConfigError{Field: "index.workers", Message: "must not be negative"}
	}
	if c.Query.Suggestions < 0 {
		return &ConfigError{Field: "query.suggestions", Message: "must not be negative"}
	}
	return nil
}

// EngineOptions translates the configuration into Engine options.
func (c *Config) EngineOptions() []morpheus.Option {
	opts := []morpheus.Option{
		morpheus.WithExtensions(c.Index.Extensions...),
		morpheus.WithPathCacheSize(c.Index.PathCacheSize),
		morpheus.WithWorkers(c.Index.Workers),
	}
	if len(c.Rename.Reserved) > 0 {
		opts = append(opts, morpheus.WithReserved(c.Rename.Reserved...))
	}
	return opts
}

// YAML renders the configuration in .morpheus.yaml form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the configuration to root/.morpheus.yaml.
func (c *Config) Save(root string) error {
	data, err := c.YAML()
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return os.WriteFile(filepath.Join(root, FileName), data, 0o644)
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
