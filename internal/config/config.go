// Package config provides configuration management for packhouse using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// Configuration is read from .packhouse.yml (or the file named by the
// --config flag / PACKHOUSE_CONFIG_FILE), with PACKHOUSE_-prefixed
// environment variables overriding file values. It declares the logging
// and server settings plus the repository set: for every repository a
// name, a root directory, traversal ignore globs, and the package
// definition describing the metadata filename, the field-extraction rules,
// and the listing ignore globs.
//
// Viper lowercases configuration keys, so extraction field names declared
// under definition.fields (including nested group names) always reach the
// rule compiler — and the extracted Fields map — in lowercase. Field names
// are therefore effectively case-insensitive; "DisplayName" and
// "displayname" declare the same field.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/packhouse/packhouse/internal/logging"
	"github.com/packhouse/packhouse/internal/metadata"
	"github.com/packhouse/packhouse/internal/repository"
	"github.com/packhouse/packhouse/internal/scanner"
)

// EnvPrefix is the environment variable prefix for overrides
// (PACKHOUSE_SERVER_PORT, PACKHOUSE_LOGGING_LEVEL, ...).
const EnvPrefix = "PACKHOUSE"

// DefaultConfigFile is the config filename looked up in the working
// directory when no explicit path is given.
const DefaultConfigFile = ".packhouse.yml"

type Config struct {
	Logging      logging.Config     `mapstructure:"logging" yaml:"logging"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Watch        WatchConfig        `mapstructure:"watch" yaml:"watch"`
	Repositories []RepositoryConfig `mapstructure:"repositories" yaml:"repositories"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type WatchConfig struct {
	// Debounce groups rapid filesystem changes into one batch
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type RepositoryConfig struct {
	Name      string   `mapstructure:"name" yaml:"name"`
	Directory string   `mapstructure:"directory" yaml:"directory"`
	// Ignore holds doublestar globs whose sub-trees the scan never enters
	Ignore     []string         `mapstructure:"ignore" yaml:"ignore"`
	Definition DefinitionConfig `mapstructure:"definition" yaml:"definition"`
}

type DefinitionConfig struct {
	// MetadataFilename marks package directories; "package.json" when empty
	MetadataFilename string `mapstructure:"metadata_filename" yaml:"metadata_filename"`
	// Ignore holds globs excluded from package file listings and exports
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// Fields maps output field names to extraction patterns or nested
	// rule groups; name and identifier defaults apply when empty. Field
	// names are lowercased during config decoding (see package doc)
	Fields map[string]any `mapstructure:"fields" yaml:"fields"`
}

// Load reads configuration from the given file (empty selects the default
// lookup), applies environment overrides, and validates the result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, ".yml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// no config file is fine; defaults and env apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7676)
	v.SetDefault("watch.debounce", 300*time.Millisecond)
}

// Validate checks the configuration for inconsistencies that would only
// surface later as confusing scan behavior.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}

	names := make(map[string]bool, len(c.Repositories))
	for i, repo := range c.Repositories {
		if repo.Name == "" {
			return fmt.Errorf("repository %d: name is required", i)
		}
		if repo.Directory == "" {
			return fmt.Errorf("repository %q: directory is required", repo.Name)
		}
		if names[repo.Name] {
			return fmt.Errorf("repository %q: duplicate name", repo.Name)
		}
		names[repo.Name] = true
		if _, err := repo.Settings(); err != nil {
			return fmt.Errorf("repository %q: %w", repo.Name, err)
		}
	}
	return nil
}

// Settings converts the declarative repository config into repository
// settings, compiling the extraction rules.
func (c RepositoryConfig) Settings() (repository.Settings, error) {
	rules := metadata.Default()
	if len(c.Definition.Fields) > 0 {
		compiled, err := metadata.Compile(c.Definition.Fields)
		if err != nil {
			return repository.Settings{}, fmt.Errorf("extraction rules: %w", err)
		}
		rules = compiled
	}
	return repository.Settings{
		Name:      c.Name,
		Directory: c.Directory,
		Ignore:    c.Ignore,
		Definition: scanner.Definition{
			MetadataFilename: c.Definition.MetadataFilename,
			Rules:            rules,
			Ignore:           c.Definition.Ignore,
		},
	}, nil
}
