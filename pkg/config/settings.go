// Package config loads the framework settings and exposes the full settings
// tree to setting pointcuts and setting injection.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSettingsName = "Settings"
	EnvPrefix           = "FLOW"

	BackendFile     = "file"
	BackendDatabase = "database"
	BackendMemory   = "memory"
)

// Settings is the framework's own configuration.
type Settings struct {
	// Context names the application context, e.g. Development or Production
	Context    string             `mapstructure:"context" yaml:"context"`
	Log        LogSettings        `mapstructure:"log" yaml:"log"`
	Cache      CacheSettings      `mapstructure:"cache" yaml:"cache"`
	Reflection ReflectionSettings `mapstructure:"reflection" yaml:"reflection"`
	Proxy      ProxySettings      `mapstructure:"proxy" yaml:"proxy"`
	Monitor    MonitorSettings    `mapstructure:"monitor" yaml:"monitor"`
	Objects    ObjectSettings     `mapstructure:"objects" yaml:"objects"`
}

type LogSettings struct {
	// Level is a logrus level name
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json
	Format string `mapstructure:"format" yaml:"format"`
}

type CacheSettings struct {
	// Backend is one of file, database, memory
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Directory string `mapstructure:"directory" yaml:"directory"`
	// DSN is the sqlite data source of the database backend
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	DefaultLifetime time.Duration `mapstructure:"default_lifetime" yaml:"default_lifetime"`
}

type ReflectionSettings struct {
	// Patterns are go/packages patterns scanned for annotations
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
	Tags     []string `mapstructure:"tags" yaml:"tags"`
	// Exclude holds doublestar globs of files the scanner skips
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

type ProxySettings struct {
	// Generate emits decorator sources at boot
	Generate bool `mapstructure:"generate" yaml:"generate"`
	// OutputDir receives all decorators as one package; empty writes them
	// next to their classes
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	Parallelism int    `mapstructure:"parallelism" yaml:"parallelism"`
}

type MonitorSettings struct {
	Paths   []string `mapstructure:"paths" yaml:"paths"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	Watch   bool     `mapstructure:"watch" yaml:"watch"`
}

type ObjectSettings struct {
	// Files are Objects.yaml configuration files merged in order
	Files []string `mapstructure:"files" yaml:"files"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("context", "Development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cache.backend", BackendFile)
	v.SetDefault("cache.directory", ".flow/cache")
	v.SetDefault("cache.dsn", ".flow/cache.db")
	v.SetDefault("cache.default_lifetime", time.Duration(0))
	v.SetDefault("reflection.patterns", []string{})
	v.SetDefault("reflection.tags", []string{})
	v.SetDefault("reflection.exclude", []string{"**/*_test.go", "**/*_proxy.gen.go"})
	v.SetDefault("proxy.generate", false)
	v.SetDefault("proxy.output_dir", "")
	v.SetDefault("proxy.parallelism", 4)
	v.SetDefault("monitor.paths", []string{})
	v.SetDefault("monitor.exclude", []string{"**/.git/**", "**/*_proxy.gen.go"})
	v.SetDefault("monitor.watch", false)
	v.SetDefault("objects.files", []string{})
}

// Load reads the settings file (Settings.yaml in the working directory when
// file is empty) plus FLOW_ prefixed environment overrides.
func Load(file string) (*Settings, *Tree, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(DefaultSettingsName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("config: reading settings: %w", err)
		}
	}
	return decode(v)
}

// FromMap builds settings from an in-memory tree, mainly for tests.
func FromMap(m map[string]any) (*Settings, *Tree, error) {
	v := viper.New()
	setDefaults(v)
	if err := v.MergeConfigMap(m); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Settings, *Tree, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, nil, fmt.Errorf("config: decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	return &s, &Tree{v: v}, nil
}

// Validate checks enumerated values.
func (s *Settings) Validate() error {
	switch s.Cache.Backend {
	case BackendFile, BackendDatabase, BackendMemory:
	default:
		return fmt.Errorf("%w: cache.backend %q", ErrInvalidSetting, s.Cache.Backend)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidSetting, s.Log.Format)
	}
	return nil
}
