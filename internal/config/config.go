// Package config provides hierarchical configuration management for stepflow using koanf.
// Configuration is loaded with priority: environment variables > project config (.stepflow/config.yml)
// > user config (~/.config/stepflow/config.yml) > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ariel-frischer/stepflow/pkg/runner"
	"github.com/ariel-frischer/stepflow/pkg/tags"
)

// EnvPrefix prefixes every environment override. Nested keys use a double underscore:
// STEPFLOW_RETRIES__COUNT sets retries.count.
const EnvPrefix = "STEPFLOW_"

// ConfigSource tracks where a configuration value came from
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceUser    ConfigSource = "user"
	SourceProject ConfigSource = "project"
	SourceEnv     ConfigSource = "env"
	SourceFlag    ConfigSource = "flag"
)

// RetriesConfig is the default retry policy.
type RetriesConfig struct {
	// Count is the number of retries after the first attempt.
	Count int `koanf:"count" yaml:"count" validate:"gte=0"`
	// After is the delay between attempts.
	After time.Duration `koanf:"after" yaml:"after" validate:"gte=0"`
	// Deadline is an absolute RFC3339 instant after which no retry starts.
	Deadline string `koanf:"deadline" yaml:"deadline"`
	// Budget is a deadline relative to the run start. The earlier of Deadline and
	// start+Budget wins.
	Budget time.Duration `koanf:"budget" yaml:"budget" validate:"gte=0"`
}

// Configuration represents the stepflow run configuration
type Configuration struct {
	MaxConcurrentScenarios int           `koanf:"max_concurrent_scenarios" yaml:"max_concurrent_scenarios" validate:"gte=1"`
	FailFast               bool          `koanf:"fail_fast" yaml:"fail_fast"`
	Retries                RetriesConfig `koanf:"retries" yaml:"retries"`
	// SerialTags is the tag expression classifying scenarios as Serial.
	SerialTags string `koanf:"serial_tags" yaml:"serial_tags"`
	// RetryTags is the tag expression restricting retries; empty allows every scenario.
	RetryTags        string        `koanf:"retry_tags" yaml:"retry_tags"`
	ReorderWatermark int           `koanf:"reorder_watermark" yaml:"reorder_watermark" validate:"gte=0"`
	StepTimeout      time.Duration `koanf:"step_timeout" yaml:"step_timeout" validate:"gte=0"`

	LogLevel  string `koanf:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" yaml:"log_format" validate:"oneof=console json"`

	// Sources lists the configuration layers that were applied, lowest priority first.
	Sources []LoadedSource `koanf:"-" yaml:"-"`
}

// LoadedSource is one applied configuration layer.
type LoadedSource struct {
	Source ConfigSource
	// Path is the file the layer was read from; empty for defaults and env.
	Path string
}

// LoadOptions configures how configuration is loaded
type LoadOptions struct {
	// ProjectConfigPath overrides the project config path (default: .stepflow/config.yml)
	ProjectConfigPath string
	// UserConfigPath overrides the user config path (default: see UserConfigPath)
	UserConfigPath string
	// SkipUserConfig ignores the user-level config file
	SkipUserConfig bool
	// Overrides are key=value pairs from the command line, applied last.
	// Keys must be in KnownKeys.
	Overrides map[string]string
}

// Load loads configuration from user, project, and environment sources.
// Priority: Environment variables > Project config > User config > Defaults
func Load(projectConfigPath string) (*Configuration, error) {
	return LoadWithOptions(LoadOptions{ProjectConfigPath: projectConfigPath})
}

// LoadWithOptions loads configuration with custom options
func LoadWithOptions(opts LoadOptions) (*Configuration, error) {
	k := koanf.New(".")
	sources := []LoadedSource{{Source: SourceDefault}}

	loadDefaults(k)

	if !opts.SkipUserConfig {
		src, err := loadUserConfig(k, opts.UserConfigPath)
		if err != nil {
			return nil, err
		}
		if src != nil {
			sources = append(sources, *src)
		}
	}

	src, err := loadProjectConfig(k, opts.ProjectConfigPath)
	if err != nil {
		return nil, err
	}
	if src != nil {
		sources = append(sources, *src)
	}

	applied, err := loadEnvironmentConfig(k)
	if err != nil {
		return nil, err
	}
	if applied {
		sources = append(sources, LoadedSource{Source: SourceEnv})
	}

	if len(opts.Overrides) > 0 {
		if err := applyOverrides(k, opts.Overrides); err != nil {
			return nil, err
		}
		sources = append(sources, LoadedSource{Source: SourceFlag})
	}

	cfg, err := finalizeConfig(k)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources
	return cfg, nil
}

// loadDefaults applies default configuration values
func loadDefaults(k *koanf.Koanf) {
	for key, value := range GetDefaults() {
		k.Set(key, value)
	}
}

// loadUserConfig loads the user-level YAML config when it exists.
func loadUserConfig(k *koanf.Koanf, customPath string) (*LoadedSource, error) {
	path := customPath
	if path == "" {
		var err error
		if path, err = UserConfigPath(); err != nil {
			return nil, nil
		}
	}
	if !fileExists(path) {
		return nil, nil
	}
	if err := loadYAMLConfig(k, path, "user"); err != nil {
		return nil, fmt.Errorf("loading user YAML config: %w", err)
	}
	return &LoadedSource{Source: SourceUser, Path: path}, nil
}

// loadProjectConfig loads the project-level YAML config when it exists.
// An explicitly given path must exist.
func loadProjectConfig(k *koanf.Koanf, customPath string) (*LoadedSource, error) {
	path := ProjectConfigPath()
	if customPath != "" {
		path = customPath
		if !fileExists(path) {
			return nil, fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
		}
	}
	if !fileExists(path) {
		return nil, nil
	}
	if err := loadYAMLConfig(k, path, "project"); err != nil {
		return nil, fmt.Errorf("loading project YAML config: %w", err)
	}
	return &LoadedSource{Source: SourceProject, Path: path}, nil
}

// loadYAMLConfig validates and loads a YAML config file
func loadYAMLConfig(k *koanf.Koanf, path, configType string) error {
	if err := ValidateYAMLSyntax(path); err != nil {
		return fmt.Errorf("validating YAML syntax for %s config: %w", configType, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s config %s: %w", configType, path, err)
	}
	return nil
}

// loadEnvironmentConfig loads environment variable overrides and reports whether any applied
func loadEnvironmentConfig(k *koanf.Koanf) (bool, error) {
	envK := koanf.New(".")
	if err := envK.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return false, fmt.Errorf("failed to load environment config: %w", err)
	}
	if len(envK.Keys()) == 0 {
		return false, nil
	}
	if err := k.Merge(envK); err != nil {
		return false, fmt.Errorf("failed to merge environment config: %w", err)
	}
	return true, nil
}

// applyOverrides validates each override against its key schema and sets it.
func applyOverrides(k *koanf.Koanf, overrides map[string]string) error {
	for key, raw := range overrides {
		v, err := ValidateValue(key, raw)
		if err != nil {
			return fmt.Errorf("override %s: %w", key, err)
		}
		k.Set(key, v.Parsed)
	}
	return nil
}

// finalizeConfig unmarshals and validates the merged configuration
func finalizeConfig(k *koanf.Koanf) (*Configuration, error) {
	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateConfigValues(&cfg, "config"); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// fileExists returns true if the file exists and is readable
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// envTransform converts environment variable names to config keys
// Example: STEPFLOW_RETRIES__COUNT -> retries.count
func envTransform(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// YAML renders the configuration in config file form.
func (c *Configuration) YAML() ([]byte, error) {
	return yamlv3.Marshal(c)
}

// RunnerConfig converts the configuration into the scheduler's run configuration.
// now anchors retries.budget.
func (c *Configuration) RunnerConfig(now time.Time) (runner.Config, error) {
	serial, err := tags.Parse(c.SerialTags)
	if err != nil {
		return runner.Config{}, fmt.Errorf("serial_tags: %w", err)
	}
	retry, err := tags.Parse(c.RetryTags)
	if err != nil {
		return runner.Config{}, fmt.Errorf("retry_tags: %w", err)
	}
	deadline, err := c.Retries.deadline(now)
	if err != nil {
		return runner.Config{}, err
	}

	return runner.Config{
		MaxConcurrentScenarios: c.MaxConcurrentScenarios,
		FailFast:               c.FailFast,
		Retry: runner.RetryOptions{
			Count:    c.Retries.Count,
			After:    c.Retries.After,
			Deadline: deadline,
		},
		SerialTags:       serial,
		RetryTags:        retry,
		ReorderWatermark: c.ReorderWatermark,
		StepTimeout:      c.StepTimeout,
	}, nil
}

func (r RetriesConfig) deadline(now time.Time) (time.Time, error) {
	var deadline time.Time
	if r.Deadline != "" {
		t, err := time.Parse(time.RFC3339, r.Deadline)
		if err != nil {
			return time.Time{}, fmt.Errorf("retries.deadline: %w", err)
		}
		deadline = t
	}
	if r.Budget > 0 {
		budget := now.Add(r.Budget)
		if deadline.IsZero() || budget.Before(deadline) {
			deadline = budget
		}
	}
	return deadline, nil
}
