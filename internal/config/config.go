// Package config provides configuration management for the manifest tooling.
// Configuration is read from a YAML file, then environment variables prefixed
// with PACBUILD_ may override individual values. The default configuration is
// used when the file does not exist or is empty.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for configuration validation
var (
	ErrInvalidJobs            = errors.New("jobs must be a positive number")
	ErrNoRepositories         = errors.New("at least one repository must be configured")
	ErrRepositoryNameRequired = errors.New("repository name is required")
	ErrRepositoryURLRequired  = errors.New("repository url is required")
	ErrDuplicateRepository    = errors.New("repository names must be unique")
)

// Environment override variables
const (
	envJobs         = "PACBUILD_JOBS"
	envEditor       = "PACBUILD_EDITOR"
	envDatabasePath = "PACBUILD_DATABASE_PATH"
)

// DefaultRepositoryURL is the official package repository.
const DefaultRepositoryURL = "https://github.com/pacstall/pacstall-programs"

// Config represents the top-level configuration structure.
type Config struct {
	Settings     Settings      `yaml:"settings"`
	Storage      StorageConfig `yaml:"storage"`
	Repositories []Repository  `yaml:"repositories"`
}

// Settings represents user-tunable settings.
type Settings struct {
	// Jobs is the number of parallel build jobs. Defaults to the number
	// of logical cores.
	Jobs int `yaml:"jobs"`
	// Editor is the preferred editor. Defaults to $EDITOR, then $VISUAL,
	// then nano.
	Editor string `yaml:"editor"`
}

// StorageConfig represents storage configuration for the metadata store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Repository represents one package source. Lower preference wins when
// several repositories carry the same package.
type Repository struct {
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	Preference uint   `yaml:"preference"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			Jobs:   runtime.NumCPU(),
			Editor: defaultEditor(),
		},
		Storage: StorageConfig{
			DatabasePath: "pacbuild.db",
		},
		Repositories: []Repository{
			{Name: "official", URL: DefaultRepositoryURL, Preference: 1},
		},
	}
}

func defaultEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	return "nano"
}

// LoadConfig loads the configuration from a YAML file, applies environment
// overrides and validates the result. A missing file yields the default
// configuration with overrides applied.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults stand in for the absent file.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
		}
	}

	config.fillDefaults()
	if err := config.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Most preferred repository first.
	sort.SliceStable(config.Repositories, func(i, j int) bool {
		return config.Repositories[i].Preference < config.Repositories[j].Preference
	})
	return config, nil
}

// fillDefaults replaces zero values left by a partial file with defaults.
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.Settings.Jobs == 0 {
		c.Settings.Jobs = defaults.Settings.Jobs
	}
	if c.Settings.Editor == "" {
		c.Settings.Editor = defaults.Settings.Editor
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = defaults.Storage.DatabasePath
	}
	if len(c.Repositories) == 0 {
		c.Repositories = defaults.Repositories
	}
}

// applyEnvOverrides applies PACBUILD_-prefixed environment variables on top
// of the file values.
func (c *Config) applyEnvOverrides() error {
	if jobs := os.Getenv(envJobs); jobs != "" {
		n, err := strconv.Atoi(jobs)
		if err != nil {
			return fmt.Errorf("failed to parse %s=%q: %w", envJobs, jobs, err)
		}
		c.Settings.Jobs = n
	}
	if editor := os.Getenv(envEditor); editor != "" {
		c.Settings.Editor = editor
	}
	if path := os.Getenv(envDatabasePath); path != "" {
		c.Storage.DatabasePath = path
	}
	return nil
}

// Validate validates the configuration structure and required fields.
func (c *Config) Validate() error {
	if c.Settings.Jobs <= 0 {
		return ErrInvalidJobs
	}
	if len(c.Repositories) == 0 {
		return ErrNoRepositories
	}
	seen := make(map[string]bool, len(c.Repositories))
	for _, repo := range c.Repositories {
		if repo.Name == "" {
			return ErrRepositoryNameRequired
		}
		if repo.URL == "" {
			return fmt.Errorf("repository %s: %w", repo.Name, ErrRepositoryURLRequired)
		}
		if seen[repo.Name] {
			return fmt.Errorf("repository %s: %w", repo.Name, ErrDuplicateRepository)
		}
		seen[repo.Name] = true
	}
	return nil
}

// GetRepository returns the configured repository with the given name.
func (c *Config) GetRepository(name string) (Repository, bool) {
	for _, repo := range c.Repositories {
		if repo.Name == name {
			return repo, true
		}
	}
	return Repository{}, false
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}
