package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig writes YAML content to a temp file and returns its path
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// clearEnvOverrides unsets the override variables for the test's duration
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{envJobs, envEditor, envDatabasePath} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFull(t *testing.T) {
	clearEnvOverrides(t)
	path := writeTestConfig(t, `
settings:
  jobs: 10
  editor: nvim
storage:
  database_path: /tmp/pacbuild-test.db
repositories:
  - name: third_party
    url: https://github.com/user/third-party
    preference: 2
  - name: official
    url: https://github.com/pacstall/pacstall-programs
    preference: 1
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Settings.Jobs != 10 || cfg.Settings.Editor != "nvim" {
		t.Errorf("Settings = %+v", cfg.Settings)
	}
	if cfg.Storage.DatabasePath != "/tmp/pacbuild-test.db" {
		t.Errorf("DatabasePath = %q", cfg.Storage.DatabasePath)
	}
	// Repositories come back sorted by preference.
	if len(cfg.Repositories) != 2 || cfg.Repositories[0].Name != "official" {
		t.Errorf("Repositories = %+v", cfg.Repositories)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnvOverrides(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Settings.Jobs <= 0 {
		t.Errorf("default Jobs = %d", cfg.Settings.Jobs)
	}
	if cfg.Settings.Editor == "" {
		t.Error("default Editor is empty")
	}
	if len(cfg.Repositories) != 1 || cfg.Repositories[0].URL != DefaultRepositoryURL {
		t.Errorf("default Repositories = %+v", cfg.Repositories)
	}
}

func TestLoadConfigPartialFileFillsDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := writeTestConfig(t, `
settings:
  editor: vim
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Settings.Editor != "vim" {
		t.Errorf("Editor = %q", cfg.Settings.Editor)
	}
	if cfg.Settings.Jobs <= 0 {
		t.Errorf("Jobs not defaulted: %d", cfg.Settings.Jobs)
	}
	if len(cfg.Repositories) != 1 || cfg.Repositories[0].Name != "official" {
		t.Errorf("Repositories not defaulted: %+v", cfg.Repositories)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeTestConfig(t, `
settings:
  jobs: 4
  editor: vim
`)
	t.Setenv(envJobs, "16")
	t.Setenv(envEditor, "emacs")
	t.Setenv(envDatabasePath, "/tmp/override.db")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Settings.Jobs != 16 || cfg.Settings.Editor != "emacs" {
		t.Errorf("Settings = %+v", cfg.Settings)
	}
	if cfg.Storage.DatabasePath != "/tmp/override.db" {
		t.Errorf("DatabasePath = %q", cfg.Storage.DatabasePath)
	}
}

func TestLoadConfigBadEnvOverride(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv(envJobs, "many")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yml")); err == nil {
		t.Error("non-numeric jobs override accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero jobs", mutate: func(c *Config) { c.Settings.Jobs = 0 },
			wantErr: ErrInvalidJobs},
		{name: "negative jobs", mutate: func(c *Config) { c.Settings.Jobs = -1 },
			wantErr: ErrInvalidJobs},
		{name: "no repositories", mutate: func(c *Config) { c.Repositories = nil },
			wantErr: ErrNoRepositories},
		{name: "unnamed repository", mutate: func(c *Config) { c.Repositories[0].Name = "" },
			wantErr: ErrRepositoryNameRequired},
		{name: "missing url", mutate: func(c *Config) { c.Repositories[0].URL = "" },
			wantErr: ErrRepositoryURLRequired},
		{name: "duplicate name", mutate: func(c *Config) {
			c.Repositories = append(c.Repositories, c.Repositories[0])
		}, wantErr: ErrDuplicateRepository},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetRepository(t *testing.T) {
	cfg := DefaultConfig()
	repo, ok := cfg.GetRepository("official")
	if !ok || repo.URL != DefaultRepositoryURL {
		t.Errorf("GetRepository = %+v, %v", repo, ok)
	}
	if _, ok := cfg.GetRepository("nonexistent"); ok {
		t.Error("unknown repository reported as present")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := DefaultConfig()
	cfg.Settings.Jobs = 7

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Settings.Jobs != 7 {
		t.Errorf("Jobs = %d, want 7", loaded.Settings.Jobs)
	}
}
