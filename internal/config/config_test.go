package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal config fixture: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}

	// No explicit path: missing file falls back to defaults.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8620 {
		t.Errorf("Server.Port = %d, want 8620", cfg.Server.Port)
	}
	if cfg.Catalogue.PageSize != 40 {
		t.Errorf("Catalogue.PageSize = %d, want 40", cfg.Catalogue.PageSize)
	}
	if cfg.Metadata.Priority != "tmdb_first" {
		t.Errorf("Metadata.Priority = %q, want %q", cfg.Metadata.Priority, "tmdb_first")
	}
	if cfg.Metadata.TMDB.Language != "cs-CZ" {
		t.Errorf("Metadata.TMDB.Language = %q, want %q", cfg.Metadata.TMDB.Language, "cs-CZ")
	}
	if !cfg.Webshare.ForceHTTPS {
		t.Error("Webshare.ForceHTTPS = false, want true")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"server": map[string]any{"host": "127.0.0.1", "port": 9000},
		"webshare": map[string]any{
			"username": "user",
			"password": "secret",
		},
		"metadata": map[string]any{
			"priority": "csfd_first",
			"tmdb":     map[string]any{"api_key": "abc"},
		},
		"catalogue": map[string]any{"page_size": 60},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Server.Address(); got != "127.0.0.1:9000" {
		t.Errorf("Address() = %q, want %q", got, "127.0.0.1:9000")
	}
	if cfg.Webshare.Username != "user" {
		t.Errorf("Webshare.Username = %q, want %q", cfg.Webshare.Username, "user")
	}
	if cfg.Metadata.Priority != "csfd_first" {
		t.Errorf("Metadata.Priority = %q, want %q", cfg.Metadata.Priority, "csfd_first")
	}
	if cfg.Metadata.TMDB.APIKey != "abc" {
		t.Errorf("Metadata.TMDB.APIKey = %q, want %q", cfg.Metadata.TMDB.APIKey, "abc")
	}
	if cfg.Metadata.TMDB.Region != "CZ" {
		t.Errorf("Metadata.TMDB.Region = %q, want default %q", cfg.Metadata.TMDB.Region, "CZ")
	}
	if cfg.Catalogue.PageSize != 60 {
		t.Errorf("Catalogue.PageSize = %d, want 60", cfg.Catalogue.PageSize)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TVSTREAM_SERVER_PORT", "9100")
	t.Setenv("TVSTREAM_METADATA_PRIORITY", "tmdb_only")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Metadata.Priority != "tmdb_only" {
		t.Errorf("Metadata.Priority = %q, want %q", cfg.Metadata.Priority, "tmdb_only")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad priority",
			mutate:  func(c *Config) { c.Metadata.Priority = "omdb_first" },
			wantErr: true,
		},
		{
			name:    "bad min quality",
			mutate:  func(c *Config) { c.Filters.MinQuality = "4k" },
			wantErr: true,
		},
		{
			name:    "bad sort",
			mutate:  func(c *Config) { c.Catalogue.Sort = "seeders" },
			wantErr: true,
		},
		{
			name:    "bad download type",
			mutate:  func(c *Config) { c.Webshare.DownloadType = "torrent" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestValidateClampsPageSize(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"below floor", 5, 20},
		{"above ceiling", 500, 100},
		{"in range", 40, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			cfg.Catalogue.PageSize = tt.in
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if cfg.Catalogue.PageSize != tt.want {
				t.Errorf("PageSize = %d, want %d", cfg.Catalogue.PageSize, tt.want)
			}
		})
	}
}
