package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Download.Concurrency != 5 {
		t.Errorf("Expected default concurrency to be 5, got %d", config.Download.Concurrency)
	}
	if config.RateLimit.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts to be 3, got %d", config.RateLimit.MaxAttempts)
	}
	if config.Output.Directory != "./archive" {
		t.Errorf("Expected default output directory to be ./archive, got %s", config.Output.Directory)
	}
	if config.Filter.Save != SaveSupporting {
		t.Errorf("Expected default save type to be supporting, got %s", config.Filter.Save)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FANBOXSESSID", "12345_abcdef")
	t.Setenv("ARCHIVIST_OUTPUT", "/tmp/test-archive")
	t.Setenv("ARCHIVIST_SAVE", "ALL")
	t.Setenv("ARCHIVIST_LIMIT", "8")
	t.Setenv("ARCHIVIST_SKIP_FREE", "true")
	t.Setenv("ARCHIVIST_WHITELIST", "mofu, nyan ,")
	t.Setenv("ARCHIVIST_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Session.Fanbox != "12345_abcdef" {
		t.Errorf("Expected fanbox session from FANBOXSESSID, got %q", config.Session.Fanbox)
	}
	if config.Output.Directory != "/tmp/test-archive" {
		t.Errorf("Expected output directory to be /tmp/test-archive, got %s", config.Output.Directory)
	}
	if config.Filter.Save != SaveAll {
		t.Errorf("Expected save type all, got %s", config.Filter.Save)
	}
	if config.Download.Concurrency != 8 {
		t.Errorf("Expected concurrency 8, got %d", config.Download.Concurrency)
	}
	if !config.Filter.SkipFree {
		t.Error("Expected skip free to be enabled")
	}
	if len(config.Filter.Whitelist) != 2 || config.Filter.Whitelist[1] != "nyan" {
		t.Errorf("Unexpected whitelist %v", config.Filter.Whitelist)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("ARCHIVIST_LIMIT", "many")
	t.Setenv("ARCHIVIST_SAVE", "everything")

	err := DefaultConfig().LoadFromEnv()
	if err == nil {
		t.Fatal("Expected an error for unparsable values")
	}
	if !strings.Contains(err.Error(), "ARCHIVIST_LIMIT") || !strings.Contains(err.Error(), "everything") {
		t.Errorf("Both problems should be reported, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unknown platform", mutate: func(c *Config) { c.Platform = "onlyfans" }, wantErr: "Platform"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Download.Concurrency = 0 }, wantErr: "Concurrency"},
		{name: "bad save type", mutate: func(c *Config) { c.Filter.Save = "some" }, wantErr: "Save"},
		{name: "max delay below base", mutate: func(c *Config) { c.RateLimit.MaxDelay = time.Millisecond }, wantErr: "MaxDelay"},
		{name: "empty output", mutate: func(c *Config) { c.Output.Directory = "" }, wantErr: "Directory"},
		{
			name:    "white and black",
			mutate:  func(c *Config) { c.Filter.Whitelist = []string{"a"}; c.Filter.Blacklist = []string{"a"} },
			wantErr: "both whitelisted and blacklisted",
		},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "requires a dsn"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "chatty" }, wantErr: "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Platform = "patreon"
	original.Filter.Blacklist = []string{"spam"}
	original.Download.Timeout = 90 * time.Second

	if err := original.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Config file should be private, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if loaded.Platform != "patreon" || loaded.Download.Timeout != 90*time.Second {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "output:\n  directory: /from/file\ndownload:\n  concurrency: 2\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARCHIVIST_LIMIT", "4")

	config, err := Load(path, map[string]interface{}{
		"output":    "/from/flag",
		"overwrite": true,
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if config.Output.Directory != "/from/flag" {
		t.Errorf("Flag should win over file, got %s", config.Output.Directory)
	}
	if config.Download.Concurrency != 4 {
		t.Errorf("Env should win over file, got %d", config.Download.Concurrency)
	}
	if !config.Output.Overwrite {
		t.Error("Overwrite flag not applied")
	}
}

func TestDatabaseDSN(t *testing.T) {
	config := DefaultConfig()
	config.Output.Directory = "/data/archive"
	if got := config.DatabaseDSN(); got != filepath.Join("/data/archive", "archive.db") {
		t.Errorf("Unexpected default dsn %s", got)
	}

	config.Storage.DSN = "postgres://localhost/archive"
	if got := config.DatabaseDSN(); got != "postgres://localhost/archive" {
		t.Errorf("Explicit dsn should win, got %s", got)
	}
}

func TestCreatorAndPostFilters(t *testing.T) {
	f := FilterConfig{Whitelist: []string{"mofu", "nyan"}, Blacklist: []string{"nyan"}}
	if !f.AcceptCreator("mofu", 0) {
		t.Error("whitelisted creator should pass")
	}
	if f.AcceptCreator("nyan", 500) {
		t.Error("blacklist should win")
	}
	if f.AcceptCreator("other", 500) {
		t.Error("creator outside whitelist should be dropped")
	}

	f = FilterConfig{SkipFree: true}
	if f.AcceptCreator("mofu", 0) {
		t.Error("free creator should be skipped with skip-free")
	}
	if f.AcceptPost(0, false) {
		t.Error("free post should be skipped with skip-free")
	}
	if !f.AcceptPost(500, false) {
		t.Error("paid post should pass")
	}
	if (FilterConfig{}).AcceptPost(500, true) {
		t.Error("restricted post should never pass")
	}
}

func TestParseSaveType(t *testing.T) {
	for in, want := range map[string]SaveType{"all": SaveAll, "Following": SaveFollowing, " supporting ": SaveSupporting} {
		got, err := ParseSaveType(in)
		if err != nil || got != want {
			t.Errorf("ParseSaveType(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseSaveType("both"); err == nil {
		t.Error("expected error for unknown save type")
	}
	if !SaveAll.AcceptFollowing() || !SaveAll.AcceptSupporting() || SaveFollowing.AcceptSupporting() {
		t.Error("save type acceptance is wrong")
	}
}
