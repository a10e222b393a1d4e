package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for an archive run
type Config struct {
	// Platform selects which source is archived: fanbox or patreon
	Platform string `yaml:"platform" json:"platform" validate:"oneof=fanbox patreon"`

	Session   SessionConfig   `yaml:"session" json:"session"`
	Filter    FilterConfig    `yaml:"filter" json:"filter"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SessionConfig holds the platform session cookies
type SessionConfig struct {
	Fanbox    string `yaml:"fanbox" json:"fanbox"`
	Patreon   string `yaml:"patreon" json:"patreon"`
	Account   string `yaml:"account" json:"account"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// FilterConfig decides which creators and posts take part in a run
type FilterConfig struct {
	Save      SaveType `yaml:"save" json:"save" validate:"oneof=all following supporting"`
	Whitelist []string `yaml:"whitelist" json:"whitelist"`
	Blacklist []string `yaml:"blacklist" json:"blacklist"`
	SkipFree  bool     `yaml:"skip_free" json:"skip_free"`
	// Force ignores the sync state and re-fetches every listed post
	Force bool `yaml:"force" json:"force"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory" validate:"required"`
	Overwrite bool   `yaml:"overwrite" json:"overwrite"`
}

// DownloadConfig bounds concurrent requests and downloads
type DownloadConfig struct {
	Concurrency int           `yaml:"concurrency" json:"concurrency" validate:"min=1,max=32"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
}

// RateLimitConfig holds retry and pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute" validate:"min=0"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts" validate:"min=1,max=10"`
	BaseDelay         time.Duration `yaml:"base_delay" json:"base_delay" validate:"gt=0"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay" validate:"gtefield=BaseDelay"`
}

// StorageConfig selects the database backing the sync store
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// ScheduleConfig holds the cron expression used by the schedule command
type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Platform: "fanbox",
		Filter: FilterConfig{
			Save: SaveSupporting,
		},
		Output: OutputConfig{
			Directory: "./archive",
		},
		Download: DownloadConfig{
			Concurrency: 5,
			Timeout:     60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Schedule: ScheduleConfig{
			Cron: "@every 6h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("ARCHIVIST_PLATFORM"); v != "" {
		c.Platform = strings.ToLower(v)
	}
	if v := os.Getenv("FANBOXSESSID"); v != "" {
		c.Session.Fanbox = v
	}
	if v := os.Getenv("PATREON_SESSION"); v != "" {
		c.Session.Patreon = v
	}
	if v := os.Getenv("ARCHIVIST_OUTPUT"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("ARCHIVIST_SAVE"); v != "" {
		save, err := ParseSaveType(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			c.Filter.Save = save
		}
	}
	if v := os.Getenv("ARCHIVIST_WHITELIST"); v != "" {
		c.Filter.Whitelist = splitList(v)
	}
	if v := os.Getenv("ARCHIVIST_BLACKLIST"); v != "" {
		c.Filter.Blacklist = splitList(v)
	}
	if v := os.Getenv("ARCHIVIST_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ARCHIVIST_LIMIT: %w", err))
		} else {
			c.Download.Concurrency = n
		}
	}
	for name, target := range map[string]*bool{
		"ARCHIVIST_OVERWRITE": &c.Output.Overwrite,
		"ARCHIVIST_SKIP_FREE": &c.Filter.SkipFree,
		"ARCHIVIST_FORCE":     &c.Filter.Force,
	} {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			*target = b
		}
	}
	if v := os.Getenv("ARCHIVIST_DB_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("ARCHIVIST_DB_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("ARCHIVIST_SCHEDULE"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("ARCHIVIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultPath is where `config init` writes when no path is given
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "archivist", "config.yaml")
}

func findConfigFile() string {
	locations := []string{
		".archivist.yaml",
		".archivist.yml",
		DefaultPath(),
		filepath.Join(os.Getenv("HOME"), ".archivist.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: must satisfy %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	blocked := make(map[string]bool, len(c.Filter.Blacklist))
	for _, id := range c.Filter.Blacklist {
		blocked[id] = true
	}
	for _, id := range c.Filter.Whitelist {
		if blocked[id] {
			errs = append(errs, fmt.Errorf("creator %q is both whitelisted and blacklisted", id))
		}
	}

	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		errs = append(errs, errors.New("postgres storage requires a dsn"))
	}

	return errors.Join(errs...)
}

// SessionFor returns the configured session cookie for a platform
func (c *Config) SessionFor(platform string) string {
	switch platform {
	case "patreon":
		return c.Session.Patreon
	default:
		return c.Session.Fanbox
	}
}

// DatabaseDSN returns the store DSN, defaulting to archive.db in the output directory
func (c *Config) DatabaseDSN() string {
	if c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	return filepath.Join(c.Output.Directory, "archive.db")
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges flags that were explicitly set on the command line
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["platform"].(string); ok && v != "" {
		c.Platform = strings.ToLower(v)
	}
	if v, ok := flags["session"].(string); ok && v != "" {
		if c.Platform == "patreon" {
			c.Session.Patreon = v
		} else {
			c.Session.Fanbox = v
		}
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Session.Account = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["save"].(string); ok && v != "" {
		c.Filter.Save = SaveType(strings.ToLower(v))
	}
	if v, ok := flags["whitelist"].([]string); ok && len(v) > 0 {
		c.Filter.Whitelist = v
	}
	if v, ok := flags["blacklist"].([]string); ok && len(v) > 0 {
		c.Filter.Blacklist = v
	}
	if v, ok := flags["skip-free"].(bool); ok {
		c.Filter.SkipFree = v
	}
	if v, ok := flags["force"].(bool); ok {
		c.Filter.Force = v
	}
	if v, ok := flags["overwrite"].(bool); ok {
		c.Output.Overwrite = v
	}
	if v, ok := flags["limit"].(int); ok && v > 0 {
		c.Download.Concurrency = v
	}
	if v, ok := flags["db-driver"].(string); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := flags["db-dsn"].(string); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := flags["cron"].(string); ok && v != "" {
		c.Schedule.Cron = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Command line flags > environment > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".archivist.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
