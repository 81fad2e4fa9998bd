package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"plansheet/internal/schedule"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore, e.g. PLANSHEET_API__BASE_URL -> api.base_url.
const EnvPrefix = "PLANSHEET_"

// APIConfig describes the content API and its token endpoint.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	TokenURL       string `yaml:"token_url" json:"token_url"`
	ClientID       string `yaml:"client_id" json:"client_id"`
	ClientSecret   string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	Username       string `yaml:"username" json:"username"`
	Password       string `yaml:"password,omitempty" json:"password,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SearchConfig scopes the service search to one weekday of the current week.
type SearchConfig struct {
	// Weekday is the target day, e.g. "sunday".
	Weekday string `yaml:"weekday" json:"weekday"`
	// Timezone is the IANA zone whose calendar defines the day window.
	Timezone string   `yaml:"timezone" json:"timezone"`
	Statuses []string `yaml:"statuses" json:"statuses"`
}

// ProfilesConfig points at the profile source. Inline wins over File.
type ProfilesConfig struct {
	Inline string `yaml:"inline,omitempty" json:"inline,omitempty"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// OutputConfig controls the artifact directory.
type OutputConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	Reset    bool   `yaml:"reset" json:"reset"`
	KeepHTML bool   `yaml:"keep_html" json:"keep_html"`
}

// ConverterConfig selects how markup becomes PDF.
type ConverterConfig struct {
	// Kind is "chromium" (default) or "command".
	Kind string `yaml:"kind" json:"kind"`
	// Command is the converter command line for Kind "command".
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
	// ChromePath overrides Chromium discovery.
	ChromePath     string `yaml:"chrome_path,omitempty" json:"chrome_path,omitempty"`
	NoSandbox      bool   `yaml:"no_sandbox" json:"no_sandbox"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Interactive modes.
const (
	InteractiveAuto   = "auto"
	InteractiveAlways = "always"
	InteractiveNever  = "never"
)

// Converter kinds.
const (
	ConverterChromium = "chromium"
	ConverterCommand  = "command"
)

// Config is the top-level application configuration. It is built once at
// startup and passed by value into each component.
type Config struct {
	API    APIConfig    `yaml:"api" json:"api"`
	Search SearchConfig `yaml:"search" json:"search"`

	// ServiceID and PlanID bypass search and selection when set.
	ServiceID string `yaml:"service_id,omitempty" json:"service_id,omitempty"`
	PlanID    string `yaml:"plan_id,omitempty" json:"plan_id,omitempty"`

	// DisplayTimezone localizes the plan start in the sheet header.
	DisplayTimezone string `yaml:"display_timezone" json:"display_timezone"`
	// LocalTimezone localizes row clocks and the version block. Empty
	// means the host's local zone.
	LocalTimezone string `yaml:"local_timezone,omitempty" json:"local_timezone,omitempty"`

	Profiles ProfilesConfig `yaml:"profiles" json:"profiles"`
	// Stylesheet is an optional CSS override path.
	Stylesheet string `yaml:"stylesheet,omitempty" json:"stylesheet,omitempty"`

	Output    OutputConfig    `yaml:"output" json:"output"`
	Converter ConverterConfig `yaml:"converter" json:"converter"`

	// Interactive is "auto", "always" or "never".
	Interactive string    `yaml:"interactive" json:"interactive"`
	Log         LogConfig `yaml:"log" json:"log"`
}

var defaultStatuses = []string{"published"}

// DefaultConfig returns an in-memory default configuration. API endpoints
// and credentials have no defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		API: APIConfig{
			ClientID:       "plansheet",
			TimeoutSeconds: 15,
		},
		Search: SearchConfig{
			Weekday:  "sunday",
			Timezone: "America/Chicago",
			Statuses: append([]string(nil), defaultStatuses...),
		},
		DisplayTimezone: "America/Chicago",
		Output: OutputConfig{
			Dir: "./plansheets",
		},
		Converter: ConverterConfig{
			Kind:           ConverterChromium,
			TimeoutSeconds: 30,
		},
		Interactive: InteractiveAuto,
		Log:         LogConfig{Level: "info", Format: "auto"},
	}
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 15
	}
	if c.Search.Weekday == "" {
		c.Search.Weekday = "sunday"
	}
	if len(c.Search.Statuses) == 0 {
		c.Search.Statuses = append([]string(nil), defaultStatuses...)
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./plansheets"
	}
	if c.Converter.Kind == "" {
		c.Converter.Kind = ConverterChromium
	}
	c.Converter.Kind = strings.ToLower(c.Converter.Kind)
	if c.Converter.TimeoutSeconds <= 0 {
		c.Converter.TimeoutSeconds = 30
	}
	switch strings.ToLower(c.Interactive) {
	case InteractiveAlways, "true", "yes":
		c.Interactive = InteractiveAlways
	case InteractiveNever, "false", "no":
		c.Interactive = InteractiveNever
	default:
		c.Interactive = InteractiveAuto
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
}

// Validate reports configuration errors that must stop the run before any
// network call is made.
func (c *Config) Validate() error {
	var problems []string
	if c.API.BaseURL == "" {
		problems = append(problems, "api.base_url is required")
	}
	if c.API.TokenURL == "" {
		problems = append(problems, "api.token_url is required")
	}
	if _, err := schedule.ParseWeekday(c.Search.Weekday); err != nil {
		problems = append(problems, "search.weekday: "+err.Error())
	}
	for key, zone := range map[string]string{
		"search.timezone":  c.Search.Timezone,
		"display_timezone": c.DisplayTimezone,
		"local_timezone":   c.LocalTimezone,
	} {
		if _, err := schedule.LoadLocation(zone); err != nil {
			problems = append(problems, key+": "+err.Error())
		}
	}
	switch c.Converter.Kind {
	case ConverterChromium:
	case ConverterCommand:
		if strings.TrimSpace(c.Converter.Command) == "" {
			problems = append(problems, "converter.command is required for converter.kind=command")
		}
	default:
		problems = append(problems, fmt.Sprintf("converter.kind %q is not one of chromium, command", c.Converter.Kind))
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// APITimeout returns the per-request timeout of the content API.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// ConverterTimeout returns the per-profile conversion timeout.
func (c *Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.TimeoutSeconds) * time.Second
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from DefaultConfig, the optional file at
// path and PLANSHEET_* environment variables, later sources winning.
//
// Behavior:
//   - path == "": environment only
//   - path set but missing: error naming the path
//   - .yaml/.yml/.json are accepted
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = koanfyaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600, since the file may hold the
//     API password.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".plansheet-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.API.Password != "" {
		c.API.Password = "********"
	}
	if c.API.ClientSecret != "" {
		c.API.ClientSecret = "********"
	}
	return c
}
