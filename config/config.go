// Package config turns the engine's string-based runtime configuration
// (environment variables, flags, or a YAML file) into strongly-typed
// values before any deletion is attempted. Malformed filter strings and
// unknown service names are fatal ConfigErrors at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skyfell/reaper/types"
)

// Environment variable names match the deployment wiring that invokes
// the engine on a schedule.
const (
	EnvRegions          = "AWS_REGIONS"
	EnvIncludeResources = "INCLUDE_RESOURCES"
	EnvExcludeResources = "EXCLUDE_RESOURCES"
	EnvOlderThan        = "OLDER_THAN"
	EnvRequiredTags     = "REQUIRED_TAGS"
	EnvMaxConcurrency   = "MAX_CONCURRENCY"
	EnvRunTimeout       = "RUN_TIMEOUT"
	EnvDryRun           = "DRY_RUN"
)

// Config is the fully-parsed engine configuration.
type Config struct {
	// Regions to fan out over. Empty means the ambient default region.
	Regions []string

	// Include limits the run to these services; takes precedence over
	// Exclude for any service present in both.
	Include []types.Service
	Exclude []types.Service

	// OlderThan is the minimum age a resource must reach before it is
	// eligible. Zero disables age filtering.
	OlderThan time.Duration

	// RequiredTags exempt any resource carrying one of these key=value
	// pairs from deletion.
	RequiredTags map[string]string

	// PolicyDir optionally points at a directory of Rego protection
	// policies evaluated on top of the tag exemptions.
	PolicyDir string

	// MaxConcurrency bounds the number of (region, service) pairs
	// processed at once.
	MaxConcurrency int

	// RunTimeout bounds the whole run. Zero means no limit.
	RunTimeout time.Duration

	// DryRun enumerates and filters but never deletes.
	DryRun bool

	// JournalPath is the bbolt file recording finalized run reports.
	JournalPath string
}

// ConfigError marks a fatal configuration problem detected at startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// fileConfig is the YAML form of Config, string-typed like the
// environment variables.
type fileConfig struct {
	Regions        []string `yaml:"regions,omitempty"`
	Include        string   `yaml:"include_resources,omitempty"`
	Exclude        string   `yaml:"exclude_resources,omitempty"`
	OlderThan      string   `yaml:"older_than,omitempty"`
	RequiredTags   string   `yaml:"required_tags,omitempty"`
	PolicyDir      string   `yaml:"policy_dir,omitempty"`
	MaxConcurrency int      `yaml:"max_concurrency,omitempty"`
	RunTimeout     string   `yaml:"run_timeout,omitempty"`
	DryRun         bool     `yaml:"dry_run,omitempty"`
	JournalPath    string   `yaml:"journal_path,omitempty"`
}

// Load reads a YAML config file and parses it into a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return fc.build()
}

// FromEnv builds a Config from the process environment, the way the
// scheduled function receives its invocation payload.
func FromEnv() (*Config, error) {
	fc := fileConfig{
		Include:      os.Getenv(EnvIncludeResources),
		Exclude:      os.Getenv(EnvExcludeResources),
		OlderThan:    os.Getenv(EnvOlderThan),
		RequiredTags: os.Getenv(EnvRequiredTags),
		RunTimeout:   os.Getenv(EnvRunTimeout),
	}

	if regions := os.Getenv(EnvRegions); regions != "" {
		fc.Regions = SplitList(regions)
	}
	if raw := os.Getenv(EnvMaxConcurrency); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, configErr(EnvMaxConcurrency, err)
		}
		fc.MaxConcurrency = n
	}
	if raw := os.Getenv(EnvDryRun); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, configErr(EnvDryRun, err)
		}
		fc.DryRun = b
	}

	return fc.build()
}

func (fc fileConfig) build() (*Config, error) {
	cfg := &Config{
		Regions:        fc.Regions,
		PolicyDir:      fc.PolicyDir,
		MaxConcurrency: fc.MaxConcurrency,
		DryRun:         fc.DryRun,
		JournalPath:    fc.JournalPath,
	}

	var err error
	if cfg.Include, err = ParseServiceList(fc.Include); err != nil {
		return nil, configErr("include_resources", err)
	}
	if cfg.Exclude, err = ParseServiceList(fc.Exclude); err != nil {
		return nil, configErr("exclude_resources", err)
	}
	if cfg.RequiredTags, err = ParseTagList(fc.RequiredTags); err != nil {
		return nil, configErr("required_tags", err)
	}
	if fc.OlderThan != "" {
		if cfg.OlderThan, err = ParseDuration(fc.OlderThan); err != nil {
			return nil, configErr("older_than", err)
		}
	}
	if fc.RunTimeout != "" {
		if cfg.RunTimeout, err = ParseDuration(fc.RunTimeout); err != nil {
			return nil, configErr("run_timeout", err)
		}
	}

	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 8
	}
	if c.JournalPath == "" {
		c.JournalPath = "reaper.db"
	}
}

// Validate ensures the parsed config is internally consistent.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return configErr("max_concurrency", fmt.Errorf("must be at least 1, got %d", c.MaxConcurrency))
	}
	if c.OlderThan < 0 {
		return configErr("older_than", fmt.Errorf("must not be negative"))
	}
	return nil
}

// Services returns the effective set of services for the run: the
// include list if given, otherwise every supported service. Excluded
// services are handled by the filter pipeline, not here, so that the
// include-over-exclude precedence stays in one place.
func (c *Config) Services() []types.Service {
	if len(c.Include) > 0 {
		return c.Include
	}
	return types.AllServices()
}

// ParseServiceList parses a comma-separated service list such as
// "ec2,rds,s3". Unknown names are errors.
func ParseServiceList(raw string) ([]types.Service, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var services []types.Service
	seen := make(map[types.Service]bool)
	for _, part := range SplitList(raw) {
		svc, err := types.ParseService(part)
		if err != nil {
			return nil, err
		}
		if seen[svc] {
			continue
		}
		seen[svc] = true
		services = append(services, svc)
	}
	return services, nil
}

// ParseTagList parses a comma-separated "key=value" list into a tag map.
func ParseTagList(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	tags := make(map[string]string)
	for _, part := range SplitList(raw) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed tag %q, want key=value", part)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return nil, fmt.Errorf("malformed tag %q, empty key", part)
		}
		tags[key] = value
	}
	return tags, nil
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
