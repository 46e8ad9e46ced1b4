// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/objectstore"
)

type Config struct {
	DatabaseURL string `yaml:"database_url"`

	// Rolling power-curve windows, in 30-day months.
	CurveWindows []int `yaml:"power_curve_periods"`
	// Job frequencies in hours.
	StatsCronHours int `yaml:"stats_cron_frequency_hours"`
	CurveCronHours int `yaml:"power_curve_cron_frequency_hours"`
	JobConcurrency int `yaml:"job_concurrency"`

	// Ascending upper bounds of the power zones, in watts.
	PowerZones     []int `yaml:"power_zones"`
	ProfileSamples int   `yaml:"profile_samples"`

	ObjectStore ObjectStore `yaml:"object_store"`
	Log         Log         `yaml:"log"`
}

type ObjectStore struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

func Default() Config {
	return Config{
		CurveWindows:   []int{3, 6, 12}, // quarter, half year, year
		StatsCronHours: 24,              // nightly rebuild
		CurveCronHours: 24,              // nightly recompute
		JobConcurrency: 4,               // users processed in parallel
		ProfileSamples: ridestats.DefaultProfileSamples,
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (skipped when empty), applies the process environment and
// validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	list := func(name string, dst *[]int) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		ints, err := ParseIntList(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = ints
		return nil
	}

	str("DATABASE_URL", &c.DatabaseURL)
	str("OBJECT_STORE_ENDPOINT", &c.ObjectStore.Endpoint)
	str("OBJECT_STORE_ACCESS_KEY", &c.ObjectStore.AccessKey)
	str("OBJECT_STORE_SECRET_KEY", &c.ObjectStore.SecretKey)
	str("OBJECT_STORE_BUCKET", &c.ObjectStore.Bucket)
	str("OBJECT_STORE_PREFIX", &c.ObjectStore.Prefix)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("OBJECT_STORE_USE_SSL"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("OBJECT_STORE_USE_SSL: %w", err)
		}
		c.ObjectStore.UseSSL = b
	}

	return errors.Join(
		num("STATS_CRON_FREQUENCY_HOURS", &c.StatsCronHours),
		num("POWER_CURVE_CRON_FREQUENCY_HOURS", &c.CurveCronHours),
		num("JOB_CONCURRENCY", &c.JobConcurrency),
		num("PROFILE_SAMPLES", &c.ProfileSamples),
		list("POWER_CURVE_PERIODS", &c.CurveWindows),
		list("POWER_ZONES", &c.PowerZones),
	)
}

// ParseIntList parses a comma separated list such as "3,6,12". Blank
// entries are ignored.
func ParseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	for _, m := range c.CurveWindows {
		if m <= 0 {
			errs = append(errs, fmt.Errorf("power curve period must be positive, got %d", m))
		}
	}
	if c.StatsCronHours <= 0 {
		errs = append(errs, fmt.Errorf("stats cron frequency must be positive, got %d", c.StatsCronHours))
	}
	if c.CurveCronHours <= 0 {
		errs = append(errs, fmt.Errorf("power curve cron frequency must be positive, got %d", c.CurveCronHours))
	}
	if c.JobConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("job concurrency must be positive, got %d", c.JobConcurrency))
	}
	for i := 1; i < len(c.PowerZones); i++ {
		if c.PowerZones[i] <= c.PowerZones[i-1] {
			errs = append(errs, fmt.Errorf("power zones must be strictly ascending: %v", c.PowerZones))
			break
		}
	}
	if c.ProfileSamples < 2 {
		errs = append(errs, fmt.Errorf("profile samples must be at least 2, got %d", c.ProfileSamples))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsCronHours) * time.Hour
}

func (c Config) CurveInterval() time.Duration {
	return time.Duration(c.CurveCronHours) * time.Hour
}

// ObjectStoreEnabled reports whether sample blobs should be offloaded.
func (c Config) ObjectStoreEnabled() bool {
	return c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket != ""
}

func (c Config) ObjectStoreClient() objectstore.Config {
	return objectstore.Config{
		Endpoint:  c.ObjectStore.Endpoint,
		UseSSL:    c.ObjectStore.UseSSL,
		AccessKey: c.ObjectStore.AccessKey,
		SecretKey: c.ObjectStore.SecretKey,
		Bucket:    c.ObjectStore.Bucket,
		Prefix:    c.ObjectStore.Prefix,
	}
}

// NewLogger builds the slog handler described by l.
func NewLogger(l Log, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
