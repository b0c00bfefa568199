// Package config loads the JSONC configuration shared by the commands and
// lets command-line flags override it.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

var (
	ErrNotFound = errors.New("config file not found")
	ErrRead     = errors.New("cannot read config file")
	ErrInvalid  = errors.New("invalid config")
)

// Duration is a time.Duration written as a string ("250ms") in config files.
type Duration struct{ time.Duration }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Source configures the synthetic paged source.
type Source struct {
	Items     int      `json:"items"`
	Latency   Duration `json:"latency"`
	FailEvery int      `json:"fail_every"`
	// RateLimit caps fetches per second; 0 disables the limiter.
	RateLimit float64 `json:"rate_limit"`
	// MaxInFlight caps concurrent fetches; 0 disables the bound.
	MaxInFlight int `json:"max_in_flight"`
}

// Cache configures the segment cache.
type Cache struct {
	SegmentSize        int    `json:"segment_size"`
	MaxSegments        int    `json:"max_segments"`
	Policy             string `json:"policy"`
	MaxConcurrentLoads int    `json:"max_concurrent_loads"`
}

// Viewport configures the geometry engine.
type Viewport struct {
	RowHeight      float64  `json:"row_height"`
	Columns        int      `json:"columns"`
	BufferRows     int      `json:"buffer_rows"`
	MinUpdateDelta int      `json:"min_update_delta"`
	QueryDelay     Duration `json:"query_delay"`
}

// Bench configures the scroll workload of cmd/bench.
type Bench struct {
	Duration    Duration `json:"duration"`
	Viewers     int      `json:"viewers"`
	Height      float64  `json:"height"`
	Report      string   `json:"report"`
	MetricsAddr string   `json:"metrics_addr"`
	Seed        int64    `json:"seed"`
}

// Config holds all configuration options.
type Config struct {
	LogLevel string   `json:"log_level"`
	Source   Source   `json:"source"`
	Cache    Cache    `json:"cache"`
	Viewport Viewport `json:"viewport"`
	Bench    Bench    `json:"bench"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Source: Source{
			Items:   10_000,
			Latency: Duration{20 * time.Millisecond},
		},
		Cache: Cache{
			SegmentSize: 100,
			MaxSegments: 32,
			Policy:      "lru",
		},
		Viewport: Viewport{
			RowHeight:      1,
			Columns:        1,
			BufferRows:     5,
			MinUpdateDelta: 2,
			QueryDelay:     Duration{100 * time.Millisecond},
		},
		Bench: Bench{
			Duration: Duration{5 * time.Second},
			Viewers:  8,
			Height:   40,
			Seed:     1,
		},
	}
}

// Load returns the defaults overlaid with the JSONC file at path.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Config{}, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSONC data over cfg. Fields absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("%w: invalid JSONC: %w", ErrInvalid, err)
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Source.Items < 0:
		return fmt.Errorf("%w: source.items must not be negative", ErrInvalid)
	case c.Source.FailEvery < 0:
		return fmt.Errorf("%w: source.fail_every must not be negative", ErrInvalid)
	case c.Source.RateLimit < 0:
		return fmt.Errorf("%w: source.rate_limit must not be negative", ErrInvalid)
	case c.Cache.SegmentSize <= 0:
		return fmt.Errorf("%w: cache.segment_size must be positive", ErrInvalid)
	case c.Cache.MaxSegments < 0:
		return fmt.Errorf("%w: cache.max_segments must not be negative", ErrInvalid)
	case c.Cache.Policy != "lru" && c.Cache.Policy != "2q":
		return fmt.Errorf("%w: cache.policy %q (use lru or 2q)", ErrInvalid, c.Cache.Policy)
	case c.Viewport.RowHeight <= 0:
		return fmt.Errorf("%w: viewport.row_height must be positive", ErrInvalid)
	case c.Viewport.Columns <= 0:
		return fmt.Errorf("%w: viewport.columns must be positive", ErrInvalid)
	case c.Bench.Viewers <= 0:
		return fmt.Errorf("%w: bench.viewers must be positive", ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}

// Format returns the config as indented JSON.
func Format(c Config) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}

// override copies one field from the flag staging config into the loaded one.
type override struct {
	name string
	copy func(dst, src *Config)
}

var overrides = []override{
	{"log-level", func(d, s *Config) { d.LogLevel = s.LogLevel }},
	{"items", func(d, s *Config) { d.Source.Items = s.Source.Items }},
	{"latency", func(d, s *Config) { d.Source.Latency = s.Source.Latency }},
	{"fail-every", func(d, s *Config) { d.Source.FailEvery = s.Source.FailEvery }},
	{"rate", func(d, s *Config) { d.Source.RateLimit = s.Source.RateLimit }},
	{"in-flight", func(d, s *Config) { d.Source.MaxInFlight = s.Source.MaxInFlight }},
	{"segment", func(d, s *Config) { d.Cache.SegmentSize = s.Cache.SegmentSize }},
	{"max-segments", func(d, s *Config) { d.Cache.MaxSegments = s.Cache.MaxSegments }},
	{"policy", func(d, s *Config) { d.Cache.Policy = s.Cache.Policy }},
	{"columns", func(d, s *Config) { d.Viewport.Columns = s.Viewport.Columns }},
	{"buffer-rows", func(d, s *Config) { d.Viewport.BufferRows = s.Viewport.BufferRows }},
	{"query-delay", func(d, s *Config) { d.Viewport.QueryDelay = s.Viewport.QueryDelay }},
	{"duration", func(d, s *Config) { d.Bench.Duration = s.Bench.Duration }},
	{"viewers", func(d, s *Config) { d.Bench.Viewers = s.Bench.Viewers }},
	{"report", func(d, s *Config) { d.Bench.Report = s.Bench.Report }},
	{"http", func(d, s *Config) { d.Bench.MetricsAddr = s.Bench.MetricsAddr }},
	{"seed", func(d, s *Config) { d.Bench.Seed = s.Bench.Seed }},
}

// RegisterFlags adds the shared override flags to fs, staging their values
// in dst. Defaults shown in help are those of Default.
func RegisterFlags(fs *flag.FlagSet, dst *Config) {
	def := Default()
	*dst = def
	fs.StringVar(&dst.LogLevel, "log-level", def.LogLevel, "log level (debug|info|warn|error)")
	fs.IntVar(&dst.Source.Items, "items", def.Source.Items, "number of items in the synthetic source")
	fs.DurationVar(&dst.Source.Latency.Duration, "latency", def.Source.Latency.Duration, "simulated fetch latency")
	fs.IntVar(&dst.Source.FailEvery, "fail-every", def.Source.FailEvery, "fail every n-th fetch (0 = never)")
	fs.Float64Var(&dst.Source.RateLimit, "rate", def.Source.RateLimit, "fetches per second (0 = unlimited)")
	fs.IntVar(&dst.Source.MaxInFlight, "in-flight", def.Source.MaxInFlight, "concurrent fetch bound (0 = unbounded)")
	fs.IntVar(&dst.Cache.SegmentSize, "segment", def.Cache.SegmentSize, "segment size in items")
	fs.IntVar(&dst.Cache.MaxSegments, "max-segments", def.Cache.MaxSegments, "resident segment bound (0 = unbounded)")
	fs.StringVar(&dst.Cache.Policy, "policy", def.Cache.Policy, "residency policy: lru | 2q")
	fs.IntVar(&dst.Viewport.Columns, "columns", def.Viewport.Columns, "grid columns (1 = list)")
	fs.IntVar(&dst.Viewport.BufferRows, "buffer-rows", def.Viewport.BufferRows, "rows rendered beyond each edge")
	fs.DurationVar(&dst.Viewport.QueryDelay.Duration, "query-delay", def.Viewport.QueryDelay.Duration, "pagination debounce")
	fs.DurationVar(&dst.Bench.Duration.Duration, "duration", def.Bench.Duration.Duration, "benchmark duration")
	fs.IntVar(&dst.Bench.Viewers, "viewers", def.Bench.Viewers, "concurrent simulated viewers")
	fs.StringVar(&dst.Bench.Report, "report", def.Bench.Report, "write a JSON report to this path")
	fs.StringVar(&dst.Bench.MetricsAddr, "http", def.Bench.MetricsAddr, "serve Prometheus metrics at addr (empty = disabled)")
	fs.Int64Var(&dst.Bench.Seed, "seed", def.Bench.Seed, "random seed")
}

// ApplyFlags copies every flag explicitly set on the command line from the
// staging config src into cfg, then validates the result.
func ApplyFlags(fs *flag.FlagSet, cfg *Config, src Config) error {
	for _, o := range overrides {
		if fs.Changed(o.name) {
			o.copy(cfg, &src)
		}
	}
	return cfg.Validate()
}
