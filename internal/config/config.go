// Package config loads tickpool settings from TOML or YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/azargarov/tickpool"
	"github.com/azargarov/tickpool/tick"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("config: invalid value")

// Config is the file layout. Zero values mean "use the library default".
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Tick      TickConfig      `toml:"tick" yaml:"tick"`
	Demo      DemoConfig      `toml:"demo" yaml:"demo"`
}

type SchedulerConfig struct {
	Workers       int  `toml:"workers" yaml:"workers"`
	PinWorkers    bool `toml:"pin_workers" yaml:"pin_workers"`
	QueueCapacity int  `toml:"queue_capacity" yaml:"queue_capacity"`
	Metrics       bool `toml:"metrics" yaml:"metrics"` // collect AtomicMetrics
}

type TickConfig struct {
	Rate          int     `toml:"rate" yaml:"rate"` // ticks per second
	SleepFraction float64 `toml:"sleep_fraction" yaml:"sleep_fraction"`
}

// DemoConfig shapes the synthetic batch of cmd/loadscreen.
type DemoConfig struct {
	Assets int    `toml:"assets" yaml:"assets"`
	Work   string `toml:"work" yaml:"work"` // per-asset busy time, time.ParseDuration syntax
	Mixed  bool   `toml:"mixed" yaml:"mixed"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tick: TickConfig{
			Rate:          60,
			SleepFraction: tick.DefaultSleepFraction,
		},
		Demo: DemoConfig{
			Assets: 48,
			Work:   "4ms",
			Mixed:  true,
		},
	}
}

// Load starts from Default, applies every file in order and then the
// TICKPOOL_* environment. Later files override earlier ones. The format
// is chosen by extension: .toml, .yaml or .yml.
func Load(paths ...string) (*Config, error) {
	cfg := Default()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

func applyEnvOverrides(cfg *Config) error {
	var err error
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%w: %s=%q: %w", ErrInvalid, key, v, perr)
				return
			}
			*dst = n
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("%w: %s=%q: %w", ErrInvalid, key, v, perr)
				return
			}
			*dst = b
		}
	}

	envFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("%w: %s=%q: %w", ErrInvalid, key, v, perr)
				return
			}
			*dst = f
		}
	}

	envInt("TICKPOOL_WORKERS", &cfg.Scheduler.Workers)
	envBool("TICKPOOL_PIN_WORKERS", &cfg.Scheduler.PinWorkers)
	envInt("TICKPOOL_QUEUE_CAPACITY", &cfg.Scheduler.QueueCapacity)
	envBool("TICKPOOL_METRICS", &cfg.Scheduler.Metrics)
	envInt("TICKPOOL_TICK_RATE", &cfg.Tick.Rate)
	envFloat("TICKPOOL_SLEEP_FRACTION", &cfg.Tick.SleepFraction)
	envInt("TICKPOOL_DEMO_ASSETS", &cfg.Demo.Assets)
	if v := os.Getenv("TICKPOOL_DEMO_WORK"); v != "" {
		cfg.Demo.Work = v
	}
	envBool("TICKPOOL_DEMO_MIXED", &cfg.Demo.Mixed)
	return err
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	switch {
	case c.Scheduler.Workers < 0:
		return fmt.Errorf("%w: scheduler.workers must be >= 0, got %d", ErrInvalid, c.Scheduler.Workers)
	case c.Scheduler.QueueCapacity < 0:
		return fmt.Errorf("%w: scheduler.queue_capacity must be >= 0, got %d", ErrInvalid, c.Scheduler.QueueCapacity)
	case c.Tick.Rate <= 0:
		return fmt.Errorf("%w: tick.rate must be > 0, got %d", ErrInvalid, c.Tick.Rate)
	case c.Tick.SleepFraction < 0 || c.Tick.SleepFraction > 1:
		return fmt.Errorf("%w: tick.sleep_fraction must be in [0, 1], got %g", ErrInvalid, c.Tick.SleepFraction)
	case c.Demo.Assets < 0:
		return fmt.Errorf("%w: demo.assets must be >= 0, got %d", ErrInvalid, c.Demo.Assets)
	}
	if _, err := c.Demo.WorkDuration(); err != nil {
		return err
	}
	return nil
}

// WorkDuration parses Demo.Work. An empty value means no busy time.
func (d DemoConfig) WorkDuration() (time.Duration, error) {
	if d.Work == "" {
		return 0, nil
	}
	w, err := time.ParseDuration(d.Work)
	if err != nil {
		return 0, fmt.Errorf("%w: demo.work: %w", ErrInvalid, err)
	}
	if w < 0 {
		return 0, fmt.Errorf("%w: demo.work must be >= 0, got %s", ErrInvalid, w)
	}
	return w, nil
}

// SchedulerOptions maps the scheduler section to tickpool.Options with
// defaults filled in.
func (c *Config) SchedulerOptions() tickpool.Options {
	opts := tickpool.Options{
		Workers:       c.Scheduler.Workers,
		PinWorkers:    c.Scheduler.PinWorkers,
		QueueCapacity: c.Scheduler.QueueCapacity,
	}
	if c.Scheduler.Metrics {
		opts.Metrics = &tickpool.AtomicMetrics{}
	}
	opts.FillDefaults()
	return opts
}

// Driver maps the tick section to a driver for pool.
func (c *Config) Driver(pool tick.Pool) *tick.Driver {
	return &tick.Driver{
		Rate:          c.Tick.Rate,
		SleepFraction: c.Tick.SleepFraction,
		Pool:          pool,
	}
}
