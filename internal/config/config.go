package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Config represents the root configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Global  GlobalConfig  `mapstructure:"global"`
	Storage StorageConfig `mapstructure:"storage"`
	Heatmap HeatmapConfig `mapstructure:"heatmap"`
	Log     LogConfig     `mapstructure:"log"`
	Targets []Target      `mapstructure:"targets"`
}

// ServerConfig holds API server and dashboard settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	EnableAPI bool   `mapstructure:"enable_api"`
	EnableTUI bool   `mapstructure:"enable_tui"`
}

// GlobalConfig holds global probe settings
type GlobalConfig struct {
	Interval     time.Duration `mapstructure:"interval"` // default ping_delay per target
	Timeout      time.Duration `mapstructure:"timeout"`  // 0 sizes each burst from pings
	DataDir      string        `mapstructure:"data_dir"`
	Pings        int           `mapstructure:"pings"` // echo requests per burst
	ElementCount int           `mapstructure:"element_count"`
	TargetsFile  string        `mapstructure:"targets_file"`
	Timezone     string        `mapstructure:"timezone"`
}

// StorageConfig holds durable log and mirror settings
type StorageConfig struct {
	FlushThreshold int       `mapstructure:"flush_threshold"`
	MaxRetained    int       `mapstructure:"max_retained"`
	RRD            RRDConfig `mapstructure:"rrd"`
}

// RRDConfig holds the optional RRD mirror settings
type RRDConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Retention   string  `mapstructure:"retention"`
	Aggregation string  `mapstructure:"aggregation"`
	XFF         float64 `mapstructure:"xff"`
}

// HeatmapConfig holds replay and rendering settings
type HeatmapConfig struct {
	FinalBucket     string        `mapstructure:"final_bucket"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	CacheSize       int           `mapstructure:"cache_size"`
}

// LogConfig holds process logging settings
type LogConfig struct {
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Target represents a monitoring target
type Target struct {
	Name     string        `mapstructure:"name" json:"name"`
	Host     string        `mapstructure:"host" json:"host"`
	Color    string        `mapstructure:"color" json:"color,omitempty"`
	Interval time.Duration `mapstructure:"interval" json:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
	Port     int           `mapstructure:"port" json:"port,omitempty"`
	Probe    string        `mapstructure:"probe" json:"probe_type"`
}

// Load reads configuration from the specified file. An empty path uses
// defaults and environment variables only.
func Load(configPath string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), configPath)
}

// LoadFs is Load with an explicit filesystem for the targets file
func LoadFs(fs afero.Fs, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PINGHEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetFs(fs)
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Global.TargetsFile != "" {
		registry, err := LoadRegistry(fs, cfg.Global.TargetsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load targets file: %w", err)
		}
		cfg.Targets = append(cfg.Targets, registry...)
	}

	cfg.applyTargetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.enable_api", true)
	v.SetDefault("server.enable_tui", false)
	v.SetDefault("global.interval", "5s")
	v.SetDefault("global.timeout", "0s")
	v.SetDefault("global.data_dir", "./data")
	v.SetDefault("global.pings", 5)
	v.SetDefault("global.element_count", 400)
	v.SetDefault("global.targets_file", "")
	v.SetDefault("global.timezone", "Local")
	v.SetDefault("storage.flush_threshold", 4096)
	v.SetDefault("storage.max_retained", 0)
	v.SetDefault("storage.rrd.enabled", false)
	v.SetDefault("storage.rrd.retention", "10s:1d,1m:7d,1h:90d")
	v.SetDefault("storage.rrd.aggregation", "average")
	v.SetDefault("storage.rrd.xff", 0.5)
	v.SetDefault("heatmap.final_bucket", "drop")
	v.SetDefault("heatmap.refresh_interval", "10m")
	v.SetDefault("heatmap.cache_size", 64)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

// applyTargetDefaults fills per-target fields left empty from the global section
func (c *Config) applyTargetDefaults() {
	for i := range c.Targets {
		if c.Targets[i].Probe == "" {
			c.Targets[i].Probe = "exec"
		}
		if c.Targets[i].Interval == 0 {
			c.Targets[i].Interval = c.Global.Interval
		}
		if c.Targets[i].Name == "" {
			c.Targets[i].Name = c.Targets[i].Host
		}
		c.Targets[i].Timeout = c.TargetTimeout(c.Targets[i])
	}
}

// burstMargin is added to one second per ping when no timeout is configured
const burstMargin = time.Second

// TargetTimeout returns the deadline of one burst against t: its own timeout,
// else global.timeout, else one second per ping plus a margin. The result is
// capped at nine tenths of the target interval.
func (c *Config) TargetTimeout(t Target) time.Duration {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = c.Global.Timeout
	}
	if timeout <= 0 {
		pings := c.Global.Pings
		if pings < 1 {
			pings = 1
		}
		timeout = time.Duration(pings)*time.Second + burstMargin
	}

	interval := t.Interval
	if interval <= 0 {
		interval = c.Global.Interval
	}
	if limit := interval * 9 / 10; limit > 0 && timeout > limit {
		timeout = limit
	}
	return timeout
}

// Location returns the time zone used for hour buckets
func (c *Config) Location() (*time.Location, error) {
	switch c.Global.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Global.Timezone)
	}
}

// Validate checks configuration for required fields and valid values
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	if c.Global.Interval <= 0 {
		return fmt.Errorf("global.interval must be positive")
	}
	if c.Global.Timeout < 0 {
		return fmt.Errorf("global.timeout must not be negative")
	}
	if c.Global.Pings < 1 || c.Global.Pings > 100 {
		return fmt.Errorf("global.pings must be between 1 and 100")
	}
	if c.Global.ElementCount < 1 {
		return fmt.Errorf("global.element_count must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("global.timezone: %w", err)
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, target := range c.Targets {
		if target.Name == "" {
			return fmt.Errorf("target[%d]: name is required", i)
		}
		if target.Host == "" {
			return fmt.Errorf("target[%d] %q: host is required", i, target.Name)
		}
		if seen[target.Name] {
			return fmt.Errorf("target[%d] %q: duplicate name", i, target.Name)
		}
		seen[target.Name] = true

		switch target.Probe {
		case "exec", "icmp", "tcp":
		default:
			return fmt.Errorf("target[%d] %q: probe must be 'exec', 'icmp' or 'tcp', got %q", i, target.Name, target.Probe)
		}
		if target.Probe == "tcp" && target.Port == 0 {
			return fmt.Errorf("target[%d] %q: port is required for TCP probe", i, target.Name)
		}
		if target.Port < 0 || target.Port > 65535 {
			return fmt.Errorf("target[%d] %q: port must be between 0 and 65535", i, target.Name)
		}
		if target.Interval <= 0 {
			return fmt.Errorf("target[%d] %q: interval must be positive", i, target.Name)
		}
		if target.Timeout < 0 {
			return fmt.Errorf("target[%d] %q: timeout must not be negative", i, target.Name)
		}
	}

	if c.Storage.FlushThreshold < 1 {
		return fmt.Errorf("storage.flush_threshold must be positive")
	}
	if c.Storage.MaxRetained < 0 {
		return fmt.Errorf("storage.max_retained must not be negative")
	}

	if c.Storage.RRD.Enabled {
		if err := c.Storage.RRD.validate(); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Heatmap.FinalBucket) {
	case "", "drop", "flush":
	default:
		return fmt.Errorf("heatmap.final_bucket must be 'drop' or 'flush'")
	}
	if c.Heatmap.RefreshInterval < 0 {
		return fmt.Errorf("heatmap.refresh_interval must not be negative")
	}
	if c.Heatmap.CacheSize < 1 {
		return fmt.Errorf("heatmap.cache_size must be positive")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}

	return nil
}

func (r RRDConfig) validate() error {
	if r.XFF < 0 || r.XFF > 1 {
		return fmt.Errorf("storage.rrd.xff must be between 0 and 1")
	}

	validAggregations := map[string]bool{
		"average": true,
		"min":     true,
		"max":     true,
		"last":    true,
	}
	if !validAggregations[r.Aggregation] {
		return fmt.Errorf("storage.rrd.aggregation must be one of: average, min, max, last")
	}

	if err := validateRetention(r.Retention); err != nil {
		return fmt.Errorf("storage.rrd.retention: %w", err)
	}
	return nil
}

// validateRetention validates the RRD retention string format
// Format: "resolution:duration,resolution:duration,..."
// Examples: "10s:1d", "10s:1d,1m:7d,1h:90d"
func validateRetention(retention string) error {
	if retention == "" {
		return fmt.Errorf("retention string cannot be empty")
	}

	// Pattern for duration: number followed by s/m/h/d/w/y
	durationPattern := regexp.MustCompile(`^(\d+)(s|m|h|d|w|y)$`)

	archives := strings.Split(retention, ",")
	for i, archive := range archives {
		archive = strings.TrimSpace(archive)
		parts := strings.Split(archive, ":")
		if len(parts) != 2 {
			return fmt.Errorf("archive %d: expected format 'resolution:duration', got %q", i+1, archive)
		}

		resolution := strings.TrimSpace(parts[0])
		if !durationPattern.MatchString(resolution) {
			return fmt.Errorf("archive %d: invalid resolution %q (use format like 10s, 1m, 1h)", i+1, resolution)
		}

		duration := strings.TrimSpace(parts[1])
		if !durationPattern.MatchString(duration) {
			return fmt.Errorf("archive %d: invalid duration %q (use format like 1d, 7d, 90d)", i+1, duration)
		}
	}

	return nil
}
