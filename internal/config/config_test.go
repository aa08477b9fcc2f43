package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestValidateRetention(t *testing.T) {
	tests := []struct {
		name      string
		retention string
		wantErr   bool
	}{
		{"valid single", "10s:1d", false},
		{"valid multiple", "10s:1d,1m:7d,1h:90d", false},
		{"valid with spaces", "10s:1d, 1m:7d", false},
		{"empty", "", true},
		{"missing duration", "10s", true},
		{"invalid resolution", "abc:1d", true},
		{"invalid duration", "10s:abc", true},
		{"extra colons", "10s:1d:extra", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRetention(tt.retention)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRetention(%q) error = %v, wantErr %v", tt.retention, err, tt.wantErr)
			}
		})
	}
}

func validConfig() Config {
	return Config{
		Server: ServerConfig{Address: ":8080", EnableAPI: true},
		Global: GlobalConfig{
			Interval:     5 * time.Second,
			Timeout:      3 * time.Second,
			Pings:        5,
			ElementCount: 400,
			Timezone:     "Local",
		},
		Storage: StorageConfig{
			FlushThreshold: 4096,
			RRD: RRDConfig{
				Enabled:     true,
				Retention:   "10s:1d",
				Aggregation: "average",
				XFF:         0.5,
			},
		},
		Heatmap: HeatmapConfig{FinalBucket: "drop", RefreshInterval: 10 * time.Minute, CacheSize: 64},
		Log:     LogConfig{Format: "text"},
		Targets: []Target{{Name: "Test", Host: "example.com", Probe: "exec", Interval: 5 * time.Second}},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"no targets", func(c *Config) { c.Targets = nil }, true},
		{"invalid pings - too low", func(c *Config) { c.Global.Pings = 0 }, true},
		{"invalid pings - too high", func(c *Config) { c.Global.Pings = 101 }, true},
		{"timeout above interval is capped", func(c *Config) { c.Global.Timeout = 10 * time.Second }, false},
		{"target interval below timeout", func(c *Config) { c.Targets[0].Interval = 2 * time.Second }, false},
		{"automatic timeout", func(c *Config) { c.Global.Timeout = 0 }, false},
		{"negative timeout", func(c *Config) { c.Global.Timeout = -time.Second }, true},
		{"negative target timeout", func(c *Config) { c.Targets[0].Timeout = -time.Second }, true},
		{"zero target interval", func(c *Config) { c.Targets[0].Interval = 0 }, true},
		{"invalid aggregation", func(c *Config) { c.Storage.RRD.Aggregation = "invalid" }, true},
		{"invalid aggregation with rrd disabled", func(c *Config) {
			c.Storage.RRD.Enabled = false
			c.Storage.RRD.Aggregation = "invalid"
		}, false},
		{"invalid xff", func(c *Config) { c.Storage.RRD.XFF = 1.5 }, true},
		{"target missing name", func(c *Config) { c.Targets[0].Name = "" }, true},
		{"duplicate target", func(c *Config) { c.Targets = append(c.Targets, c.Targets[0]) }, true},
		{"unknown probe", func(c *Config) { c.Targets[0].Probe = "udp" }, true},
		{"tcp probe missing port", func(c *Config) { c.Targets[0].Probe = "tcp" }, true},
		{"tcp probe with port", func(c *Config) {
			c.Targets[0].Probe = "tcp"
			c.Targets[0].Port = 443
		}, false},
		{"zero flush threshold", func(c *Config) { c.Storage.FlushThreshold = 0 }, true},
		{"bad final bucket", func(c *Config) { c.Heatmap.FinalBucket = "keep" }, true},
		{"flush final bucket", func(c *Config) { c.Heatmap.FinalBucket = "flush" }, false},
		{"bad timezone", func(c *Config) { c.Global.Timezone = "Mars/Olympus_Mons" }, true},
		{"utc timezone", func(c *Config) { c.Global.Timezone = "UTC" }, false},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"zero cache", func(c *Config) { c.Heatmap.CacheSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

const sampleYAML = `
server:
  address: ":9090"
global:
  interval: 10s
  data_dir: /var/lib/pingheat
  targets_file: /etc/pingheat/servers.txt
heatmap:
  final_bucket: flush
targets:
  - name: Cloudflare
    host: 1.1.1.1
    probe: icmp
  - host: 9.9.9.9
    interval: 30s
`

func TestLoadFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/etc/pingheat/config.yaml", []byte(sampleYAML), 0644)
	afero.WriteFile(fs, "/etc/pingheat/servers.txt", []byte("8.8.8.8;Google DNS;#00FF00;15\nbroken line\n"), 0644)

	cfg, err := LoadFs(fs, "/etc/pingheat/config.yaml")
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}

	if cfg.Server.Address != ":9090" || !cfg.Server.EnableAPI {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Global.Timeout != 0 || cfg.Global.Pings != 5 || cfg.Global.ElementCount != 400 {
		t.Errorf("Global defaults = %+v", cfg.Global)
	}
	if cfg.Storage.FlushThreshold != 4096 || cfg.Heatmap.FinalBucket != "flush" || cfg.Heatmap.RefreshInterval != 10*time.Minute {
		t.Errorf("Storage = %+v, Heatmap = %+v", cfg.Storage, cfg.Heatmap)
	}

	if len(cfg.Targets) != 3 {
		t.Fatalf("got %d targets, want 3: %+v", len(cfg.Targets), cfg.Targets)
	}
	want := []Target{
		{Name: "Cloudflare", Host: "1.1.1.1", Probe: "icmp", Interval: 10 * time.Second, Timeout: 6 * time.Second},
		{Name: "9.9.9.9", Host: "9.9.9.9", Probe: "exec", Interval: 30 * time.Second, Timeout: 6 * time.Second},
		{Name: "Google DNS", Host: "8.8.8.8", Color: "#00FF00", Probe: "exec", Interval: 15 * time.Second, Timeout: 6 * time.Second},
	}
	for i := range want {
		if cfg.Targets[i] != want[i] {
			t.Errorf("target[%d] = %+v, want %+v", i, cfg.Targets[i], want[i])
		}
	}
}

func TestTargetTimeout(t *testing.T) {
	tests := []struct {
		name   string
		global time.Duration
		pings  int
		target Target
		want   time.Duration
	}{
		{"derived from pings", 0, 5, Target{Interval: 10 * time.Second}, 6 * time.Second},
		{"derived and capped by default interval", 0, 5, Target{}, 4500 * time.Millisecond},
		{"global timeout", 2 * time.Second, 5, Target{Interval: 10 * time.Second}, 2 * time.Second},
		{"target timeout wins", 2 * time.Second, 5, Target{Interval: 10 * time.Second, Timeout: 4 * time.Second}, 4 * time.Second},
		{"short interval caps global", 3 * time.Second, 5, Target{Interval: 2 * time.Second}, 1800 * time.Millisecond},
		{"one second interval", 0, 5, Target{Interval: time.Second}, 900 * time.Millisecond},
		{"single ping", 0, 1, Target{Interval: 5 * time.Second}, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Global: GlobalConfig{Interval: 5 * time.Second, Timeout: tt.global, Pings: tt.pings}}
			if got := cfg.TargetTimeout(tt.target); got != tt.want {
				t.Errorf("TargetTimeout(%+v) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestLoadFsDefaultTimeoutFitsBurst(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/c.yaml", []byte("targets:\n  - host: example.com\n"), 0644)

	cfg, err := LoadFs(fs, "/c.yaml")
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}

	// five pings one second apart finish after about four seconds
	burst := time.Duration(cfg.Global.Pings-1)*time.Second + 200*time.Millisecond
	timeout := cfg.Targets[0].Timeout
	if timeout < burst {
		t.Errorf("default timeout %v is shorter than a %d ping burst (%v)", timeout, cfg.Global.Pings, burst)
	}
	if timeout >= cfg.Targets[0].Interval {
		t.Errorf("default timeout %v is not below the interval %v", timeout, cfg.Targets[0].Interval)
	}
}

func TestLoadFsEnvOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/c.yaml", []byte("targets:\n  - host: example.com\n"), 0644)
	t.Setenv("PINGHEAT_GLOBAL_PINGS", "7")

	cfg, err := LoadFs(fs, "/c.yaml")
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}
	if cfg.Global.Pings != 7 {
		t.Errorf("Global.Pings = %d, want 7 from environment", cfg.Global.Pings)
	}
}

func TestLoadFsErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	if _, err := LoadFs(fs, "/missing.yaml"); err == nil {
		t.Error("LoadFs(missing) error = nil")
	}

	afero.WriteFile(fs, "/empty.yaml", []byte("server:\n  address: \":1\"\n"), 0644)
	_, err := LoadFs(fs, "/empty.yaml")
	if err == nil || !strings.Contains(err.Error(), "at least one target") {
		t.Errorf("LoadFs(no targets) error = %v", err)
	}
}

func TestLocation(t *testing.T) {
	cfg := validConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v; want Local", loc, err)
	}

	cfg.Global.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("Location() = %v, %v; want UTC", loc, err)
	}
}
