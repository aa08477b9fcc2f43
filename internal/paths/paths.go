package paths

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// Paths holds the resolved paths for config, data and the target registry
type Paths struct {
	ConfigFile  string
	DataDir     string
	TargetsFile string
	LogFile     string
}

// DefaultPaths returns the default paths based on current user
// Root user: /etc/pingheat/, /var/lib/pingheat/, /var/log/pingheat/
// Non-root: ~/.pingheat/config/, ~/.pingheat/data/, ~/.pingheat/
func DefaultPaths() (*Paths, error) {
	if os.Geteuid() == 0 {
		return &Paths{
			ConfigFile:  "/etc/pingheat/config.yaml",
			DataDir:     "/var/lib/pingheat",
			TargetsFile: "/etc/pingheat/servers.txt",
			LogFile:     "/var/log/pingheat/pingheat.log",
		}, nil
	}

	usr, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return ForBase(filepath.Join(usr.HomeDir, ".pingheat")), nil
}

// ForBase lays out all paths below a single directory
func ForBase(baseDir string) *Paths {
	return &Paths{
		ConfigFile:  filepath.Join(baseDir, "config", "config.yaml"),
		DataDir:     filepath.Join(baseDir, "data"),
		TargetsFile: filepath.Join(baseDir, "config", "servers.txt"),
		LogFile:     filepath.Join(baseDir, "pingheat.log"),
	}
}

// EnsureDirectories creates all necessary directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(p.ConfigFile),
		p.DataDir,
		filepath.Dir(p.TargetsFile),
		filepath.Dir(p.LogFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ConfigExists checks if the config file exists
func (p *Paths) ConfigExists() bool {
	_, err := os.Stat(p.ConfigFile)
	return err == nil
}

// String returns a human-readable representation of the paths
func (p *Paths) String() string {
	return fmt.Sprintf("Config: %s, Data: %s, Targets: %s", p.ConfigFile, p.DataDir, p.TargetsFile)
}

// CreateDefaultConfig creates a default config file pointing at this layout.
// Returns true if a new config was created, false if it already existed.
func (p *Paths) CreateDefaultConfig() (bool, error) {
	if p.ConfigExists() {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(p.ConfigFile), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# pingheat configuration

server:
  address: ":8080"
  enable_api: true
  enable_tui: false

global:
  interval: 5s
  # burst deadline, 0 allows one second per ping plus one (capped below interval)
  timeout: 0s
  pings: 5
  data_dir: %q
  # address;description;color;ping_delay per line
  targets_file: %q

storage:
  flush_threshold: 4096
  rrd:
    enabled: false

heatmap:
  final_bucket: drop
  refresh_interval: 10m

# Targets listed here are probed in addition to the targets file
targets: []
  # - name: "Web Server"
  #   host: "example.com"
  #   port: 443
  #   probe: tcp
`, p.DataDir, p.TargetsFile)

	if err := os.WriteFile(p.ConfigFile, []byte(defaultConfig), 0644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, nil
}
