package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for server mode
type ServerConfig struct {
	Host string
	Port int
}

// HelperConfig holds configuration for helper mode
type HelperConfig struct {
	ControllerURL string
	StartupDelay  time.Duration
	Timeout       int
	PollInterval  time.Duration
}

// DockerConfig holds Docker client configuration
type DockerConfig struct {
	Host string
}

// HostsyncConfig holds configuration for the hosts-file synchronizer daemon
type HostsyncConfig struct {
	Network            string
	Suffix             string
	HostsFile           string
	ResyncInterval      time.Duration
	DebounceWindow      time.Duration
	MaxDebounceWindow   time.Duration
}

// DefaultHostsyncConfig returns the synchronizer defaults matching spec.md §4.7.
func DefaultHostsyncConfig() HostsyncConfig {
	return HostsyncConfig{
		Network:           "saltbox",
		Suffix:            "saltbox",
		HostsFile:         "/etc/hosts",
		ResyncInterval:    5 * time.Minute,
		DebounceWindow:    1 * time.Second,
		MaxDebounceWindow: 5 * time.Second,
	}
}

// FileConfig is the shape of an optional YAML config file. Any field left
// zero-valued falls back to the corresponding CLI flag default. CLI flags
// that were explicitly set always win over file values.
type FileConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Docker  struct {
		Host string `yaml:"host"`
	} `yaml:"docker"`
	Hostsync struct {
		Network           string        `yaml:"network"`
		Suffix            string        `yaml:"suffix"`
		HostsFile         string        `yaml:"hosts_file"`
		ResyncInterval    time.Duration `yaml:"resync_interval"`
		DebounceWindow    time.Duration `yaml:"debounce_window"`
		MaxDebounceWindow time.Duration `yaml:"max_debounce_window"`
	} `yaml:"hostsync"`
}

// LoadFile reads and parses a YAML config file. A missing path is not an
// error — the caller should simply keep flag/built-in defaults.
func LoadFile(path string) (*FileConfig, error) {
	if path == "" {
		return &FileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &fc, nil
}

// ApplyHostsync overlays non-zero file values onto the given defaults,
// returning the merged configuration. CLI flags should be applied by the
// caller after this, so they take final precedence.
func (fc *FileConfig) ApplyHostsync(base HostsyncConfig) HostsyncConfig {
	if fc == nil {
		return base
	}
	if fc.Hostsync.Network != "" {
		base.Network = fc.Hostsync.Network
	}
	if fc.Hostsync.Suffix != "" {
		base.Suffix = fc.Hostsync.Suffix
	}
	if fc.Hostsync.HostsFile != "" {
		base.HostsFile = fc.Hostsync.HostsFile
	}
	if fc.Hostsync.ResyncInterval > 0 {
		base.ResyncInterval = fc.Hostsync.ResyncInterval
	}
	if fc.Hostsync.DebounceWindow > 0 {
		base.DebounceWindow = fc.Hostsync.DebounceWindow
	}
	if fc.Hostsync.MaxDebounceWindow > 0 {
		base.MaxDebounceWindow = fc.Hostsync.MaxDebounceWindow
	}
	return base
}

// ApplyServer overlays non-zero file values onto the given server defaults.
func (fc *FileConfig) ApplyServer(base ServerConfig) ServerConfig {
	if fc == nil {
		return base
	}
	if fc.Host != "" {
		base.Host = fc.Host
	}
	if fc.Port != 0 {
		base.Port = fc.Port
	}
	return base
}

// ApplyDocker overlays non-zero file values onto the given Docker defaults.
func (fc *FileConfig) ApplyDocker(base DockerConfig) DockerConfig {
	if fc == nil {
		return base
	}
	if fc.Docker.Host != "" {
		base.Host = fc.Docker.Host
	}
	return base
}
