package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen                = ":8889"
	DefaultStatusUpdatePeriodSec = 1.0
	DefaultSchedulePolicy        = "spaced"
	DefaultScheduleChannels      = 1
	DefaultScheduleSlots         = 1
	DefaultScheduleSeparation    = 1
	DefaultSchedulePeriodSec     = 5.0
	DefaultNATSSubject           = "meshctl.status"
	DefaultMetricsWindow         = "5m"
	DefaultLogMaxSizeMB          = 50
	DefaultLogMaxBackups         = 3
	DefaultLogMaxAgeDays         = 28
)

// Config is the node configuration file.
type Config struct {
	Node     *NodeConfig     `yaml:"node,omitempty"`
	Schedule *ScheduleConfig `yaml:"schedule,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// NodeConfig holds per-radio control-plane settings.
type NodeConfig struct {
	ID                    uint32   `yaml:"id"`
	Listen                string   `yaml:"listen"`
	Peer                  string   `yaml:"peer"`
	MulticastGroup        string   `yaml:"multicast_group,omitempty"`
	MulticastIface        string   `yaml:"multicast_iface,omitempty"`
	StatusUpdatePeriodSec float64  `yaml:"status_update_period_sec"`
	Gateway               bool     `yaml:"gateway"`
	Location              Location `yaml:"location"`
	RosterPath            string   `yaml:"roster_path,omitempty"`
	APIListen             string   `yaml:"api_listen,omitempty"`
	MetricsPath           string   `yaml:"metrics_path,omitempty"`
	NATSURL               string   `yaml:"nats_url,omitempty"`
	NATSSubject           string   `yaml:"nats_subject,omitempty"`
	Frequency             float64  `yaml:"frequency"`
	Bandwidth             float64  `yaml:"bandwidth"`
}

// Location is a static node position.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

// ScheduleConfig is used by the gateway to compute schedules.
type ScheduleConfig struct {
	Policy     string  `yaml:"policy"`
	Channels   int     `yaml:"channels"`
	Slots      int     `yaml:"slots"`
	Separation int     `yaml:"separation"`
	PeriodSec  float64 `yaml:"period_sec"`
}

// LogConfig enables rotating file logs.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.Node == nil {
		return fmt.Errorf("config must contain a node section")
	}
	if cfg.Node.ID == 0 {
		return fmt.Errorf("node.id is required and must be non-zero")
	}
	if cfg.Node.StatusUpdatePeriodSec <= 0 {
		return fmt.Errorf("node.status_update_period_sec must be positive")
	}
	if cfg.Node.MulticastIface != "" && cfg.Node.MulticastGroup == "" {
		return fmt.Errorf("node.multicast_iface requires node.multicast_group")
	}
	if s := cfg.Schedule; s != nil {
		switch s.Policy {
		case "single", "spaced", "fair":
		default:
			return fmt.Errorf("schedule.policy %q is not one of single, spaced, fair", s.Policy)
		}
		if s.Channels < 1 || s.Slots < 1 || s.Separation < 1 {
			return fmt.Errorf("schedule.channels, slots and separation must be at least 1")
		}
		if s.PeriodSec <= 0 {
			return fmt.Errorf("schedule.period_sec must be positive")
		}
	}
	if cfg.Node.Gateway && cfg.Schedule == nil {
		return fmt.Errorf("gateway nodes need a schedule section")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Node != nil {
		if cfg.Node.Listen == "" {
			cfg.Node.Listen = DefaultListen
		}
		if cfg.Node.StatusUpdatePeriodSec == 0 {
			cfg.Node.StatusUpdatePeriodSec = DefaultStatusUpdatePeriodSec
		}
		if cfg.Node.NATSURL != "" && cfg.Node.NATSSubject == "" {
			cfg.Node.NATSSubject = DefaultNATSSubject
		}
	}

	if cfg.Schedule != nil {
		if cfg.Schedule.Policy == "" {
			cfg.Schedule.Policy = DefaultSchedulePolicy
		}
		if cfg.Schedule.Channels == 0 {
			cfg.Schedule.Channels = DefaultScheduleChannels
		}
		if cfg.Schedule.Slots == 0 {
			cfg.Schedule.Slots = DefaultScheduleSlots
		}
		if cfg.Schedule.Separation == 0 {
			cfg.Schedule.Separation = DefaultScheduleSeparation
		}
		if cfg.Schedule.PeriodSec == 0 {
			cfg.Schedule.PeriodSec = DefaultSchedulePeriodSec
		}
	}

	if cfg.Log != nil && cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = DefaultLogMaxSizeMB
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = DefaultLogMaxBackups
		}
		if cfg.Log.MaxAgeDays == 0 {
			cfg.Log.MaxAgeDays = DefaultLogMaxAgeDays
		}
	}
}
