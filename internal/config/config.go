// Package config loads and validates kalarmd's on-disk settings (§4.11),
// generalising the teacher's Config/DirectoryConfig/AutomaticAlerts model
// (one calendar directory plus a template and a list of fixed-offset
// auto-alerts) into a set of resource.Resource entries plus the daemon's
// global defaults, using github.com/adrg/xdg for config-file discovery and
// gopkg.in/yaml.v3 for the file format, exactly as the teacher does.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"kalarmd/internal/resource"
)

// ResourceConfig describes one configured resource.h-style backend
// (§3.4/§4.11): a file or directory location, which alarm types it is
// enabled/standard for, and its display attributes. Replaces the teacher's
// DirectoryConfig (Directory/Template/AutomaticAlerts).
type ResourceConfig struct {
	Name          string   `yaml:"name"`
	Location      string   `yaml:"location"`
	Storage       string   `yaml:"storage"`       // "file" or "directory"
	EnabledTypes  []string `yaml:"enabled_types"` // subset of "active","archived","template"
	StandardTypes []string `yaml:"standard_for"`  // subset of the same, must be ⊆ EnabledTypes
	Colour        string   `yaml:"colour"`
	ReadOnly      bool     `yaml:"read_only"`
	KeepFormat    bool     `yaml:"keep_format"`
}

// ExpandPath expands a leading "~" and environment variables in Location,
// matching the teacher's DirectoryConfig.ExpandPath.
func (r *ResourceConfig) ExpandPath() error {
	expanded := os.ExpandEnv(r.Location)
	if len(expanded) > 0 && expanded[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		expanded = filepath.Join(home, expanded[1:])
	}
	r.Location = expanded
	return nil
}

func (r ResourceConfig) storageKind() (resource.Storage, error) {
	switch strings.ToLower(r.Storage) {
	case "", "file":
		return resource.StorageFile, nil
	case "directory":
		return resource.StorageDirectory, nil
	default:
		return resource.StorageNone, fmt.Errorf("resource %q: unknown storage kind %q", r.Name, r.Storage)
	}
}

// StorageKind is the public form of storageKind, used by whatever
// constructs resource.Resource values from a loaded Config.
func (r ResourceConfig) StorageKind() (resource.Storage, error) { return r.storageKind() }

func parseTypeMask(names []string) (resource.AlarmType, error) {
	var mask resource.AlarmType
	for _, n := range names {
		switch strings.ToLower(n) {
		case "active":
			mask |= resource.Active
		case "archived":
			mask |= resource.Archived
		case "template":
			mask |= resource.Template
		default:
			return 0, fmt.Errorf("unknown alarm type %q", n)
		}
	}
	return mask, nil
}

// EnabledMask and StandardMask parse the string lists into resource.AlarmType
// bitmasks (§3.4), failing on any name outside active/archived/template.
func (r ResourceConfig) EnabledMask() (resource.AlarmType, error) { return parseTypeMask(r.EnabledTypes) }
func (r ResourceConfig) StandardMask() (resource.AlarmType, error) {
	return parseTypeMask(r.StandardTypes)
}

// NotificationConfig controls the desktop display surface (§4.9), carried
// over from the teacher's NotificationConfig but repurposed: Backend now
// names which dispatch.DisplayFactory to construct ("desktop" or "none" for
// headless testing) rather than a notify-send binary, since internal/dispatch
// talks to the notification server over D-Bus directly.
type NotificationConfig struct {
	Backend          string         `yaml:"backend"`
	Duration         DurationConfig `yaml:"duration"`
	DurationWhenLate DurationConfig `yaml:"duration_when_late"`
}

// ExpireTimeoutMillis is the value to pass to
// dispatch.NewDesktopDisplayFactory: 0 means "until dismissed".
func (n NotificationConfig) ExpireTimeoutMillis() int32 {
	ms, err := n.Duration.ToMilliseconds()
	if err != nil {
		return 0
	}
	return ms
}

// DurationConfig is unchanged from the teacher: either "until_dismissed" or
// a timed Value/Unit pair.
type DurationConfig struct {
	Type  string `yaml:"type"`
	Value int    `yaml:"value,omitempty"`
	Unit  string `yaml:"unit,omitempty"`
}

func (d DurationConfig) IsUntilDismissed() bool {
	return d.Type == "until_dismissed"
}

func (d DurationConfig) ToDuration() (time.Duration, error) {
	if d.IsUntilDismissed() {
		return 0, fmt.Errorf("cannot convert 'until_dismissed' duration to time.Duration")
	}
	if d.Value <= 0 {
		return 0, fmt.Errorf("duration value must be positive")
	}
	switch d.Unit {
	case "milliseconds", "millisecond", "ms":
		return time.Duration(d.Value) * time.Millisecond, nil
	case "seconds", "second", "s", "":
		return time.Duration(d.Value) * time.Second, nil
	case "minutes", "minute", "m":
		return time.Duration(d.Value) * time.Minute, nil
	case "hours", "hour", "h":
		return time.Duration(d.Value) * time.Hour, nil
	case "days", "day", "d":
		return time.Duration(d.Value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported time unit: %s", d.Unit)
	}
}

func (d DurationConfig) ToMilliseconds() (int32, error) {
	if d.IsUntilDismissed() {
		return 0, nil
	}
	dur, err := d.ToDuration()
	if err != nil {
		return 0, err
	}
	return int32(dur.Milliseconds()), nil
}

func (d DurationConfig) Validate() error {
	if d.Type == "" {
		return nil
	}
	if d.Type != "timed" && d.Type != "until_dismissed" {
		return fmt.Errorf("duration type must be 'timed' or 'until_dismissed', got: %s", d.Type)
	}
	if d.Type == "timed" {
		if d.Value <= 0 {
			return fmt.Errorf("duration value must be positive for 'timed' type")
		}
		_, err := d.ToDuration()
		return err
	}
	return nil
}

// CatchupConfig controls how overdue active alarms missed while the daemon
// was not running (host suspended, process restarted) are handled at
// startup. Replaces the teacher's WakeupHandlingConfig, whose literal
// "wake from suspend" trigger has no desktop-session hook available to this
// daemon; the policy itself (fire everything / summarise / fire only
// high-priority / skip) is grounded on the same WakeupHandlingConfig shape and
// applies equally well to "missed while the process was not running",
// which is the case this daemon can actually detect, at startup, by
// comparing each active event's NextMain against the current time.
type CatchupConfig struct {
	Enable            bool           `yaml:"enable"`
	MissedEventPolicy string         `yaml:"missed_event_policy"` // "all","summary","priority_only","skip"
	MaxMissedDays     int            `yaml:"max_missed_days"`
	SummaryThreshold  int            `yaml:"summary_threshold"`
	MaxCatchupTime    DurationConfig `yaml:"max_catchup_time"`
}

func (c *CatchupConfig) validateAndDefault() error {
	if c.MissedEventPolicy == "" {
		c.MissedEventPolicy = "all"
	}
	switch c.MissedEventPolicy {
	case "all", "summary", "priority_only", "skip":
	default:
		return fmt.Errorf("invalid missed_event_policy: %s", c.MissedEventPolicy)
	}
	if c.MaxMissedDays <= 0 {
		c.MaxMissedDays = 7
	}
	if c.SummaryThreshold <= 0 {
		c.SummaryThreshold = 5
	}
	if c.MaxCatchupTime.Type == "" {
		c.MaxCatchupTime = DurationConfig{Type: "timed", Value: 30, Unit: "seconds"}
	}
	if err := c.MaxCatchupTime.Validate(); err != nil {
		return fmt.Errorf("catchup max_catchup_time: %w", err)
	}
	return nil
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// Config is the top-level daemon configuration (§4.11), generalised from
// the teacher's directory/template/alert model to resource entries plus the
// process-wide defaults every resource and new event inherits.
type Config struct {
	Resources    []ResourceConfig   `yaml:"resources"`
	Notification NotificationConfig `yaml:"notification"`
	Catchup      CatchupConfig      `yaml:"catchup"`
	Logging      LoggingConfig      `yaml:"logging"`

	// StartOfDay is the HH:MM boundary alarmtime.StartOfDay uses for
	// date-only recurrences (§3.1).
	StartOfDay string `yaml:"start_of_day"`
	// DefaultLateCancelMinutes/DefaultReminderMinutes seed new events
	// created without an explicit override (§3.3).
	DefaultLateCancelMinutes int `yaml:"default_late_cancel_minutes"`
	DefaultReminderMinutes   int `yaml:"default_reminder_minutes"`
}

// Validate checks the configuration and applies defaults, mirroring the
// teacher's Config.Validate.
func (c *Config) Validate() error {
	if len(c.Resources) == 0 {
		return fmt.Errorf("at least one resource must be configured")
	}

	for i := range c.Resources {
		r := &c.Resources[i]
		if r.Location == "" {
			return fmt.Errorf("resource %d: location cannot be empty", i)
		}
		if err := r.ExpandPath(); err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
		if _, err := r.storageKind(); err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
		enabled, err := r.EnabledMask()
		if err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
		standard, err := r.StandardMask()
		if err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
		if standard&^enabled != 0 {
			return fmt.Errorf("resource %d: standard_for must be a subset of enabled_types", i)
		}
	}

	if c.Notification.Backend == "" {
		c.Notification.Backend = "desktop"
	}
	if c.Notification.Backend != "desktop" && c.Notification.Backend != "none" {
		return fmt.Errorf("unsupported notification backend: %s", c.Notification.Backend)
	}
	if c.Notification.Duration.Type == "" {
		c.Notification.Duration = DurationConfig{Type: "until_dismissed"}
	}
	if err := c.Notification.Duration.Validate(); err != nil {
		return fmt.Errorf("notification duration: %w", err)
	}
	if c.Notification.DurationWhenLate.Type == "" {
		c.Notification.DurationWhenLate = DurationConfig{Type: "until_dismissed"}
	}
	if err := c.Notification.DurationWhenLate.Validate(); err != nil {
		return fmt.Errorf("notification duration_when_late: %w", err)
	}

	if err := c.Catchup.validateAndDefault(); err != nil {
		return err
	}

	if c.StartOfDay == "" {
		c.StartOfDay = "00:00"
	}
	if c.DefaultLateCancelMinutes < 0 {
		return fmt.Errorf("default_late_cancel_minutes must be non-negative")
	}
	if c.DefaultReminderMinutes < 0 {
		return fmt.Errorf("default_reminder_minutes must be non-negative")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}

const configFileName = "kalarmd/config.yaml"

// Load locates the config file via XDG_CONFIG_HOME/XDG_CONFIG_DIRS, falling
// back to DefaultConfig when none exists (matching the teacher's Load,
// generalised so a first run never needs WriteDefaultConfig called first).
func Load() (*Config, error) {
	path, err := xdg.SearchConfigFile(configFileName)
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig is the configuration a fresh install starts with: one
// directory resource enabled and standard for every alarm type, under
// XDG_DATA_HOME/kalarmd/calendar, matching the teacher's DefaultConfig
// generalised to resource entries.
func DefaultConfig() *Config {
	return &Config{
		Resources: []ResourceConfig{
			{
				Name:          "default",
				Location:      filepath.Join(xdg.DataHome, "kalarmd", "calendar"),
				Storage:       "directory",
				EnabledTypes:  []string{"active", "archived", "template"},
				StandardTypes: []string{"active", "archived", "template"},
			},
		},
		Notification: NotificationConfig{
			Backend:  "desktop",
			Duration: DurationConfig{Type: "until_dismissed"},
		},
		Catchup: CatchupConfig{
			Enable:            true,
			MissedEventPolicy: "all",
			MaxMissedDays:     7,
			SummaryThreshold:  5,
			MaxCatchupTime:    DurationConfig{Type: "timed", Value: 30, Unit: "seconds"},
		},
		Logging:                  LoggingConfig{Level: "info"},
		StartOfDay:               "00:00",
		DefaultLateCancelMinutes: 0,
		DefaultReminderMinutes:   0,
	}
}

// WriteDefaultConfig writes DefaultConfig's YAML form to the first
// writable XDG config path, matching the teacher's WriteDefaultConfig.
func WriteDefaultConfig() (string, error) {
	configPath, err := xdg.ConfigFile(configFileName)
	if err != nil {
		return "", fmt.Errorf("failed to determine config file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configPath, nil
}
