package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResourceConfig_ExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}

	tests := []struct {
		name     string
		res      ResourceConfig
		expected string
	}{
		{
			name:     "tilde expansion",
			res:      ResourceConfig{Location: "~/.kalarmd"},
			expected: filepath.Join(homeDir, ".kalarmd"),
		},
		{
			name:     "absolute path",
			res:      ResourceConfig{Location: "/tmp/kalarmd"},
			expected: "/tmp/kalarmd",
		},
		{
			name:     "relative path",
			res:      ResourceConfig{Location: "kalarmd"},
			expected: "kalarmd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.res.ExpandPath(); err != nil {
				t.Fatalf("ExpandPath() error = %v", err)
			}
			if tt.res.Location != tt.expected {
				t.Errorf("ExpandPath() = %v, want %v", tt.res.Location, tt.expected)
			}
		})
	}
}

func TestResourceConfig_Masks(t *testing.T) {
	res := ResourceConfig{
		EnabledTypes:  []string{"active", "archived"},
		StandardTypes: []string{"active"},
	}
	enabled, err := res.EnabledMask()
	if err != nil {
		t.Fatalf("EnabledMask() error = %v", err)
	}
	standard, err := res.StandardMask()
	if err != nil {
		t.Fatalf("StandardMask() error = %v", err)
	}
	if standard&^enabled != 0 {
		t.Errorf("standard mask %v not a subset of enabled mask %v", standard, enabled)
	}

	if _, err := (ResourceConfig{EnabledTypes: []string{"bogus"}}).EnabledMask(); err == nil {
		t.Error("expected error for unknown alarm type")
	}
}

func TestDurationConfig_ToDuration(t *testing.T) {
	tests := []struct {
		name    string
		d       DurationConfig
		wantMs  int32
		wantErr bool
	}{
		{name: "seconds", d: DurationConfig{Type: "timed", Value: 30, Unit: "seconds"}, wantMs: 30000},
		{name: "minutes", d: DurationConfig{Type: "timed", Value: 5, Unit: "minutes"}, wantMs: 5 * 60 * 1000},
		{name: "hours", d: DurationConfig{Type: "timed", Value: 2, Unit: "hours"}, wantMs: 2 * 60 * 60 * 1000},
		{name: "invalid unit", d: DurationConfig{Type: "timed", Value: 5, Unit: "weeks"}, wantErr: true},
		{name: "until dismissed", d: DurationConfig{Type: "until_dismissed"}, wantMs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.d.ToMilliseconds()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToMilliseconds() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.wantMs {
				t.Errorf("ToMilliseconds() = %v, want %v", got, tt.wantMs)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Resources: []ResourceConfig{
					{Name: "default", Location: tempDir, Storage: "directory", EnabledTypes: []string{"active"}},
				},
				Notification: NotificationConfig{Backend: "desktop"},
				Logging:      LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name:    "no resources",
			config:  Config{Resources: []ResourceConfig{}},
			wantErr: true,
		},
		{
			name: "empty location",
			config: Config{
				Resources: []ResourceConfig{{Location: ""}},
			},
			wantErr: true,
		},
		{
			name: "unknown storage kind",
			config: Config{
				Resources: []ResourceConfig{{Location: tempDir, Storage: "caldav"}},
			},
			wantErr: true,
		},
		{
			name: "standard not subset of enabled",
			config: Config{
				Resources: []ResourceConfig{{
					Location:      tempDir,
					EnabledTypes:  []string{"active"},
					StandardTypes: []string{"archived"},
				}},
			},
			wantErr: true,
		},
		{
			name: "unknown alarm type",
			config: Config{
				Resources: []ResourceConfig{{Location: tempDir, EnabledTypes: []string{"bogus"}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Resources) != 1 {
		t.Errorf("DefaultConfig() should have 1 resource, got %d", len(cfg.Resources))
	}
	if cfg.Notification.Backend != "desktop" {
		t.Errorf("DefaultConfig() notification backend = %v, want desktop", cfg.Notification.Backend)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("DefaultConfig() logging level = %v, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate cleanly: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "resources:\n" +
		"  - name: default\n" +
		"    location: " + dir + "\n" +
		"    storage: directory\n" +
		"    enabled_types: [active, archived]\n" +
		"    standard_for: [active]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(cfg.Resources) != 1 || cfg.Resources[0].Name != "default" {
		t.Errorf("unexpected resources: %+v", cfg.Resources)
	}
	if cfg.Notification.Backend != "desktop" {
		t.Errorf("Notification.Backend = %q, want desktop (default applied)", cfg.Notification.Backend)
	}
}
