package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.ImagePrefix != "selenium" {
		t.Errorf("ImagePrefix = %q, want %q", cfg.ImagePrefix, "selenium")
	}
	if cfg.AutomationBasePort != 4444 {
		t.Errorf("AutomationBasePort = %d, want 4444", cfg.AutomationBasePort)
	}
	if cfg.DisplayBasePort != 7900 {
		t.Errorf("DisplayBasePort = %d, want 7900", cfg.DisplayBasePort)
	}
	if cfg.ReadyTimeout.Duration != 30*time.Second {
		t.Errorf("ReadyTimeout = %v, want 30s", cfg.ReadyTimeout.Duration)
	}
	if cfg.RecordInHeadless {
		t.Error("RecordInHeadless should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, DefaultHost)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "browserbox.toml")

	content := `
image_prefix = "acme"
automation_base_port = 5000
shm_size = "512m"
ready_timeout = "45s"
record_in_headless = true
runtime = "docker"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ImagePrefix != "acme" {
		t.Errorf("ImagePrefix = %q, want %q", cfg.ImagePrefix, "acme")
	}
	if cfg.AutomationBasePort != 5000 {
		t.Errorf("AutomationBasePort = %d, want 5000", cfg.AutomationBasePort)
	}
	if cfg.DisplayBasePort != DefaultDisplayBasePort {
		t.Errorf("DisplayBasePort = %d, want default %d", cfg.DisplayBasePort, DefaultDisplayBasePort)
	}
	if cfg.ReadyTimeout.Duration != 45*time.Second {
		t.Errorf("ReadyTimeout = %v, want 45s", cfg.ReadyTimeout.Duration)
	}
	if !cfg.RecordInHeadless {
		t.Error("RecordInHeadless = false, want true")
	}

	shm, err := cfg.ShmBytes()
	if err != nil {
		t.Fatalf("ShmBytes failed: %v", err)
	}
	if shm != 512*1024*1024 {
		t.Errorf("ShmBytes = %d, want %d", shm, 512*1024*1024)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", `image_prefix = `},
		{"bad duration", `ready_timeout = "soon"`},
		{"bad runtime", `runtime = "lxc"`},
		{"same ports", "automation_base_port = 4444\ndisplay_base_port = 4444"},
		{"bad shm", `shm_size = "lots"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "browserbox.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load should fail for an explicit path that does not exist")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "browserbox.toml")

	cfg := Default()
	cfg.Host = "10.0.0.5"
	cfg.SettleDelay = Duration{500 * time.Millisecond}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Host != "10.0.0.5" {
		t.Errorf("Host = %q, want %q", loaded.Host, "10.0.0.5")
	}
	if loaded.SettleDelay.Duration != 500*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 500ms", loaded.SettleDelay.Duration)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/browserbox.toml")

	if got := ResolvePath("explicit.toml"); got != "explicit.toml" {
		t.Errorf("ResolvePath(explicit) = %q, want %q", got, "explicit.toml")
	}
	if got := ResolvePath(""); got != "/etc/browserbox.toml" {
		t.Errorf("ResolvePath(\"\") = %q, want env value", got)
	}
}

func TestWorkerSlot(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    int
		wantSet bool
		wantErr bool
	}{
		{"unset", nil, 0, false, false},
		{"explicit", map[string]string{EnvWorker: "3"}, 3, true, false},
		{"xdist", map[string]string{EnvXdistWorker: "gw2"}, 2, true, false},
		{"explicit wins", map[string]string{EnvWorker: "1", EnvXdistWorker: "gw5"}, 1, true, false},
		{"malformed explicit", map[string]string{EnvWorker: "one"}, 0, true, true},
		{"negative explicit", map[string]string{EnvWorker: "-1"}, 0, true, true},
		{"malformed xdist", map[string]string{EnvXdistWorker: "worker2"}, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			got, set, err := WorkerSlot(getenv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WorkerSlot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if set != tt.wantSet {
				t.Errorf("WorkerSlot() set = %v, want %v", set, tt.wantSet)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("WorkerSlot() = %d, want %d", got, tt.want)
			}
		})
	}
}
