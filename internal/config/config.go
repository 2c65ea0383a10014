package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	units "github.com/docker/go-units"

	"github.com/firefly-engineering/browserbox/internal/logging"
)

const (
	DefaultConfigFile         = "browserbox.toml"
	DefaultImagePrefix        = "selenium"
	DefaultContainerPrefix    = "browserbox-"
	DefaultHost               = "localhost"
	DefaultAutomationBasePort = 4444
	DefaultDisplayBasePort    = 7900
	DefaultVNCBasePort        = 0 // raw VNC is not published unless configured
	DefaultShmSize            = "2g"
	DefaultRecordingDir       = "videos"
	DefaultStateDir           = ".browserbox"
	DefaultWindowWidth        = 1360
	DefaultWindowHeight       = 1020

	// ContainerRecordingDir is where the recording dir is mounted inside the sandbox.
	ContainerRecordingDir = "/tmp/screencast"

	// ContainerAutomationPort and ContainerDisplayPort are the fixed ports the
	// standalone images listen on.
	ContainerAutomationPort = 4444
	ContainerDisplayPort    = 7900
	ContainerVNCPort        = 5900
)

// Environment variables consulted by browserbox.
const (
	EnvConfig      = "BROWSERBOX_CONFIG"
	EnvWorker      = "BROWSERBOX_WORKER"
	EnvXdistWorker = "PYTEST_XDIST_WORKER"
)

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the browserbox configuration, loaded from browserbox.toml.
type Config struct {
	ImagePrefix        string   `toml:"image_prefix"`
	ContainerPrefix    string   `toml:"container_prefix"`
	Host               string   `toml:"host"`
	AutomationBasePort int      `toml:"automation_base_port"`
	DisplayBasePort    int      `toml:"display_base_port"`
	VNCBasePort        int      `toml:"vnc_base_port"`
	ShmSize            string   `toml:"shm_size"`
	RecordingDir       string   `toml:"recording_dir"`
	StateDir           string   `toml:"state_dir"`
	WindowWidth        int      `toml:"window_width"`
	WindowHeight       int      `toml:"window_height"`
	ReadyTimeout       Duration `toml:"ready_timeout"`
	PollInterval       Duration `toml:"poll_interval"`
	SettleDelay        Duration `toml:"settle_delay"`
	RecordStopGrace    Duration `toml:"record_stop_grace"`
	RecordInHeadless   bool     `toml:"record_in_headless"`
	Runtime            string   `toml:"runtime"` // auto, docker, podman or api
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ImagePrefix:        DefaultImagePrefix,
		ContainerPrefix:    DefaultContainerPrefix,
		Host:               DefaultHost,
		AutomationBasePort: DefaultAutomationBasePort,
		DisplayBasePort:    DefaultDisplayBasePort,
		VNCBasePort:        DefaultVNCBasePort,
		ShmSize:            DefaultShmSize,
		RecordingDir:       DefaultRecordingDir,
		StateDir:           DefaultStateDir,
		WindowWidth:        DefaultWindowWidth,
		WindowHeight:       DefaultWindowHeight,
		ReadyTimeout:       Duration{30 * time.Second},
		PollInterval:       Duration{200 * time.Millisecond},
		SettleDelay:        Duration{2 * time.Second},
		RecordStopGrace:    Duration{5 * time.Second},
		Runtime:            "auto",
	}
}

var prefixRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// Validate checks that the Config is valid.
func (c *Config) Validate() error {
	if !prefixRegex.MatchString(c.ImagePrefix) {
		return fmt.Errorf("invalid image_prefix %q", c.ImagePrefix)
	}
	if c.ContainerPrefix == "" || !prefixRegex.MatchString(c.ContainerPrefix) {
		return fmt.Errorf("invalid container_prefix %q", c.ContainerPrefix)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	for name, p := range map[string]int{
		"automation_base_port": c.AutomationBasePort,
		"display_base_port":    c.DisplayBasePort,
	} {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535 (got %d)", name, p)
		}
	}
	if c.AutomationBasePort == c.DisplayBasePort {
		return fmt.Errorf("automation_base_port and display_base_port must differ")
	}
	if c.VNCBasePort < 0 || c.VNCBasePort > 65535 {
		return fmt.Errorf("vnc_base_port must be between 0 and 65535 (got %d)", c.VNCBasePort)
	}
	if c.VNCBasePort != 0 && (c.VNCBasePort == c.AutomationBasePort || c.VNCBasePort == c.DisplayBasePort) {
		return fmt.Errorf("vnc_base_port must differ from the other base ports")
	}
	if _, err := c.ShmBytes(); err != nil {
		return err
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return fmt.Errorf("window size must be positive (got %dx%d)", c.WindowWidth, c.WindowHeight)
	}
	for name, d := range map[string]Duration{
		"ready_timeout":     c.ReadyTimeout,
		"poll_interval":     c.PollInterval,
		"record_stop_grace": c.RecordStopGrace,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.SettleDelay.Duration < 0 {
		return fmt.Errorf("settle_delay cannot be negative")
	}

	validRuntimes := map[string]bool{"auto": true, "docker": true, "podman": true, "api": true, "": true}
	if !validRuntimes[c.Runtime] {
		return fmt.Errorf("invalid runtime: %s (must be auto, docker, podman, or api)", c.Runtime)
	}

	return nil
}

// ShmBytes parses ShmSize ("2g", "512m") into bytes.
func (c *Config) ShmBytes() (int64, error) {
	n, err := units.RAMInBytes(c.ShmSize)
	if err != nil {
		return 0, fmt.Errorf("invalid shm_size %q: %w", c.ShmSize, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("shm_size must be positive (got %q)", c.ShmSize)
	}
	return n, nil
}

// AuditDir returns the directory holding per-session event logs.
func (c *Config) AuditDir() string {
	return filepath.Join(c.StateDir, "sessions")
}

// ResolvePath returns the config path to load: the explicit path, then
// $BROWSERBOX_CONFIG, then ./browserbox.toml. An empty result means defaults.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// Load loads the configuration from path, layering it over Default.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes TOML data over Default and validates the result. source
// names the data in messages.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", source, err)
	}

	for _, key := range md.Undecoded() {
		logging.Warn("unknown config key", "key", key.String(), "file", source)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", source, err)
	}

	return cfg, nil
}

// Save writes cfg to path in TOML form.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

var xdistWorkerRegex = regexp.MustCompile(`^gw(\d+)$`)

// WorkerSlot resolves the worker slot index from the environment.
// BROWSERBOX_WORKER takes a plain integer; PYTEST_XDIST_WORKER takes the
// "gwN" form. The second return value reports whether any variable was set.
// A set but malformed value is always an error: silently defaulting to 0
// would put two workers on the same ports.
func WorkerSlot(getenv func(string) string) (int, bool, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	if raw := strings.TrimSpace(getenv(EnvWorker)); raw != "" {
		slot, err := strconv.Atoi(raw)
		if err != nil || slot < 0 {
			return 0, true, fmt.Errorf("%s must be a non-negative integer (got %q)", EnvWorker, raw)
		}
		return slot, true, nil
	}

	if raw := strings.TrimSpace(getenv(EnvXdistWorker)); raw != "" {
		m := xdistWorkerRegex.FindStringSubmatch(raw)
		if m == nil {
			return 0, true, fmt.Errorf("%s must look like gw<N> (got %q)", EnvXdistWorker, raw)
		}
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", EnvXdistWorker, err)
		}
		return slot, true, nil
	}

	return 0, false, nil
}
