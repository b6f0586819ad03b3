package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig - panel HTTP server settings
type ServerConfig struct {
	Port           string   `yaml:"port"`
	WebFilesDir    string   `yaml:"web_files_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// PublicHost is the host browsers open the panel on. When it matches
	// Device.Host the panel talks to its own origin.
	PublicHost string `yaml:"public_host"`
}

// DeviceConfig - where commands are sent
type DeviceConfig struct {
	Host        string    `yaml:"host"`
	URL         string    `yaml:"url"`
	WakeDelay   *Duration `yaml:"wake_delay"`   // nil until defaulted; 0s disables the delay
	HTTPTimeout Duration  `yaml:"http_timeout"` // 0 leaves the transport's own limits
}

// BandConfig - the on-host BLE broadcaster serving /command
type BandConfig struct {
	Enabled    bool     `yaml:"enabled"`
	LocalName  string   `yaml:"local_name"`
	APAddress  string   `yaml:"ap_address"`
	Hold       Duration `yaml:"hold"`
	Interval   Duration `yaml:"interval"`
	RateLimit  float64  `yaml:"rate_limit"`
	RateBurst  int      `yaml:"rate_burst"`
	QueueSize  int      `yaml:"queue_size"`
	RetryDelay Duration `yaml:"retry_delay"`
}

// MQTTConfig - MQTT bridge and Home Assistant discovery
type MQTTConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Broker             string `yaml:"broker"` // tcp://IP:PORT
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	ClientID           string `yaml:"client_id"`
	TopicPrefix        string `yaml:"topic_prefix"`
	HADiscoveryEnabled bool   `yaml:"ha_discovery_enabled"`
	HADiscoveryPrefix  string `yaml:"ha_discovery_prefix"`
}

// LogConfig - logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// ScheduleConfig - one cron-triggered action, e.g. {spec: "0 20 * * *", command: "preset blue"}
type ScheduleConfig struct {
	Spec    string `yaml:"spec"`
	Command string `yaml:"command"`
}

// Config - top level
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Device    DeviceConfig     `yaml:"device"`
	Band      BandConfig       `yaml:"band"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	Log       LogConfig        `yaml:"log"`
	Schedules []ScheduleConfig `yaml:"schedules"`

	ScriptsDir      string   `yaml:"scripts_dir"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads the file, expands ${VAR:default} references, then applies
// sanitizing, defaults and validation. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			cfg.setDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode yaml: %w", err)
	}

	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}

func (c *Config) sanitize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.Server.PublicHost = strings.TrimSpace(c.Server.PublicHost)
	c.Device.Host = strings.TrimSpace(c.Device.Host)
	c.Device.URL = strings.TrimSuffix(strings.TrimSpace(c.Device.URL), "/")
	c.ScriptsDir = strings.TrimSpace(c.ScriptsDir)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	for i := range c.Schedules {
		c.Schedules[i].Spec = strings.TrimSpace(c.Schedules[i].Spec)
		c.Schedules[i].Command = strings.TrimSpace(c.Schedules[i].Command)
	}
}

func (c *Config) setDefaults() {
	// Server Defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.PublicHost == "" {
		c.Server.PublicHost = "localhost"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// Device Defaults
	if c.Device.Host == "" {
		c.Device.Host = "192.168.4.1"
	}
	if c.Device.URL == "" {
		c.Device.URL = "http://" + c.Device.Host
	}
	if c.Device.WakeDelay == nil {
		d := Duration(420 * time.Millisecond)
		c.Device.WakeDelay = &d
	}

	// Band Defaults
	if c.Band.LocalName == "" {
		c.Band.LocalName = "MB_Broadcaster"
	}
	if c.Band.APAddress == "" {
		c.Band.APAddress = c.Device.Host
	}
	if c.Band.Hold == 0 {
		c.Band.Hold = Duration(2 * time.Second)
	}
	if c.Band.Interval == 0 {
		c.Band.Interval = Duration(20 * time.Millisecond)
	}
	if c.Band.RateLimit <= 0 {
		c.Band.RateLimit = 2.0
	}
	if c.Band.RateBurst <= 0 {
		c.Band.RateBurst = 1
	}
	if c.Band.QueueSize <= 0 {
		c.Band.QueueSize = 8
	}
	if c.Band.RetryDelay == 0 {
		c.Band.RetryDelay = Duration(5 * time.Second)
	}

	// MQTT Defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "magicband-controller"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "magicband"
	}
	if c.MQTT.HADiscoveryPrefix == "" {
		c.MQTT.HADiscoveryPrefix = "homeassistant"
	}

	// Log Defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.ScriptsDir == "" {
		c.ScriptsDir = "scripts"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(5 * time.Second)
	}
}

func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(c.Device.URL); err != nil {
		return fmt.Errorf("config error: 'device.url' is not a valid URL: %w", err)
	}
	if *c.Device.WakeDelay < 0 {
		return fmt.Errorf("config error: 'device.wake_delay' must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: unknown log level %q", c.Log.Level)
	}
	for i, s := range c.Schedules {
		if s.Spec == "" || s.Command == "" {
			return fmt.Errorf("config error: schedule %d needs both 'spec' and 'command'", i)
		}
	}
	return nil
}
