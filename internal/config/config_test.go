package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Device.URL != "http://192.168.4.1" {
		t.Errorf("unexpected device url %q", cfg.Device.URL)
	}
	if cfg.Device.WakeDelay.Duration() != 420*time.Millisecond {
		t.Errorf("unexpected wake delay %v", cfg.Device.WakeDelay.Duration())
	}
	if cfg.Band.Hold.Duration() != 2*time.Second {
		t.Errorf("unexpected hold %v", cfg.Band.Hold.Duration())
	}
	if cfg.Server.Port != "8080" || cfg.Log.Level != "info" {
		t.Errorf("unexpected server/log defaults: %+v %+v", cfg.Server, cfg.Log)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: " 9000 "
device:
  host: 10.0.0.5
  url: http://10.0.0.5/
  wake_delay: 250ms
band:
  enabled: true
schedules:
  - spec: "0 20 * * *"
    command: " preset blue "
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("port not trimmed: %q", cfg.Server.Port)
	}
	if cfg.Device.URL != "http://10.0.0.5" {
		t.Errorf("trailing slash not removed: %q", cfg.Device.URL)
	}
	if cfg.Device.WakeDelay.Duration() != 250*time.Millisecond {
		t.Errorf("unexpected wake delay %v", cfg.Device.WakeDelay.Duration())
	}
	if !cfg.Band.Enabled || cfg.Band.APAddress != "10.0.0.5" {
		t.Errorf("unexpected band config %+v", cfg.Band)
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Command != "preset blue" {
		t.Errorf("unexpected schedules %+v", cfg.Schedules)
	}
}

func TestZeroWakeDelay(t *testing.T) {
	cfg, err := Parse([]byte("device:\n  wake_delay: 0s\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Device.WakeDelay.Duration(); got != 0 {
		t.Errorf("explicit 0s wake delay replaced with %v", got)
	}

	cfg, err = Parse([]byte("device:\n  host: 10.0.0.9\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Device.WakeDelay.Duration(); got != 420*time.Millisecond {
		t.Errorf("unset wake delay should default, got %v", got)
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("MB_TEST_BROKER", "tcp://broker:1883")

	cfg, err := Parse([]byte(`
mqtt:
  enabled: true
  broker: ${MB_TEST_BROKER}
  topic_prefix: ${MB_TEST_UNSET:bands}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("env var not expanded: %q", cfg.MQTT.Broker)
	}
	if cfg.MQTT.TopicPrefix != "bands" {
		t.Errorf("default not applied: %q", cfg.MQTT.TopicPrefix)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"bad log level":  "log:\n  level: loud\n",
		"bad url":        "device:\n  url: not a url\n",
		"bad duration":   "device:\n  wake_delay: soon\n",
		"empty schedule": "schedules:\n  - spec: \"* * * * *\"\n",
		"negative delay": "device:\n  wake_delay: -1s\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
