package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
ajax:
  email: user@example.com
  password: secret
  stream_url: https://events.example.com/stream
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Ajax.BaseURL != "https://api.ajax.systems/api" {
		t.Errorf("BaseURL default = %q", cfg.Ajax.BaseURL)
	}
	if cfg.Ajax.PollInterval != 60 {
		t.Errorf("PollInterval default = %d, want 60", cfg.Ajax.PollInterval)
	}
	if cfg.Ajax.ProtectionWindow != 5 {
		t.Errorf("ProtectionWindow default = %d, want 5", cfg.Ajax.ProtectionWindow)
	}
	if cfg.Ajax.DedupWindow != 5 || cfg.Ajax.DedupRetention != 60 {
		t.Errorf("dedup defaults = %d/%d, want 5/60", cfg.Ajax.DedupWindow, cfg.Ajax.DedupRetention)
	}
	if cfg.MQTT.ClientID != "ajax2mqtt" || cfg.MQTT.Prefix != "ajax2mqtt" {
		t.Errorf("MQTT identity defaults = %q/%q", cfg.MQTT.ClientID, cfg.MQTT.Prefix)
	}
	if cfg.MQTT.Host != "localhost" || cfg.MQTT.Port != 1883 || cfg.MQTT.Keepalive != 60 {
		t.Errorf("MQTT broker defaults = %s:%d keepalive %d", cfg.MQTT.Host, cfg.MQTT.Port, cfg.MQTT.Keepalive)
	}
	if cfg.HomeAssistant.Prefix != "homeassistant" {
		t.Errorf("HomeAssistant prefix default = %q", cfg.HomeAssistant.Prefix)
	}
	if cfg.Log != "info" {
		t.Errorf("Log default = %q, want info", cfg.Log)
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
ajax:
  email: user@example.com
  password: secret
  api_key: key-1
  base_url: https://api.example.com
  stream_url: https://events.example.com/stream
  poll_interval: 30
  protection_window: 10
  dedup_window: 3
  dedup_retention: 2
mqtt:
  host: broker.local
  port: 8883
  username: mqtt-user
  password: mqtt-pass
  qos: 1
  retain: true
  retain_log: true
  prefix: ajax
  client_id: bridge-1
homeassistant:
  discovery: true
  prefix: ha
devices:
  - id: "00000000deadbeef"
    name: Garage
    device_class: garage_door
log: debug
cache: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Ajax.PollInterval != 30 || cfg.Ajax.ProtectionWindow != 10 {
		t.Errorf("ajax timings = %d/%d", cfg.Ajax.PollInterval, cfg.Ajax.ProtectionWindow)
	}
	// Retention shorter than the window is clamped up to the window.
	if cfg.Ajax.DedupRetention != 3 {
		t.Errorf("DedupRetention = %d, want clamped to 3", cfg.Ajax.DedupRetention)
	}
	if cfg.MQTT.Host != "broker.local" || cfg.MQTT.Port != 8883 {
		t.Errorf("broker = %s:%d", cfg.MQTT.Host, cfg.MQTT.Port)
	}
	if cfg.MQTT.QOS != 1 || !cfg.MQTT.Retain || !cfg.MQTT.RetainLog {
		t.Errorf("mqtt flags = qos %d retain %v retain_log %v", cfg.MQTT.QOS, cfg.MQTT.Retain, cfg.MQTT.RetainLog)
	}
	if !cfg.HomeAssistant.Discovery || cfg.HomeAssistant.Prefix != "ha" {
		t.Errorf("homeassistant = %+v", cfg.HomeAssistant)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].ID != "00000000deadbeef" || cfg.Devices[0].DeviceClass != "garage_door" {
		t.Errorf("devices = %+v", cfg.Devices)
	}
	if !cfg.Cache || cfg.Log != "debug" {
		t.Errorf("cache=%v log=%q", cfg.Cache, cfg.Log)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no credentials at all",
			content: "mqtt:\n  host: broker.local\n",
			want:    "ajax.email, ajax.password, ajax.stream_url",
		},
		{
			name:    "missing stream url",
			content: "ajax:\n  email: a@b.c\n  password: x\n",
			want:    "ajax.stream_url",
		},
		{
			name:    "missing password",
			content: "ajax:\n  email: a@b.c\n  stream_url: https://s\n",
			want:    "ajax.password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("LoadConfig() succeeded, want missing-field error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("LoadConfig() on missing file succeeded")
	}

	path := writeConfig(t, "ajax: [not a map")
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() on invalid YAML succeeded")
	}
}
