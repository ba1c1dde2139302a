package config

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Ajax          AjaxConfig          `yaml:"ajax"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Devices       []DeviceConfig      `yaml:"devices"`
	Log           string              `yaml:"log"`
	Cache         bool                `yaml:"cache"`
}

type AjaxConfig struct {
	Email            string `yaml:"email"`
	Password         string `yaml:"password"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	StreamURL        string `yaml:"stream_url"`
	PollInterval     int    `yaml:"poll_interval"`
	ProtectionWindow int    `yaml:"protection_window"`
	DedupWindow      int    `yaml:"dedup_window"`
	DedupRetention   int    `yaml:"dedup_retention"`
}

type MQTTConfig struct {
	ClientID           string `yaml:"client_id"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Keepalive          int    `yaml:"keepalive"`
	Password           string `yaml:"password"`
	QOS                int    `yaml:"qos"`
	Retain             bool   `yaml:"retain"`
	RetainLog          bool   `yaml:"retain_log"`
	Username           string `yaml:"username"`
	CA                 string `yaml:"ca"`
	Cert               string `yaml:"cert"`
	Key                string `yaml:"key"`
	RejectUnauthorized bool   `yaml:"reject_unauthorized"`
	Prefix             string `yaml:"prefix"`
	Clean              bool   `yaml:"clean"`
}

type HomeAssistantConfig struct {
	Discovery bool   `yaml:"discovery"`
	Prefix    string `yaml:"prefix"`
}

type DeviceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	DeviceClass string `yaml:"device_class"`
}

func LoadConfig(configFile string) (*Config, error) {
	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	var missing []string
	if config.Ajax.Email == "" {
		missing = append(missing, "ajax.email")
	}
	if config.Ajax.Password == "" {
		missing = append(missing, "ajax.password")
	}
	if config.Ajax.StreamURL == "" {
		missing = append(missing, "ajax.stream_url")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	// Set default values
	if config.Ajax.BaseURL == "" {
		config.Ajax.BaseURL = "https://api.ajax.systems/api"
	}
	if config.Ajax.PollInterval == 0 {
		config.Ajax.PollInterval = 60
	}
	if config.Ajax.ProtectionWindow == 0 {
		config.Ajax.ProtectionWindow = 5
	}
	if config.Ajax.DedupWindow == 0 {
		config.Ajax.DedupWindow = 5
	}
	if config.Ajax.DedupRetention == 0 {
		config.Ajax.DedupRetention = 60
	}
	if config.Ajax.DedupRetention < config.Ajax.DedupWindow {
		config.Ajax.DedupRetention = config.Ajax.DedupWindow
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "ajax2mqtt"
	}
	if config.MQTT.Host == "" {
		config.MQTT.Host = "localhost"
	}
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	if config.MQTT.Keepalive == 0 {
		config.MQTT.Keepalive = 60
	}
	if config.MQTT.Prefix == "" {
		config.MQTT.Prefix = "ajax2mqtt"
	}
	if config.HomeAssistant.Prefix == "" {
		config.HomeAssistant.Prefix = "homeassistant"
	}
	if config.Log == "" {
		config.Log = "info"
	}

	return &config, nil
}
