// Package homeassistant publishes MQTT discovery configs so spaces and
// devices appear in Home Assistant without manual configuration.
package homeassistant

import (
	"encoding/json"
	"fmt"

	"github.com/daemonp/ajax2mqtt/internal/account"
	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/log"
	"github.com/daemonp/ajax2mqtt/internal/mqtt"
	"github.com/daemonp/ajax2mqtt/internal/types"
)

// Home Assistant accepts a fixed alarm-panel state vocabulary, so the value
// template rewrites the bridge's armed/alarm states on the way in.
const alarmStateTemplate = "{% if value_json.state == 'armed' %}armed_away" +
	"{% elif value_json.state == 'alarm' %}triggered" +
	"{% else %}{{ value_json.state }}{% endif %}"

type HomeAssistant struct {
	config    *config.HomeAssistantConfig
	overrides map[string]config.DeviceConfig
	mqtt      mqtt.MQTTClient
	account   *account.Account
	log       *log.Logger
}

func New(cfg *config.HomeAssistantConfig, devices []config.DeviceConfig, mqttClient mqtt.MQTTClient, acc *account.Account, logger *log.Logger) *HomeAssistant {
	overrides := make(map[string]config.DeviceConfig, len(devices))
	for _, d := range devices {
		if d.ID != "" {
			overrides[d.ID] = d
		}
	}
	return &HomeAssistant{
		config:    cfg,
		overrides: overrides,
		mqtt:      mqttClient,
		account:   acc,
		log:       logger,
	}
}

func (ha *HomeAssistant) Start() {
	ha.log.Info("Starting Home Assistant integration")
	ha.publishDiscoveryConfig()
}

func (ha *HomeAssistant) publishDiscoveryConfig() {
	ha.publishBridgeConfig()

	for _, space := range ha.account.Spaces() {
		ha.publishSpaceConfig(space)
		for _, device := range space.Devices {
			ha.publishDeviceConfig(space, device)
		}
	}
}

func (ha *HomeAssistant) publishBridgeConfig() {
	cfg := map[string]interface{}{
		"name":         "Ajax Bridge",
		"unique_id":    fmt.Sprintf("%s_bridge", ha.mqtt.GetPrefix()),
		"state_topic":  ha.mqtt.Topics().Status(),
		"payload_on":   "online",
		"payload_off":  "offline",
		"device_class": "connectivity",
	}

	ha.publishConfig("binary_sensor", "bridge", cfg)
}

func (ha *HomeAssistant) publishSpaceConfig(space *types.Space) {
	cfg := map[string]interface{}{
		"name":               space.Name,
		"unique_id":          fmt.Sprintf("%s_space_%s", ha.mqtt.GetPrefix(), space.HubID),
		"state_topic":        ha.mqtt.Topics().Space(space),
		"command_topic":      ha.mqtt.Topics().SpaceCommand(space),
		"payload_disarm":     "disarm",
		"payload_arm_away":   "arm",
		"payload_arm_night":  "arm_night",
		"value_template":     alarmStateTemplate,
		"availability_topic": ha.mqtt.Topics().Status(),
	}

	ha.publishConfig("alarm_control_panel", space.HubID, cfg)
}

func (ha *HomeAssistant) publishDeviceConfig(space *types.Space, device *types.Device) {
	override := ha.overrides[device.ID]

	name := device.Name
	if override.Name != "" {
		name = override.Name
	}

	class := deviceClass(device, override)
	attribute := classAttribute(class)

	cfg := map[string]interface{}{
		"name":               name,
		"unique_id":          fmt.Sprintf("%s_device_%s", ha.mqtt.GetPrefix(), device.ID),
		"state_topic":        ha.mqtt.Topics().Device(space, device),
		"device_class":       class,
		"value_template":     fmt.Sprintf("{{ value_json.%s | default(false) }}", attribute),
		"payload_on":         "True",
		"payload_off":        "False",
		"availability_topic": ha.mqtt.Topics().Status(),
	}

	ha.publishConfig("binary_sensor", device.ID, cfg)

	if device.BatteryLevel != nil {
		ha.publishBatteryConfig(space, device, name)
	}
	if device.SignalStrength != nil {
		ha.publishSignalConfig(space, device, name)
	}
}

func (ha *HomeAssistant) publishBatteryConfig(space *types.Space, device *types.Device, name string) {
	cfg := map[string]interface{}{
		"name":                fmt.Sprintf("%s Battery", name),
		"unique_id":           fmt.Sprintf("%s_device_%s_battery", ha.mqtt.GetPrefix(), device.ID),
		"state_topic":         ha.mqtt.Topics().Device(space, device),
		"device_class":        "battery",
		"unit_of_measurement": "%",
		"value_template":      "{{ value_json.battery_level }}",
		"availability_topic":  ha.mqtt.Topics().Status(),
	}

	ha.publishConfig("sensor", device.ID+"_battery", cfg)
}

func (ha *HomeAssistant) publishSignalConfig(space *types.Space, device *types.Device, name string) {
	cfg := map[string]interface{}{
		"name":               fmt.Sprintf("%s Signal", name),
		"unique_id":          fmt.Sprintf("%s_device_%s_signal", ha.mqtt.GetPrefix(), device.ID),
		"state_topic":        ha.mqtt.Topics().Device(space, device),
		"value_template":     "{{ value_json.signal_strength }}",
		"availability_topic": ha.mqtt.Topics().Status(),
	}

	ha.publishConfig("sensor", device.ID+"_signal", cfg)
}

func (ha *HomeAssistant) publishConfig(component, objectID string, cfg map[string]interface{}) {
	topic := fmt.Sprintf("%s/%s/%s/%s/config", ha.config.Prefix, component, ha.mqtt.GetPrefix(), objectID)

	payload, err := json.Marshal(cfg)
	if err != nil {
		ha.log.Error("Failed to marshal Home Assistant config: %v", err)
		return
	}

	ha.mqtt.Publish(topic, payload, true)
}
