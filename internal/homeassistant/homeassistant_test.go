package homeassistant

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/daemonp/ajax2mqtt/internal/account"
	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/log"
	"github.com/daemonp/ajax2mqtt/internal/mqtt"
	"github.com/daemonp/ajax2mqtt/internal/types"
)

type fakePublisher struct {
	topics    *mqtt.Topics
	published map[string][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		topics:    mqtt.NewTopics("ajax2mqtt"),
		published: make(map[string][]byte),
	}
}

func (f *fakePublisher) GetPrefix() string    { return "ajax2mqtt" }
func (f *fakePublisher) Topics() *mqtt.Topics { return f.topics }

func (f *fakePublisher) Publish(topic string, payload interface{}, retain bool) {
	if data, ok := payload.([]byte); ok {
		f.published[topic] = data
	}
}

func intPtr(v int) *int { return &v }

func discoveryAccount(t *testing.T) *account.Account {
	t.Helper()

	cfg := &config.Config{
		Ajax: config.AjaxConfig{ProtectionWindow: 5, DedupWindow: 5, DedupRetention: 60},
	}
	acc := account.New(cfg, log.NewLogger("error"))
	t.Cleanup(acc.Close)

	acc.ApplySnapshot([]types.SpaceSnapshot{
		{
			HubID:         "hub-1",
			Name:          "Home",
			SecurityState: types.StateArmed,
			Devices: []types.DeviceSnapshot{
				{
					ID:             "00000000deadbeef",
					Name:           "Front Door",
					Type:           "DoorProtect",
					Online:         true,
					BatteryLevel:   intPtr(100),
					SignalStrength: intPtr(3),
				},
				{
					ID:     "1122334455667788",
					Name:   "Boiler",
					Type:   "Relay",
					Online: true,
				},
			},
		},
	})
	return acc
}

func decodeConfig(t *testing.T, pub *fakePublisher, topic string) map[string]interface{} {
	t.Helper()

	data, ok := pub.published[topic]
	if !ok {
		t.Fatalf("no discovery config published on %s (got %d topics)", topic, len(pub.published))
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("config on %s is not valid JSON: %v", topic, err)
	}
	return cfg
}

func TestDiscoveryConfigs(t *testing.T) {
	acc := discoveryAccount(t)
	pub := newFakePublisher()

	haCfg := &config.HomeAssistantConfig{Discovery: true, Prefix: "homeassistant"}
	ha := New(haCfg, nil, pub, acc, log.NewLogger("error"))
	ha.Start()

	bridge := decodeConfig(t, pub, "homeassistant/binary_sensor/ajax2mqtt/bridge/config")
	if bridge["device_class"] != "connectivity" {
		t.Errorf("bridge device_class = %v, want connectivity", bridge["device_class"])
	}
	if bridge["state_topic"] != "ajax2mqtt/status" {
		t.Errorf("bridge state_topic = %v", bridge["state_topic"])
	}

	alarm := decodeConfig(t, pub, "homeassistant/alarm_control_panel/ajax2mqtt/hub-1/config")
	if alarm["command_topic"] != "ajax2mqtt/space/home/command" {
		t.Errorf("alarm command_topic = %v", alarm["command_topic"])
	}
	if alarm["payload_arm_away"] != "arm" || alarm["payload_arm_night"] != "arm_night" || alarm["payload_disarm"] != "disarm" {
		t.Errorf("alarm payloads wrong: %v", alarm)
	}
	template, _ := alarm["value_template"].(string)
	if !strings.Contains(template, "armed_away") || !strings.Contains(template, "triggered") {
		t.Errorf("alarm value_template does not map states: %q", template)
	}

	door := decodeConfig(t, pub, "homeassistant/binary_sensor/ajax2mqtt/00000000deadbeef/config")
	if door["device_class"] != "door" {
		t.Errorf("door device_class = %v, want door", door["device_class"])
	}
	if door["state_topic"] != "ajax2mqtt/space/home/device/front-door" {
		t.Errorf("door state_topic = %v", door["state_topic"])
	}
	doorTemplate, _ := door["value_template"].(string)
	if !strings.Contains(doorTemplate, "door_opened") {
		t.Errorf("door value_template = %q, want door_opened", doorTemplate)
	}

	if _, ok := pub.published["homeassistant/sensor/ajax2mqtt/00000000deadbeef_battery/config"]; !ok {
		t.Error("battery sensor config missing for device with battery level")
	}
	if _, ok := pub.published["homeassistant/sensor/ajax2mqtt/00000000deadbeef_signal/config"]; !ok {
		t.Error("signal sensor config missing for device with signal strength")
	}
	if _, ok := pub.published["homeassistant/sensor/ajax2mqtt/1122334455667788_battery/config"]; ok {
		t.Error("battery sensor config published for device without battery level")
	}

	relay := decodeConfig(t, pub, "homeassistant/binary_sensor/ajax2mqtt/1122334455667788/config")
	if relay["device_class"] != "power" {
		t.Errorf("relay device_class = %v, want power", relay["device_class"])
	}
}

func TestDiscoveryOverrides(t *testing.T) {
	acc := discoveryAccount(t)
	pub := newFakePublisher()

	haCfg := &config.HomeAssistantConfig{Discovery: true, Prefix: "homeassistant"}
	overrides := []config.DeviceConfig{
		{ID: "00000000deadbeef", Name: "Garage", DeviceClass: "garage_door"},
	}
	ha := New(haCfg, overrides, pub, acc, log.NewLogger("error"))
	ha.Start()

	door := decodeConfig(t, pub, "homeassistant/binary_sensor/ajax2mqtt/00000000deadbeef/config")
	if door["name"] != "Garage" {
		t.Errorf("override name not applied: %v", door["name"])
	}
	if door["device_class"] != "garage_door" {
		t.Errorf("override device_class not applied: %v", door["device_class"])
	}

	battery := decodeConfig(t, pub, "homeassistant/sensor/ajax2mqtt/00000000deadbeef_battery/config")
	if battery["name"] != "Garage Battery" {
		t.Errorf("battery sensor name = %v, want Garage Battery", battery["name"])
	}
}
