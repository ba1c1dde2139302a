package homeassistant

import (
	"strings"

	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/types"
)

// typeClasses maps known Ajax device models to Home Assistant device classes.
var typeClasses = map[string]string{
	"DoorProtect":       "door",
	"DoorProtectPlus":   "door",
	"MotionProtect":     "motion",
	"MotionProtectPlus": "motion",
	"MotionCam":         "motion",
	"CombiProtect":      "motion",
	"FireProtect":       "smoke",
	"FireProtectPlus":   "smoke",
	"LeaksProtect":      "moisture",
	"GlassProtect":      "window",
	"Relay":             "power",
	"Socket":            "power",
	"WallSwitch":        "power",
}

// classAttributes maps a device class to the state-topic attribute its
// binary sensor reads.
var classAttributes = map[string]string{
	"door":     "door_opened",
	"window":   "glass_break_detected",
	"motion":   "motion_detected",
	"smoke":    "smoke_detected",
	"gas":      "co_detected",
	"moisture": "leak_detected",
	"power":    "is_on",
}

func deviceClass(device *types.Device, override config.DeviceConfig) string {
	// A custom device class from the config wins.
	if override.DeviceClass != "" {
		return override.DeviceClass
	}

	if class, ok := typeClasses[device.Type]; ok {
		return class
	}

	// Fall back to guessing from the device name.
	name := strings.ToLower(device.Name)
	if strings.Contains(name, "door") {
		return "door"
	}
	if strings.Contains(name, "window") || strings.Contains(name, "glass") {
		return "window"
	}
	if strings.Contains(name, "smoke") || strings.Contains(name, "fire") {
		return "smoke"
	}
	if strings.Contains(name, "gas") {
		return "gas"
	}
	if strings.Contains(name, "water") || strings.Contains(name, "leak") {
		return "moisture"
	}
	if strings.Contains(name, "relay") || strings.Contains(name, "socket") || strings.Contains(name, "switch") {
		return "power"
	}

	// Default to motion if we can't determine a more specific type.
	return "motion"
}

func classAttribute(class string) string {
	if attribute, ok := classAttributes[class]; ok {
		return attribute
	}
	return "motion_detected"
}
