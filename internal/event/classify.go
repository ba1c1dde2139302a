package event

import (
	"fmt"

	"github.com/daemonp/ajax2mqtt/internal/types"
)

// BinaryRule describes a sensor-style event tag: the attribute-facing label
// plus the value the tag implies when no code transition overrides it.
type BinaryRule struct {
	Label     string
	Triggered bool
}

// StatusRule describes a device health tag: its label plus whether the tag
// reports a problem (true) or a recovery (false).
type StatusRule struct {
	Label   string
	Problem bool
}

// SecurityStates maps security tags to the space state they produce.
var SecurityStates = map[string]types.SecurityState{
	"arm":          types.StateArmed,
	"disarm":       types.StateDisarmed,
	"nightmodeon":  types.StateArmedNight,
	"nightmodeoff": types.StateDisarmed,
	"grouparm":     types.StateArmed,
	"groupdisarm":  types.StateDisarmed,
}

// GroupTags are the security tags that report one arm group's state rather
// than the hub state as a whole.
var GroupTags = map[string]bool{
	"grouparm":    true,
	"groupdisarm": true,
}

var DoorRules = map[string]BinaryRule{
	"dooropened": {Label: "door_opened", Triggered: true},
	"doorclosed": {Label: "door_closed", Triggered: false},
}

var MotionRules = map[string]BinaryRule{
	"motiondetected": {Label: "motion_detected", Triggered: true},
	"motionalarm":    {Label: "motion_alarm", Triggered: true},
}

var SmokeRules = map[string]BinaryRule{
	"smokedetected":       {Label: "smoke_detected", Triggered: true},
	"smokealarmrestored":  {Label: "smoke_alarm_restored", Triggered: false},
	"hightemperature":     {Label: "temperature_alert", Triggered: true},
	"temperaturerestored": {Label: "temperature_restored", Triggered: false},
	"codetected":          {Label: "co_detected", Triggered: true},
	"coalarmrestored":     {Label: "co_alarm_restored", Triggered: false},
}

var FloodRules = map[string]BinaryRule{
	"leakdetected": {Label: "leak_detected", Triggered: true},
	"leakstopped":  {Label: "leak_stopped", Triggered: false},
}

var GlassRules = map[string]BinaryRule{
	"glassbreak":         {Label: "glass_break_detected", Triggered: true},
	"glassbreakdetected": {Label: "glass_break_detected", Triggered: true},
}

var TamperRules = map[string]BinaryRule{
	"lidopened":   {Label: "lid_opened", Triggered: true},
	"lidclosed":   {Label: "lid_closed", Triggered: false},
	"tamperalarm": {Label: "tamper_alarm", Triggered: true},
}

var StatusRules = map[string]StatusRule{
	"devicelost":            {Label: "device_offline", Problem: true},
	"deviceoffline":         {Label: "device_offline", Problem: true},
	"deviceonline":          {Label: "device_online", Problem: false},
	"lowbattery":            {Label: "low_battery", Problem: true},
	"batteryrestored":       {Label: "battery_restored", Problem: false},
	"externalpowerlost":     {Label: "external_power_lost", Problem: true},
	"externalpowerrestored": {Label: "external_power_restored", Problem: false},
}

var RelayRules = map[string]BinaryRule{
	"relayon":   {Label: "relay_on", Triggered: true},
	"relayoff":  {Label: "relay_off", Triggered: false},
	"socketon":  {Label: "socket_on", Triggered: true},
	"socketoff": {Label: "socket_off", Triggered: false},
}

// ScenarioTags are automation-run reports carrying initiator metadata.
var ScenarioTags = map[string]bool{
	"relayonbyscenario":  true,
	"relayoffbyscenario": true,
	"scenariolaunched":   true,
}

var categoryIndex = buildCategoryIndex()

func buildCategoryIndex() map[string]types.Category {
	index := make(map[string]types.Category)
	for tag := range SecurityStates {
		index[tag] = types.CategorySecurity
	}
	for tag := range DoorRules {
		index[tag] = types.CategoryDoor
	}
	for tag := range MotionRules {
		index[tag] = types.CategoryMotion
	}
	for tag := range SmokeRules {
		index[tag] = types.CategorySmoke
	}
	for tag := range FloodRules {
		index[tag] = types.CategoryFlood
	}
	for tag := range GlassRules {
		index[tag] = types.CategoryGlass
	}
	for tag := range TamperRules {
		index[tag] = types.CategoryTamper
	}
	for tag := range StatusRules {
		index[tag] = types.CategoryDeviceStatus
	}
	for tag := range RelayRules {
		index[tag] = types.CategoryRelay
	}
	for tag := range ScenarioTags {
		index[tag] = types.CategoryScenario
	}
	return index
}

// Classify resolves an event tag to its category. Tags are classified once,
// up front; handlers dispatch on the result and never re-test membership.
func Classify(tag string) (types.Category, error) {
	category, ok := categoryIndex[tag]
	if !ok {
		return types.CategoryUnknown, fmt.Errorf("%w: %q", ErrUnknownCategory, tag)
	}
	return category, nil
}
