package types

import (
	"fmt"
	"strings"
	"time"
)

type SecurityState string

const (
	StateDisarmed   SecurityState = "disarmed"
	StateArmed      SecurityState = "armed"
	StateArmedNight SecurityState = "armed_night"
	StateAlarm      SecurityState = "alarm"
	StateUnknown    SecurityState = "unknown"
)

// ParseSecurityState maps a raw cloud state string onto a SecurityState.
func ParseSecurityState(raw string) SecurityState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DISARMED", "DISARMED_NIGHT_MODE_OFF":
		return StateDisarmed
	case "ARMED", "ARMED_AWAY":
		return StateArmed
	case "ARMED_NIGHT_MODE_ON", "ARMED_NIGHT", "NIGHT_MODE":
		return StateArmedNight
	case "ALARM", "IN_ALARM":
		return StateAlarm
	default:
		return StateUnknown
	}
}

type Transition string

const (
	TransitionTriggered Transition = "TRIGGERED"
	TransitionRecovered Transition = "RECOVERED"
)

type Category int

const (
	CategoryUnknown Category = iota
	CategorySecurity
	CategoryDoor
	CategoryMotion
	CategorySmoke
	CategoryFlood
	CategoryGlass
	CategoryTamper
	CategoryDeviceStatus
	CategoryRelay
	CategoryScenario
)

func (c Category) String() string {
	switch c {
	case CategorySecurity:
		return "security"
	case CategoryDoor:
		return "door"
	case CategoryMotion:
		return "motion"
	case CategorySmoke:
		return "smoke"
	case CategoryFlood:
		return "flood"
	case CategoryGlass:
		return "glass"
	case CategoryTamper:
		return "tamper"
	case CategoryDeviceStatus:
		return "device_status"
	case CategoryRelay:
		return "relay"
	case CategoryScenario:
		return "scenario"
	default:
		return fmt.Sprintf("Unknown Category(%d)", int(c))
	}
}

// Event is one normalized push-channel delivery.
type Event struct {
	Tag        string
	Code       string
	HubID      string
	SourceName string
	SourceID   string
	SourceType string
	Timestamp  time.Time
	Raw        map[string]interface{}
}

// EventKey identifies a logical event for deduplication.
type EventKey struct {
	SourceID   string
	Tag        string
	Transition Transition
}

func (k EventKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.SourceID, k.Tag, k.Transition)
}

type Device struct {
	ID              string
	Name            string
	Type            string
	Online          bool
	BatteryLevel    *int
	SignalStrength  *int
	FirmwareVersion string
	HardwareVersion string
	BatteryState    string
	Attributes      map[string]interface{}
}

// SetAttribute records one open-schema attribute, creating the map lazily.
func (d *Device) SetAttribute(key string, value interface{}) {
	if d.Attributes == nil {
		d.Attributes = make(map[string]interface{})
	}
	d.Attributes[key] = value
}

func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	clone := *d
	if d.BatteryLevel != nil {
		v := *d.BatteryLevel
		clone.BatteryLevel = &v
	}
	if d.SignalStrength != nil {
		v := *d.SignalStrength
		clone.SignalStrength = &v
	}
	if d.Attributes != nil {
		clone.Attributes = make(map[string]interface{}, len(d.Attributes))
		for k, v := range d.Attributes {
			clone.Attributes[k] = v
		}
	}
	return &clone
}

type Space struct {
	HubID         string
	Name          string
	SecurityState SecurityState
	Devices       map[string]*Device
}

func (s *Space) Clone() *Space {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Devices = make(map[string]*Device, len(s.Devices))
	for id, dev := range s.Devices {
		clone.Devices[id] = dev.Clone()
	}
	return &clone
}

type DeviceSnapshot struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Type            string                 `json:"type"`
	Online          bool                   `json:"online"`
	BatteryLevel    *int                   `json:"battery_level,omitempty"`
	SignalStrength  *int                   `json:"signal_strength,omitempty"`
	FirmwareVersion string                 `json:"firmware_version,omitempty"`
	HardwareVersion string                 `json:"hardware_version,omitempty"`
	BatteryState    string                 `json:"battery_state,omitempty"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
}

type SpaceSnapshot struct {
	HubID         string           `json:"hub_id"`
	Name          string           `json:"name"`
	SecurityState SecurityState    `json:"security_state"`
	Devices       []DeviceSnapshot `json:"devices"`
}

// ModelChanged reports that retained state for a hub needs republishing.
// DeviceID is empty when the space itself (or the whole model) changed.
type ModelChanged struct {
	HubID    string
	DeviceID string
}

// AuditEvent records every security action, including no-op repeats.
type AuditEvent struct {
	ID         string
	HubID      string
	SpaceName  string
	Action     string
	SourceName string
	Tag        string
	Time       time.Time
}

// ScenarioEvent reports an automation run extracted from initiator metadata.
type ScenarioEvent struct {
	ID            string
	HubID         string
	SpaceName     string
	ScenarioName  string
	InitiatorType string
	TargetName    string
	Tag           string
	Time          time.Time
}

type CacheData struct {
	Spaces     []SpaceSnapshot `json:"spaces"`
	LastUpdate time.Time       `json:"last_update"`
}
