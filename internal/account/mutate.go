package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daemonp/ajax2mqtt/internal/event"
	"github.com/daemonp/ajax2mqtt/internal/types"
)

// localCommandSource attributes security changes that the bridge itself
// requested over a command topic.
const localCommandSource = "MQTT"

type handlerFunc func(a *Account, space *types.Space, ev *types.Event, info event.CodeInfo)

// Dispatch is a straight lookup: category membership was settled during
// classification and is never re-tested here.
var categoryHandlers = map[types.Category]handlerFunc{
	types.CategorySecurity:     (*Account).handleSecurity,
	types.CategoryDoor:         (*Account).handleDoor,
	types.CategoryMotion:       (*Account).handleMotion,
	types.CategorySmoke:        (*Account).handleSmoke,
	types.CategoryFlood:        (*Account).handleFlood,
	types.CategoryGlass:        (*Account).handleGlass,
	types.CategoryTamper:       (*Account).handleTamper,
	types.CategoryDeviceStatus: (*Account).handleDeviceStatus,
	types.CategoryRelay:        (*Account).handleRelay,
	types.CategoryScenario:     (*Account).handleScenario,
}

// applyEvent runs on the owning space actor.
func (a *Account) applyEvent(space *types.Space, category types.Category, ev *types.Event, info event.CodeInfo) {
	handler, ok := categoryHandlers[category]
	if !ok {
		a.log.Warning("No handler for category %s (tag %q)", category, ev.Tag)
		return
	}
	handler(a, space, ev, info)
}

func (a *Account) handleSecurity(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	newState, ok := event.SecurityStates[ev.Tag]
	if !ok {
		return
	}

	source := ev.SourceName
	if a.pending.Consume(space.HubID, time.Now()) {
		source = localCommandSource
	}
	if source == "" {
		source = "unknown"
	}

	if event.GroupTags[ev.Tag] {
		// A group event reports one arm group, not the hub: the hub-level
		// state comes from the next snapshot.
		a.log.Debug("Group security event %q on %s, requesting refresh", ev.Tag, space.Name)
		a.requestRefresh(space.HubID)
	} else if space.SecurityState != newState {
		a.log.Event("%s: %s -> %s (by %s)", space.Name, space.SecurityState, newState, source)
		space.SecurityState = newState
		a.protection.MarkUpdated(space.HubID, time.Now())
		a.notifyModelChanged(space.HubID, "")
	} else {
		a.log.Debug("%s already %s", space.Name, newState)
	}

	// The audit trail records attempts as well as transitions.
	a.notify(types.AuditEvent{
		ID:         uuid.New().String(),
		HubID:      space.HubID,
		SpaceName:  space.Name,
		Action:     string(newState),
		SourceName: source,
		Tag:        ev.Tag,
		Time:       ev.Timestamp,
	})
}

func (a *Account) handleDoor(space *types.Space, ev *types.Event, info event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.DoorRules[ev.Tag]
	dev.SetAttribute("door_opened", binaryValue(rule, info))
	dev.SetAttribute("door_opened_at", ev.Timestamp.UTC().Format(time.RFC3339))
	a.deviceUpdated(space, dev, rule.Label)
}

func (a *Account) handleMotion(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.MotionRules[ev.Tag]
	dev.SetAttribute("motion_detected", rule.Triggered)
	dev.SetAttribute("motion_detected_at", ev.Timestamp.UTC().Format(time.RFC3339))
	a.deviceUpdated(space, dev, rule.Label)
}

func (a *Account) handleSmoke(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.SmokeRules[ev.Tag]
	var attr string
	switch {
	case strings.Contains(rule.Label, "smoke"):
		attr = "smoke_detected"
	case strings.Contains(rule.Label, "temp"):
		attr = "temperature_alert"
	case strings.Contains(rule.Label, "co"):
		attr = "co_detected"
	default:
		a.log.Debug("Fire event %q has unmapped label %q", ev.Tag, rule.Label)
		return
	}
	dev.SetAttribute(attr, rule.Triggered)
	a.deviceUpdated(space, dev, rule.Label)
}

func (a *Account) handleFlood(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.FloodRules[ev.Tag]
	dev.SetAttribute("leak_detected", rule.Triggered)
	a.deviceUpdated(space, dev, rule.Label)
}

func (a *Account) handleGlass(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.GlassRules[ev.Tag]
	dev.SetAttribute("glass_break_detected", rule.Triggered)
	a.deviceUpdated(space, dev, rule.Label)
}

func (a *Account) handleTamper(space *types.Space, ev *types.Event, info event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.TamperRules[ev.Tag]
	dev.SetAttribute("tampered", binaryValue(rule, info))
	a.deviceUpdated(space, dev, rule.Label)
}

func (a *Account) handleDeviceStatus(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.StatusRules[ev.Tag]
	switch {
	case strings.Contains(rule.Label, "offline") || strings.Contains(rule.Label, "online"):
		dev.Online = !rule.Problem
	case strings.Contains(rule.Label, "battery"):
		dev.SetAttribute("low_battery", rule.Problem)
	case strings.Contains(rule.Label, "power"):
		dev.SetAttribute("external_power_lost", rule.Problem)
	default:
		a.log.Debug("Status event %q has unmapped label %q", ev.Tag, rule.Label)
		return
	}
	a.deviceUpdated(space, dev, rule.Label)
}

func (a *Account) handleRelay(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	dev := a.resolveDevice(space, ev)
	if dev == nil {
		return
	}
	rule := event.RelayRules[ev.Tag]
	dev.SetAttribute("is_on", rule.Triggered)
	a.deviceUpdated(space, dev, rule.Label)
}

// handleScenario emits a notification without touching device state: the
// relay's own relayon/relayoff event carries the state change.
func (a *Account) handleScenario(space *types.Space, ev *types.Event, _ event.CodeInfo) {
	name, initiatorType := event.InitiatorInfo(ev.Raw)
	if name == "" {
		a.log.Debug("Scenario event %q without initiator info on %s", ev.Tag, space.Name)
		return
	}
	target := event.RawString(ev.Raw, "sourceObjectName")
	a.log.Event("Scenario %q ran on %s (target %q)", name, space.Name, target)
	a.notify(types.ScenarioEvent{
		ID:            uuid.New().String(),
		HubID:         space.HubID,
		SpaceName:     space.Name,
		ScenarioName:  name,
		InitiatorType: initiatorType,
		TargetName:    target,
		Tag:           ev.Tag,
		Time:          ev.Timestamp,
	})
}

func (a *Account) resolveDevice(space *types.Space, ev *types.Event) *types.Device {
	dev := findDevice(space, ev.SourceID, ev.SourceName)
	if dev == nil {
		a.log.Warning("No device for event %q on %s (id=%q name=%q)", ev.Tag, space.Name, ev.SourceID, ev.SourceName)
	}
	return dev
}

// deviceUpdated finishes every device mutation: protection mark, retained
// state republication and one log line.
func (a *Account) deviceUpdated(space *types.Space, dev *types.Device, label string) {
	a.protection.MarkUpdated(space.HubID, time.Now())
	a.notifyModelChanged(space.HubID, dev.ID)
	a.log.Event("%s: %s", dev.Name, label)
}

// binaryValue picks the attribute value for a paired open/close style tag:
// a TRIGGERED transition yields true, RECOVERED yields false, and the tag's
// own default covers a transition that is neither. The code's class letter
// plays no part: ParseCode already degraded a missing or unreadable code to
// TRIGGERED.
func binaryValue(rule event.BinaryRule, info event.CodeInfo) bool {
	switch info.Transition {
	case types.TransitionTriggered:
		return true
	case types.TransitionRecovered:
		return false
	}
	return rule.Triggered
}
