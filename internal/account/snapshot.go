package account

import (
	"time"

	"github.com/daemonp/ajax2mqtt/internal/types"
	"github.com/daemonp/ajax2mqtt/internal/util"
)

// ApplySnapshot merges one authoritative poll into the model. Hubs inside
// their protection window are skipped wholesale and caught up on the next
// cycle; spaces absent from the snapshot are kept, never destroyed.
func (a *Account) ApplySnapshot(snapshot []types.SpaceSnapshot) {
	seen := make(map[string]bool, len(snapshot))
	for _, snap := range snapshot {
		if snap.HubID == "" {
			continue
		}
		seen[snap.HubID] = true
		actor := a.actorOrCreate(snap.HubID, snap.Name)
		actor.enqueue(func() {
			a.mergeSpace(actor.space, snap)
		})
	}

	a.mu.RLock()
	for hubID := range a.actors {
		if !seen[hubID] {
			a.log.Debug("Hub %s missing from snapshot, keeping cached state", hubID)
		}
	}
	a.mu.RUnlock()
}

// mergeSpace runs on the owning space actor. The protection check happens
// here, at merge time, not when the poll was scheduled.
func (a *Account) mergeSpace(space *types.Space, snap types.SpaceSnapshot) {
	if a.protection.IsProtected(space.HubID, time.Now()) {
		a.log.Debug("Hub %s recently updated by push, skipping snapshot merge", space.HubID)
		return
	}

	if name := util.Normalize(snap.Name); name != "" {
		space.Name = name
	}
	if snap.SecurityState != "" {
		space.SecurityState = snap.SecurityState
	}

	current := make(map[string]bool, len(snap.Devices))
	for _, ds := range snap.Devices {
		if ds.ID == "" {
			continue
		}
		current[ds.ID] = true
		dev, ok := space.Devices[ds.ID]
		if !ok {
			dev = &types.Device{ID: ds.ID}
			space.Devices[ds.ID] = dev
			a.log.Debug("New device %q (%s) on %s", ds.Name, ds.ID, space.Name)
		}
		mergeDevice(dev, ds)
	}

	for id, dev := range space.Devices {
		if !current[id] {
			a.log.Info("Device %q (%s) no longer in snapshot, dropping", dev.Name, id)
			delete(space.Devices, id)
		}
	}

	a.notifyModelChanged(space.HubID, "")
}

// mergeDevice overwrites identity and health fields from the snapshot.
// Attributes merge key-by-key so push-only attributes survive polls that
// do not carry them.
func mergeDevice(dev *types.Device, snap types.DeviceSnapshot) {
	if name := util.Normalize(snap.Name); name != "" {
		dev.Name = name
	}
	if snap.Type != "" {
		dev.Type = snap.Type
	}
	dev.Online = snap.Online
	if snap.BatteryLevel != nil {
		v := *snap.BatteryLevel
		dev.BatteryLevel = &v
	}
	if snap.SignalStrength != nil {
		v := *snap.SignalStrength
		dev.SignalStrength = &v
	}
	if snap.FirmwareVersion != "" {
		dev.FirmwareVersion = snap.FirmwareVersion
	}
	if snap.HardwareVersion != "" {
		dev.HardwareVersion = snap.HardwareVersion
	}
	if snap.BatteryState != "" {
		dev.BatteryState = snap.BatteryState
	}
	for key, value := range snap.Attributes {
		dev.SetAttribute(key, value)
	}
}
