package account

import (
	"strings"

	"github.com/daemonp/ajax2mqtt/internal/types"
)

// Wired inputs on multi-channel devices report an 8-character id that is
// the tail of their parent device's 16-character id.
const (
	subDeviceIDLength    = 8
	parentDeviceIDLength = 16
)

// findDevice resolves the device an event refers to: exact id match first,
// then the wired-input suffix heuristic, then exact name match. Returns nil
// when nothing matches.
func findDevice(space *types.Space, sourceID, sourceName string) *types.Device {
	if sourceID != "" {
		if dev, ok := space.Devices[sourceID]; ok {
			return dev
		}
		if len(sourceID) == subDeviceIDLength {
			for _, dev := range space.Devices {
				if len(dev.ID) == parentDeviceIDLength && strings.HasSuffix(dev.ID, sourceID) {
					return dev
				}
			}
		}
	}
	if sourceName != "" {
		for _, dev := range space.Devices {
			if dev.Name == sourceName {
				return dev
			}
		}
	}
	return nil
}
