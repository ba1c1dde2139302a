package mqtt

import (
	"fmt"

	"github.com/daemonp/ajax2mqtt/internal/types"
	"github.com/daemonp/ajax2mqtt/internal/util"
)

type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

func (t *Topics) Space(space *types.Space) string {
	return fmt.Sprintf("%s/space/%s", t.prefix, util.Slugify(space.Name))
}

func (t *Topics) SpaceCommand(space *types.Space) string {
	return fmt.Sprintf("%s/space/%s/command", t.prefix, util.Slugify(space.Name))
}

// SpaceCommandWildcard covers the command topics of every space with a
// single subscription, so spaces discovered after connect still work.
func (t *Topics) SpaceCommandWildcard() string {
	return fmt.Sprintf("%s/space/+/command", t.prefix)
}

func (t *Topics) Device(space *types.Space, device *types.Device) string {
	return fmt.Sprintf("%s/space/%s/device/%s", t.prefix, util.Slugify(space.Name), util.Slugify(device.Name))
}

func (t *Topics) Event() string {
	return fmt.Sprintf("%s/event", t.prefix)
}

func (t *Topics) Scenario() string {
	return fmt.Sprintf("%s/scenario", t.prefix)
}
