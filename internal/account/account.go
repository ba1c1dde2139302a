// Package account owns the in-memory model of every Ajax space and applies
// both input channels to it: push events from the SSE stream and periodic
// REST snapshots. Each space is serialized behind its own actor goroutine.
package account

import (
	"sort"
	"sync"
	"time"

	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/event"
	"github.com/daemonp/ajax2mqtt/internal/log"
	"github.com/daemonp/ajax2mqtt/internal/types"
	"github.com/daemonp/ajax2mqtt/internal/util"
)

const (
	notificationBuffer = 100
	refreshBuffer      = 16
	payloadSampleBytes = 256
)

type Account struct {
	config *config.Config
	log    *log.Logger
	dedup  *event.Deduplicator

	protection *protectionTracker
	pending    *pendingTracker

	mu     sync.RWMutex
	actors map[string]*spaceActor

	notifications chan interface{}
	refreshes     chan string
}

func New(cfg *config.Config, logger *log.Logger) *Account {
	return &Account{
		config: cfg,
		log:    logger,
		dedup: event.NewDeduplicator(
			time.Duration(cfg.Ajax.DedupWindow)*time.Second,
			time.Duration(cfg.Ajax.DedupRetention)*time.Second,
		),
		protection:    newProtectionTracker(time.Duration(cfg.Ajax.ProtectionWindow) * time.Second),
		pending:       newPendingTracker(0),
		actors:        make(map[string]*spaceActor),
		notifications: make(chan interface{}, notificationBuffer),
		refreshes:     make(chan string, refreshBuffer),
	}
}

// Notifications delivers model-changed, audit and scenario notifications.
// The channel is closed by Close.
func (a *Account) Notifications() <-chan interface{} {
	return a.notifications
}

// RefreshRequests delivers hub ids whose state needs an early snapshot.
func (a *Account) RefreshRequests() <-chan string {
	return a.refreshes
}

// HandleMessage is the push-transport callback. It never returns an error:
// a bad delivery is logged and dropped so the stream keeps flowing, and a
// panic while handling one event cannot take down the process.
func (a *Account) HandleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Recovered from panic while handling event: %v (payload: %s)", r, util.Truncate(data, payloadSampleBytes))
		}
	}()

	now := time.Now()

	ev, err := event.Normalize(data, now)
	if err != nil {
		a.log.Debug("Dropping event: %v (payload: %s)", err, util.Truncate(data, payloadSampleBytes))
		return
	}

	info := event.ParseCode(ev.Code)

	key := types.EventKey{SourceID: ev.SourceID, Tag: ev.Tag, Transition: info.Transition}
	if !a.dedup.ShouldProcess(key, now) {
		a.log.Debug("Suppressed duplicate event %s", key)
		return
	}

	category, err := event.Classify(ev.Tag)
	if err != nil {
		a.log.Warning("Dropping event: %v (hub %s, source %q)", err, ev.HubID, ev.SourceName)
		return
	}

	actor := a.actor(ev.HubID)
	if actor == nil {
		a.log.Warning("Event %q for unknown hub %s", ev.Tag, ev.HubID)
		return
	}

	a.log.Event("%s: tag=%s source=%q transition=%s hub=%s", category, ev.Tag, ev.SourceName, info.Transition, ev.HubID)

	actor.enqueue(func() {
		a.applyEvent(actor.space, category, ev, info)
	})
}

// Spaces returns a deep copy of every space, ordered by hub id.
func (a *Account) Spaces() []*types.Space {
	a.mu.RLock()
	actors := make([]*spaceActor, 0, len(a.actors))
	for _, actor := range a.actors {
		actors = append(actors, actor)
	}
	a.mu.RUnlock()

	spaces := make([]*types.Space, 0, len(actors))
	for _, actor := range actors {
		actor.view(func(s *types.Space) {
			spaces = append(spaces, s.Clone())
		})
	}
	sort.Slice(spaces, func(i, j int) bool { return spaces[i].HubID < spaces[j].HubID })
	return spaces
}

// Space returns a deep copy of one space.
func (a *Account) Space(hubID string) (*types.Space, bool) {
	actor := a.actor(hubID)
	if actor == nil {
		return nil, false
	}
	var clone *types.Space
	actor.view(func(s *types.Space) {
		clone = s.Clone()
	})
	return clone, true
}

// IsProtected reports whether hubID sits inside its push-protection window.
func (a *Account) IsProtected(hubID string) bool {
	return a.protection.IsProtected(hubID, time.Now())
}

// MarkPendingCommand records a locally issued arm/disarm command so the
// resulting push event is attributed to the bridge instead of the raw
// cloud actor.
func (a *Account) MarkPendingCommand(hubID string) {
	a.pending.Mark(hubID, time.Now())
}

// HasPendingCommand reports whether hubID has a live command mark.
func (a *Account) HasPendingCommand(hubID string) bool {
	return a.pending.Pending(hubID, time.Now())
}

// Restore seeds the model from the startup cache. It reuses the snapshot
// merge path, so protection and pruning behave exactly like a live poll.
func (a *Account) Restore(data *types.CacheData) {
	if data == nil {
		return
	}
	a.ApplySnapshot(data.Spaces)
}

// SnapshotData renders the current model in cache form.
func (a *Account) SnapshotData() *types.CacheData {
	data := &types.CacheData{LastUpdate: time.Now()}
	for _, space := range a.Spaces() {
		data.Spaces = append(data.Spaces, snapshotOf(space))
	}
	return data
}

func snapshotOf(space *types.Space) types.SpaceSnapshot {
	snap := types.SpaceSnapshot{
		HubID:         space.HubID,
		Name:          space.Name,
		SecurityState: space.SecurityState,
	}
	ids := make([]string, 0, len(space.Devices))
	for id := range space.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		dev := space.Devices[id]
		snap.Devices = append(snap.Devices, types.DeviceSnapshot{
			ID:              dev.ID,
			Name:            dev.Name,
			Type:            dev.Type,
			Online:          dev.Online,
			BatteryLevel:    dev.BatteryLevel,
			SignalStrength:  dev.SignalStrength,
			FirmwareVersion: dev.FirmwareVersion,
			HardwareVersion: dev.HardwareVersion,
			BatteryState:    dev.BatteryState,
			Attributes:      dev.Attributes,
		})
	}
	return snap
}

// Close stops every space actor and closes the outbound channels. Both
// producers, the push stream and the reconciler, must be stopped first.
func (a *Account) Close() {
	a.mu.Lock()
	actors := a.actors
	a.actors = make(map[string]*spaceActor)
	a.mu.Unlock()

	for _, actor := range actors {
		actor.stop()
	}
	close(a.notifications)
	close(a.refreshes)
}

func (a *Account) actor(hubID string) *spaceActor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.actors[hubID]
}

func (a *Account) actorOrCreate(hubID, name string) *spaceActor {
	a.mu.Lock()
	defer a.mu.Unlock()
	if actor, ok := a.actors[hubID]; ok {
		return actor
	}
	space := &types.Space{
		HubID:         hubID,
		Name:          util.Normalize(name),
		SecurityState: types.StateUnknown,
		Devices:       make(map[string]*types.Device),
	}
	actor := newSpaceActor(space)
	a.actors[hubID] = actor
	return actor
}

// notify sends without blocking: a stalled consumer costs notifications,
// never the event pipeline. Drops are logged so they stay observable.
func (a *Account) notify(n interface{}) {
	select {
	case a.notifications <- n:
	default:
		a.log.Warning("Notification queue full, dropping %T", n)
	}
}

func (a *Account) notifyModelChanged(hubID, deviceID string) {
	a.notify(types.ModelChanged{HubID: hubID, DeviceID: deviceID})
}

func (a *Account) requestRefresh(hubID string) {
	select {
	case a.refreshes <- hubID:
	default:
		a.log.Warning("Refresh queue full, dropping request for hub %s", hubID)
	}
}
