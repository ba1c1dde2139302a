package mqtt

import (
	"context"
	"fmt"
	"testing"

	"github.com/daemonp/ajax2mqtt/internal/account"
	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/log"
	"github.com/daemonp/ajax2mqtt/internal/types"
)

type fakeCommander struct {
	calls []string
	err   error
}

func (f *fakeCommander) ArmSpace(ctx context.Context, hubID string, force bool) error {
	f.calls = append(f.calls, fmt.Sprintf("arm %s force=%v", hubID, force))
	return f.err
}

func (f *fakeCommander) ArmNightMode(ctx context.Context, hubID string, force bool) error {
	f.calls = append(f.calls, fmt.Sprintf("arm_night %s force=%v", hubID, force))
	return f.err
}

func (f *fakeCommander) DisarmSpace(ctx context.Context, hubID string) error {
	f.calls = append(f.calls, fmt.Sprintf("disarm %s", hubID))
	return f.err
}

func newTestMQTT(t *testing.T) (*MQTT, *account.Account, *fakeCommander) {
	t.Helper()

	cfg := &config.Config{
		Ajax: config.AjaxConfig{ProtectionWindow: 5, DedupWindow: 5, DedupRetention: 60},
		MQTT: config.MQTTConfig{Prefix: "ajax2mqtt"},
	}
	logger := log.NewLogger("error")

	acc := account.New(cfg, logger)
	t.Cleanup(acc.Close)
	acc.ApplySnapshot([]types.SpaceSnapshot{
		{HubID: "hub-1", Name: "Home", SecurityState: types.StateDisarmed},
	})

	commander := &fakeCommander{}
	return NewMQTT(&cfg.MQTT, acc, commander, logger), acc, commander
}

func TestHandleSpaceCommand(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"arm", "arm hub-1 force=false"},
		{"force_arm", "arm hub-1 force=true"},
		{"arm_night", "arm_night hub-1 force=false"},
		{"force_arm_night", "arm_night hub-1 force=true"},
		{"disarm", "disarm hub-1"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			m, acc, commander := newTestMQTT(t)
			space, ok := acc.Space("hub-1")
			if !ok {
				t.Fatal("space hub-1 not found")
			}

			m.handleSpaceCommand(space, tt.command)

			if len(commander.calls) != 1 || commander.calls[0] != tt.want {
				t.Errorf("commander calls = %v, want [%s]", commander.calls, tt.want)
			}
			if !acc.HasPendingCommand("hub-1") {
				t.Error("command was not marked pending")
			}
		})
	}
}

func TestHandleSpaceCommandUnknown(t *testing.T) {
	m, acc, commander := newTestMQTT(t)
	space, _ := acc.Space("hub-1")

	m.handleSpaceCommand(space, "self_destruct")

	if len(commander.calls) != 0 {
		t.Errorf("unknown command reached commander: %v", commander.calls)
	}
	if acc.HasPendingCommand("hub-1") {
		t.Error("unknown command must not leave a pending mark")
	}
}

func TestSpaceForCommandTopic(t *testing.T) {
	m, _, _ := newTestMQTT(t)

	space := m.spaceForCommandTopic("ajax2mqtt/space/home/command")
	if space == nil || space.HubID != "hub-1" {
		t.Fatalf("spaceForCommandTopic() = %+v, want hub-1", space)
	}

	if got := m.spaceForCommandTopic("ajax2mqtt/space/garage/command"); got != nil {
		t.Errorf("unknown slug resolved to %+v", got)
	}
}
