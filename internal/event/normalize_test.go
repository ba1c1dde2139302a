package event

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeNestedPayload(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{
		"event": {
			"eventTag": "DoorOpened",
			"eventCode": "A_01_00",
			"hubId": "hub-1",
			"device": {"id": "dev-1", "name": "Front Door", "type": "DoorProtect"}
		}
	}`)

	ev, err := Normalize(payload, now)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if ev.Tag != "dooropened" {
		t.Errorf("expected lowercased tag dooropened, got %q", ev.Tag)
	}
	if ev.HubID != "hub-1" {
		t.Errorf("expected hub id hub-1, got %q", ev.HubID)
	}
	if ev.SourceID != "dev-1" || ev.SourceName != "Front Door" || ev.SourceType != "DoorProtect" {
		t.Errorf("unexpected source identity: id=%q name=%q type=%q", ev.SourceID, ev.SourceName, ev.SourceType)
	}
	if !ev.Timestamp.Equal(now) {
		t.Errorf("expected delivery time fallback %v, got %v", now, ev.Timestamp)
	}
}

func TestNormalizeFlatPayload(t *testing.T) {
	now := time.Now()
	payload := []byte(`{
		"eventTag": "Disarm",
		"hubId": "hub-2",
		"sourceObjectName": "Alice",
		"sourceObjectId": "user-9",
		"sourceObjectType": "USER"
	}`)

	ev, err := Normalize(payload, now)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if ev.Tag != "disarm" {
		t.Errorf("expected tag disarm, got %q", ev.Tag)
	}
	if ev.SourceName != "Alice" || ev.SourceID != "user-9" || ev.SourceType != "USER" {
		t.Errorf("unexpected source identity: name=%q id=%q type=%q", ev.SourceName, ev.SourceID, ev.SourceType)
	}
}

func TestNormalizeFieldPrecedence(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		payload  string
		wantName string
		wantID   string
	}{
		{
			name:     "device object wins over flattened fields",
			payload:  `{"eventTag":"t","hubId":"h","device":{"id":"a","name":"A"},"sourceObjectId":"b","sourceObjectName":"B"}`,
			wantName: "A",
			wantID:   "a",
		},
		{
			name:     "source name wins over flattened names",
			payload:  `{"eventTag":"t","hubId":"h","source":{"name":"S"},"sourceObjectName":"B","sourceName":"C"}`,
			wantName: "S",
			wantID:   "",
		},
		{
			name:     "sourceObjectId wins over deviceId",
			payload:  `{"eventTag":"t","hubId":"h","sourceObjectId":"b","deviceId":"c"}`,
			wantName: "",
			wantID:   "b",
		},
		{
			name:     "legacy fallbacks used when nothing else set",
			payload:  `{"eventTag":"t","hubId":"h","sourceName":"C","deviceId":"c"}`,
			wantName: "C",
			wantID:   "c",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Normalize([]byte(tc.payload), now)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if ev.SourceName != tc.wantName {
				t.Errorf("expected name %q, got %q", tc.wantName, ev.SourceName)
			}
			if ev.SourceID != tc.wantID {
				t.Errorf("expected id %q, got %q", tc.wantID, ev.SourceID)
			}
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		payload string
	}{
		{name: "invalid json", payload: `{"eventTag": `},
		{name: "missing tag", payload: `{"hubId":"h"}`},
		{name: "missing hub", payload: `{"eventTag":"Disarm"}`},
		{name: "empty tag", payload: `{"eventTag":"","hubId":"h"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize([]byte(tc.payload), now)
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	ref := time.Date(2024, 6, 30, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    time.Time
	}{
		{
			name:    "epoch seconds",
			payload: `{"eventTag":"t","hubId":"h","timestamp":1719743400}`,
			want:    ref,
		},
		{
			name:    "epoch milliseconds",
			payload: `{"eventTag":"t","hubId":"h","timestamp":1719743400000}`,
			want:    ref,
		},
		{
			name:    "absent falls back to delivery time",
			payload: `{"eventTag":"t","hubId":"h"}`,
			want:    now,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Normalize([]byte(tc.payload), now)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if !ev.Timestamp.Equal(tc.want) {
				t.Errorf("expected timestamp %v, got %v", tc.want, ev.Timestamp)
			}
		})
	}
}

func TestInitiatorInfo(t *testing.T) {
	now := time.Now()
	payload := []byte(`{
		"eventTag": "RelayOnByScenario",
		"hubId": "h",
		"sourceObjectName": "Hall Relay",
		"additionalDataV2": [
			{"additionalDataV2Type": "OTHER", "objectName": "ignored"},
			{"additionalDataV2Type": "INITIATOR_INFO", "objectName": "Night Lights", "objectType": "SCENARIO"}
		]
	}`)

	ev, err := Normalize(payload, now)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	name, objType := InitiatorInfo(ev.Raw)
	if name != "Night Lights" || objType != "SCENARIO" {
		t.Errorf("expected initiator (Night Lights, SCENARIO), got (%q, %q)", name, objType)
	}
}

func TestInitiatorInfoAbsent(t *testing.T) {
	name, objType := InitiatorInfo(map[string]interface{}{"eventTag": "relayon"})
	if name != "" || objType != "" {
		t.Errorf("expected empty initiator info, got (%q, %q)", name, objType)
	}
}
