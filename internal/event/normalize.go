// Package event implements the push-channel pipeline: payload normalization,
// vendor code parsing, deduplication and tag classification.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/daemonp/ajax2mqtt/internal/types"
)

// Normalize parses one raw push delivery into a canonical event. Payloads
// arrive either wrapped in an "event" object or flat, and identity fields
// appear under several legacy names; both shapes collapse here so nothing
// downstream touches the wire format.
func Normalize(data []byte, now time.Time) (*types.Event, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return NormalizeMap(payload, now)
}

// NormalizeMap is Normalize for an already-decoded payload.
func NormalizeMap(payload map[string]interface{}, now time.Time) (*types.Event, error) {
	fields := payload
	if nested, ok := payload["event"].(map[string]interface{}); ok {
		fields = nested
	}

	tag := strings.ToLower(RawString(fields, "eventTag"))
	hubID := RawString(fields, "hubId")
	if tag == "" || hubID == "" {
		return nil, fmt.Errorf("%w: missing eventTag or hubId", ErrMalformedEvent)
	}

	device, _ := fields["device"].(map[string]interface{})
	source, _ := fields["source"].(map[string]interface{})

	ev := &types.Event{
		Tag:   tag,
		Code:  RawString(fields, "eventCode"),
		HubID: hubID,
		SourceName: firstNonEmpty(
			RawString(device, "name"),
			RawString(source, "name"),
			RawString(fields, "sourceObjectName"),
			RawString(fields, "sourceName"),
		),
		SourceID: firstNonEmpty(
			RawString(device, "id"),
			RawString(fields, "sourceObjectId"),
			RawString(fields, "deviceId"),
		),
		SourceType: firstNonEmpty(
			RawString(device, "type"),
			RawString(source, "type"),
			RawString(fields, "sourceObjectType"),
			RawString(fields, "sourceType"),
		),
		Timestamp: now,
		Raw:       fields,
	}

	// Timestamps arrive as epoch seconds or milliseconds depending on the
	// proxy generation.
	if ts, ok := rawNumber(fields, "timestamp"); ok && ts > 0 {
		if ts > 1e12 {
			ev.Timestamp = time.UnixMilli(int64(ts)).UTC()
		} else {
			ev.Timestamp = time.Unix(int64(ts), 0).UTC()
		}
	}

	return ev, nil
}

// InitiatorInfo extracts the scenario initiator entry from a payload's
// additionalDataV2 block. Both values are empty when no INITIATOR_INFO
// entry is present.
func InitiatorInfo(raw map[string]interface{}) (objectName, objectType string) {
	entries, _ := raw["additionalDataV2"].([]interface{})
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if RawString(m, "additionalDataV2Type") != "INITIATOR_INFO" {
			continue
		}
		return RawString(m, "objectName"), RawString(m, "objectType")
	}
	return "", ""
}

// RawString reads a string field from a decoded payload, tolerating nil
// maps and non-string values.
func RawString(fields map[string]interface{}, key string) string {
	if fields == nil {
		return ""
	}
	value, _ := fields[key].(string)
	return strings.TrimSpace(value)
}

func rawNumber(fields map[string]interface{}, key string) (float64, bool) {
	if fields == nil {
		return 0, false
	}
	value, ok := fields[key].(float64)
	return value, ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
