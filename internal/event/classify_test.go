package event

import (
	"errors"
	"testing"

	"github.com/daemonp/ajax2mqtt/internal/types"
)

func TestClassifyKnownTags(t *testing.T) {
	tests := []struct {
		tag  string
		want types.Category
	}{
		{tag: "arm", want: types.CategorySecurity},
		{tag: "disarm", want: types.CategorySecurity},
		{tag: "grouparm", want: types.CategorySecurity},
		{tag: "dooropened", want: types.CategoryDoor},
		{tag: "motiondetected", want: types.CategoryMotion},
		{tag: "smokedetected", want: types.CategorySmoke},
		{tag: "hightemperature", want: types.CategorySmoke},
		{tag: "codetected", want: types.CategorySmoke},
		{tag: "leakdetected", want: types.CategoryFlood},
		{tag: "glassbreak", want: types.CategoryGlass},
		{tag: "lidopened", want: types.CategoryTamper},
		{tag: "devicelost", want: types.CategoryDeviceStatus},
		{tag: "lowbattery", want: types.CategoryDeviceStatus},
		{tag: "relayon", want: types.CategoryRelay},
		{tag: "relayonbyscenario", want: types.CategoryScenario},
	}

	for _, tc := range tests {
		t.Run(tc.tag, func(t *testing.T) {
			got, err := Classify(tc.tag)
			if err != nil {
				t.Fatalf("Classify(%q) returned error: %v", tc.tag, err)
			}
			if got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.tag, got, tc.want)
			}
		})
	}
}

func TestClassifyUnknownTag(t *testing.T) {
	_, err := Classify("somenewtag")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

// Each tag must belong to exactly one category, or the merged index would
// silently shadow entries.
func TestCategoryTablesDisjoint(t *testing.T) {
	total := len(SecurityStates) + len(DoorRules) + len(MotionRules) +
		len(SmokeRules) + len(FloodRules) + len(GlassRules) +
		len(TamperRules) + len(StatusRules) + len(RelayRules) + len(ScenarioTags)

	if len(categoryIndex) != total {
		t.Errorf("category index has %d entries, tables define %d: a tag is in two tables", len(categoryIndex), total)
	}
}

func TestEveryTableTagClassifies(t *testing.T) {
	assert := func(tag string, want types.Category) {
		t.Helper()
		got, err := Classify(tag)
		if err != nil {
			t.Errorf("Classify(%q) returned error: %v", tag, err)
			return
		}
		if got != want {
			t.Errorf("Classify(%q) = %v, want %v", tag, got, want)
		}
	}

	for tag := range SecurityStates {
		assert(tag, types.CategorySecurity)
	}
	for tag := range DoorRules {
		assert(tag, types.CategoryDoor)
	}
	for tag := range MotionRules {
		assert(tag, types.CategoryMotion)
	}
	for tag := range SmokeRules {
		assert(tag, types.CategorySmoke)
	}
	for tag := range FloodRules {
		assert(tag, types.CategoryFlood)
	}
	for tag := range GlassRules {
		assert(tag, types.CategoryGlass)
	}
	for tag := range TamperRules {
		assert(tag, types.CategoryTamper)
	}
	for tag := range StatusRules {
		assert(tag, types.CategoryDeviceStatus)
	}
	for tag := range RelayRules {
		assert(tag, types.CategoryRelay)
	}
	for tag := range ScenarioTags {
		assert(tag, types.CategoryScenario)
	}
}
