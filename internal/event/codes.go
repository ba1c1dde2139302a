package event

import (
	"strings"

	"github.com/daemonp/ajax2mqtt/internal/types"
)

// CodeInfo is the decoded form of a vendor event code such as "M_22_00":
// a class letter, a group number and a qualifier. Only the class and the
// recovery qualifier carry meaning here.
type CodeInfo struct {
	Type       string
	Transition types.Transition
}

const CodeTypeUnknown = "UNKNOWN"

var codeClasses = map[byte]string{
	'A': "ALARM",
	'D': "DEVICE",
	'M': "MODE",
	'R': "RESTORE",
	'S': "SCENARIO",
}

// The third code segment marks the clearing edge of a paired event, as
// does the dedicated restore class.
const recoveredQualifier = "01"

// ParseCode decodes a vendor event code. Codes are optional metadata, so
// empty or unrecognized shapes degrade to an UNKNOWN type with a TRIGGERED
// transition instead of failing the event.
func ParseCode(code string) CodeInfo {
	info := CodeInfo{Type: CodeTypeUnknown, Transition: types.TransitionTriggered}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return info
	}

	parts := strings.Split(code, "_")
	if len(parts[0]) != 1 {
		return info
	}

	class := parts[0][0]
	if name, ok := codeClasses[class]; ok {
		info.Type = name
	}
	if class == 'R' {
		info.Transition = types.TransitionRecovered
		return info
	}
	if len(parts) >= 3 && parts[2] == recoveredQualifier {
		info.Transition = types.TransitionRecovered
	}
	return info
}
