package signals

import (
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region break-state

// BreakState is the tri-state verdict of the payload classifier.
type BreakState int

const (
	BreakUnknown BreakState = iota
	BreakOn
	BreakOff
)

func (b BreakState) String() string {
	switch b {
	case BreakOn:
		return "on"
	case BreakOff:
		return "off"
	default:
		return "unknown"
	}
}

// #endregion break-state

// #region vocabulary

var (
	onWords       = []string{"on", "true", "active", "started"}
	offWords      = []string{"off", "false", "inactive", "ended"}
	statusOnWords = []string{"on", "active"}
)

// #endregion vocabulary

// #region infer

// InferBreakState guesses the break state from a response payload of unknown schema.
// Keys containing "break" are inspected in sorted order; the first that resolves wins.
// A string "status" mentioning break is the fallback.
func InferBreakState(v *structpb.Value) (state BreakState) {
	defer func() {
		if recover() != nil {
			state = BreakUnknown
		}
	}()

	obj, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok || obj.StructValue == nil {
		return BreakUnknown
	}
	fields := obj.StructValue.GetFields()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if strings.Contains(strings.ToLower(k), "break") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch x := fields[k].GetKind().(type) {
		case *structpb.Value_BoolValue:
			if x.BoolValue {
				return BreakOn
			}
			return BreakOff
		case *structpb.Value_NumberValue:
			if x.NumberValue == 1 {
				return BreakOn
			}
			return BreakOff
		case *structpb.Value_StringValue:
			text := strings.ToLower(x.StringValue)
			if containsAny(text, onWords) {
				return BreakOn
			}
			if containsAny(text, offWords) {
				return BreakOff
			}
		}
	}

	if status, ok := fields["status"].GetKind().(*structpb.Value_StringValue); ok {
		text := strings.ToLower(status.StringValue)
		if strings.Contains(text, "break") {
			if containsAny(text, statusOnWords) {
				return BreakOn
			}
			return BreakOff
		}
	}
	return BreakUnknown
}

// InferFromJSON decodes an arbitrary JSON document and classifies it.
// Anything that is not valid JSON is unknown.
func InferFromJSON(data []byte) BreakState {
	v := &structpb.Value{}
	if err := protojson.Unmarshal(data, v); err != nil {
		return BreakUnknown
	}
	return InferBreakState(v)
}

// #endregion infer

// #region helpers

// containsAny reports whether text contains any vocabulary entry as a
// substring, so "onbreak" and "breakstarted" both match.
func containsAny(text string, vocab []string) bool {
	for _, v := range vocab {
		if strings.Contains(text, v) {
			return true
		}
	}
	return false
}

// #endregion helpers
