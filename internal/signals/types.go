package signals

import (
	"encoding/json"
	"fmt"
	"time"
)

// #region kind

// Kind is the semantic hint an observation carries.
type Kind int

const (
	StartHint Kind = iota
	VisibleHint
	HiddenHint
)

var kindNames = map[Kind]string{
	StartHint:   "start",
	VisibleHint: "visible",
	HiddenHint:  "hidden",
}

// kindFromName accepts both the short names and the extension's message types.
var kindFromName = map[string]Kind{
	"start":         StartHint,
	"visible":       VisibleHint,
	"hidden":        HiddenHint,
	"break-start":   StartHint,
	"break-visible": VisibleHint,
	"break-hidden":  HiddenHint,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind resolves a kind name. Unknown names are an error.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindFromName[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown signal kind %q", name)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// #endregion kind

// #region origins

// Origin tags. Only OriginInitial influences a transition; the rest are diagnostic.
const (
	OriginHook      = "hook"
	OriginAnchor    = "anchor"
	OriginMutation  = "mutation"
	OriginInitial   = "initial"
	OriginNetToggle = "net-toggle"
	OriginNetStatus = "net-status"
	OriginUnload    = "unload"
	OriginManual    = "manual"
	OriginWS        = "ws"
	OriginSpool     = "spool"
	OriginRPC       = "rpc"
)

// #endregion origins

// #region signal

// Signal is one observation hinting that a break started, became visible, or ended.
// A zero Timestamp means "when processed".
type Signal struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin"`
}

func (s Signal) String() string {
	if s.Timestamp.IsZero() {
		return fmt.Sprintf("%s via %s", s.Kind, s.Origin)
	}
	return fmt.Sprintf("%s via %s @ %s", s.Kind, s.Origin, s.Timestamp.UTC().Format(time.RFC3339))
}

// #endregion signal

// #region message

// Message is the wire shape sent by page-side collaborators:
// {"type": "break-start", "when": 1718000000000, "via": "hook"}.
type Message struct {
	Type string `json:"type"`
	When int64  `json:"when,omitempty"`
	Via  string `json:"via,omitempty"`
}

// Signal converts the message. defaultOrigin fills an empty Via.
func (m Message) Signal(defaultOrigin string) (Signal, error) {
	kind, err := ParseKind(m.Type)
	if err != nil {
		return Signal{}, err
	}
	sig := Signal{Kind: kind, Origin: m.Via}
	if sig.Origin == "" {
		sig.Origin = defaultOrigin
	}
	if m.When > 0 {
		sig.Timestamp = time.UnixMilli(m.When)
	}
	return sig, nil
}

// MessageFrom is the inverse of Message.Signal.
func MessageFrom(sig Signal) Message {
	m := Message{Type: "break-" + sig.Kind.String(), Via: sig.Origin}
	if !sig.Timestamp.IsZero() {
		m.When = sig.Timestamp.UnixMilli()
	}
	return m
}

// #endregion message
