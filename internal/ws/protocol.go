package ws

import (
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgTransition MessageType = "transition"
	MsgError      MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Tracking bool                  `json:"tracking"`
	Current  *state.CurrentSession `json:"current,omitempty"`
}

// TransitionPayload is sent whenever a break opens or closes.
type TransitionPayload struct {
	Outcome string                `json:"outcome"`
	Signal  signals.Message       `json:"signal"`
	Session *state.Session        `json:"session,omitempty"`
	Current *state.CurrentSession `json:"current,omitempty"`
	Reason  string                `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
