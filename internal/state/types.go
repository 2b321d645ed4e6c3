package state

import (
	"errors"
	"time"
)

// ErrInvalidSession is returned when a session does not end after it starts.
var ErrInvalidSession = errors.New("invalid session")

// #region session
// Session is one completed break. End is always after Start.
type Session struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Origin string    `json:"origin,omitempty"` // origin of the closing signal
	Manual bool      `json:"manual,omitempty"`
}

// Duration is End - Start.
func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// #endregion session

// #region current-session
// CurrentSession is the open break, if any. Mirrored to the current_break row.
type CurrentSession struct {
	Start  time.Time `json:"start"`
	Origin string    `json:"origin,omitempty"`
}

// #endregion current-session

// settings keys
const (
	settingTracking = "tracking_enabled"
)
