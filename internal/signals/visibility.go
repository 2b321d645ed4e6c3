package signals

import (
	"strings"
	"time"
)

// #region element-state

// ElementState is a snapshot of the break tag as the page renders it.
type ElementState struct {
	ClassName    string `json:"className"`
	Visibility   string `json:"visibility"` // computed style
	Display      string `json:"display"`    // computed style
	InlineStyle  string `json:"style"`      // raw style attribute
	HasLayoutBox bool   `json:"hasLayout"`  // offsetParent !== null
}

// #endregion element-state

// #region is-visible

// IsVisible reports whether the element is on screen. Inline style is checked
// alongside computed style because transitions can leave computed values stale.
func IsVisible(el ElementState) bool {
	for _, c := range strings.Fields(el.ClassName) {
		if c == "hidden" {
			return false
		}
	}
	if strings.EqualFold(strings.TrimSpace(el.Visibility), "hidden") {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(el.Display), "none") {
		return false
	}
	inline := compactStyle(el.InlineStyle)
	if strings.Contains(inline, "visibility:hidden") || strings.Contains(inline, "display:none") {
		return false
	}
	return el.HasLayoutBox
}

// compactStyle lower-cases a style attribute and drops whitespace so that
// "display: none" and "display:none" compare equal.
func compactStyle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// #endregion is-visible

// #region visibility-watch

// VisibilityWatch turns successive element snapshots into Visible/Hidden hints.
// It is owned by a single observer and is not safe for concurrent use.
type VisibilityWatch struct {
	seen    bool
	visible bool
}

// Observe records a snapshot. The first visible snapshot yields a VisibleHint
// tagged OriginInitial; afterwards only flips produce a signal.
func (w *VisibilityWatch) Observe(el ElementState, at time.Time) (Signal, bool) {
	vis := IsVisible(el)
	if !w.seen {
		w.seen = true
		w.visible = vis
		if vis {
			return Signal{Kind: VisibleHint, Timestamp: at, Origin: OriginInitial}, true
		}
		return Signal{}, false
	}
	if vis == w.visible {
		return Signal{}, false
	}
	w.visible = vis
	if vis {
		return Signal{Kind: VisibleHint, Timestamp: at, Origin: OriginMutation}, true
	}
	return Signal{Kind: HiddenHint, Timestamp: at, Origin: OriginMutation}, true
}

// Visible is the last observed visibility.
func (w *VisibilityWatch) Visible() bool {
	return w.seen && w.visible
}

// Reset forgets the last snapshot, e.g. after the page navigated.
func (w *VisibilityWatch) Reset() {
	w.seen = false
	w.visible = false
}

// #endregion visibility-watch
