package browser

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

type pageEvent struct {
	Type    string  `json:"type"` // "hook" | "anchor"
	OnClick string  `json:"onclick,omitempty"`
	TS      float64 `json:"ts"`
}

type pollResult struct {
	Events  []pageEvent           `json:"events"`
	Element *signals.ElementState `json:"el"`
	TS      float64               `json:"ts"`
}

// Translator turns raw page observations into signals. It owns the
// visibility watch for one page and is safe for concurrent use.
type Translator struct {
	producer *signals.Producer
	mu       sync.Mutex
	watch    signals.VisibilityWatch
}

func NewTranslator(producer *signals.Producer) *Translator {
	return &Translator{producer: producer}
}

// FromPoll decodes one poll result. Hook and anchor events come first,
// then any visibility flip of the break tag.
func (t *Translator) FromPoll(raw []byte) ([]signals.Signal, error) {
	var p pollResult
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode poll: %w", err)
	}

	var out []signals.Signal
	for _, ev := range p.Events {
		at := msTime(ev.TS)
		switch ev.Type {
		case "hook":
			out = append(out, t.producer.FromHook(at))
		case "anchor":
			if sig, ok := t.producer.FromAnchorClick(ev.OnClick, at); ok {
				out = append(out, sig)
			}
		}
	}

	if p.Element != nil {
		t.mu.Lock()
		sig, ok := t.watch.Observe(*p.Element, msTime(p.TS))
		t.mu.Unlock()
		if ok {
			out = append(out, sig)
		}
	}
	return out, nil
}

// FromNavigation handles the main frame leaving the current document. A
// visible tag at that point ends the break.
func (t *Translator) FromNavigation(at time.Time) (signals.Signal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sig, ok := t.producer.FromUnload(&t.watch, at)
	t.watch.Reset()
	return sig, ok
}

// FromResponse classifies a finished network response.
func (t *Translator) FromResponse(url string, body []byte, at time.Time) []signals.Signal {
	return t.producer.FromResponse(url, body, at)
}

// Watches reports whether a response URL is worth fetching.
func (t *Translator) Watches(url string) bool {
	return t.producer.Watches(url)
}

func msTime(ms float64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}
