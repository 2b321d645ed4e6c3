package signals

import (
	"strings"
	"time"
)

// #region config

// ProducerConfig names the network endpoints whose traffic hints at a break.
type ProducerConfig struct {
	StatusPath string // response body carries the break state
	TogglePath string // any call means the user asked for a break
}

// DefaultProducerConfig returns the paths used by the telemonitor page.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		StatusPath: "/Telemonitor/GetAdvisorBreakStatus",
		TogglePath: "/Telemonitor/ToggleBreak",
	}
}

// #endregion config

// #region producer

// Producer turns raw page observations into Signals. It holds no state of its
// own, so one Producer may be shared by every observer.
type Producer struct {
	config ProducerConfig
}

// NewProducer creates a Producer. Empty paths fall back to the defaults.
func NewProducer(config ProducerConfig) *Producer {
	def := DefaultProducerConfig()
	if config.StatusPath == "" {
		config.StatusPath = def.StatusPath
	}
	if config.TogglePath == "" {
		config.TogglePath = def.TogglePath
	}
	return &Producer{config: config}
}

// Config returns the effective configuration.
func (p *Producer) Config() ProducerConfig {
	return p.config
}

// #endregion producer

// #region network

// FromResponse inspects a completed network call. A toggle call is a start hint;
// a status response is classified and yields a visible or hidden hint. Unclassifiable
// bodies yield nothing.
func (p *Producer) FromResponse(url string, body []byte, at time.Time) []Signal {
	var out []Signal
	if strings.Contains(url, p.config.TogglePath) {
		out = append(out, Signal{Kind: StartHint, Timestamp: at, Origin: OriginNetToggle})
	}
	if strings.Contains(url, p.config.StatusPath) {
		switch InferFromJSON(body) {
		case BreakOn:
			out = append(out, Signal{Kind: VisibleHint, Timestamp: at, Origin: OriginNetStatus})
		case BreakOff:
			out = append(out, Signal{Kind: HiddenHint, Timestamp: at, Origin: OriginNetStatus})
		}
	}
	return out
}

// Watches reports whether a URL is one the producer cares about.
func (p *Producer) Watches(url string) bool {
	return strings.Contains(url, p.config.TogglePath) || strings.Contains(url, p.config.StatusPath)
}

// #endregion network

// #region page-events

// FromHook is emitted when the page's Break() function is invoked.
func (p *Producer) FromHook(at time.Time) Signal {
	return Signal{Kind: StartHint, Timestamp: at, Origin: OriginHook}
}

// FromAnchorClick is the fallback for links wired as onclick="Break()".
func (p *Producer) FromAnchorClick(onclick string, at time.Time) (Signal, bool) {
	if !strings.Contains(strings.ToLower(onclick), "break(") {
		return Signal{}, false
	}
	return Signal{Kind: StartHint, Timestamp: at, Origin: OriginAnchor}, true
}

// FromUnload ends a visible break when the page goes away.
func (p *Producer) FromUnload(w *VisibilityWatch, at time.Time) (Signal, bool) {
	if !w.Visible() {
		return Signal{}, false
	}
	return Signal{Kind: HiddenHint, Timestamp: at, Origin: OriginUnload}, true
}

// #endregion page-events
