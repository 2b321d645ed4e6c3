package signals

import (
	"testing"
	"time"
)

// #region network-tests

func TestFromResponse_Toggle(t *testing.T) {
	p := NewProducer(ProducerConfig{})
	at := time.UnixMilli(42)
	out := p.FromResponse("https://crm.example/Telemonitor/ToggleBreak?x=1", nil, at)
	if len(out) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(out))
	}
	if out[0].Kind != StartHint || out[0].Origin != OriginNetToggle || !out[0].Timestamp.Equal(at) {
		t.Errorf("unexpected signal %+v", out[0])
	}
}

func TestFromResponse_Status(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	url := "https://crm.example/Telemonitor/GetAdvisorBreakStatus"

	on := p.FromResponse(url, []byte(`{"onBreak": true}`), time.Time{})
	if len(on) != 1 || on[0].Kind != VisibleHint || on[0].Origin != OriginNetStatus {
		t.Errorf("expected visible hint, got %+v", on)
	}
	off := p.FromResponse(url, []byte(`{"onBreak": false}`), time.Time{})
	if len(off) != 1 || off[0].Kind != HiddenHint {
		t.Errorf("expected hidden hint, got %+v", off)
	}
	if got := p.FromResponse(url, []byte(`{"agent": "x"}`), time.Time{}); len(got) != 0 {
		t.Errorf("expected nothing for unknown payload, got %+v", got)
	}
}

func TestFromResponse_UnrelatedURL(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	if got := p.FromResponse("https://crm.example/Other", []byte(`{"onBreak": true}`), time.Time{}); len(got) != 0 {
		t.Errorf("expected nothing, got %+v", got)
	}
	if p.Watches("https://crm.example/Other") {
		t.Error("expected unrelated url not to be watched")
	}
}

func TestNewProducer_CustomPaths(t *testing.T) {
	p := NewProducer(ProducerConfig{StatusPath: "/api/state"})
	if p.Config().StatusPath != "/api/state" {
		t.Errorf("expected custom status path, got %s", p.Config().StatusPath)
	}
	if p.Config().TogglePath != DefaultProducerConfig().TogglePath {
		t.Errorf("expected default toggle path, got %s", p.Config().TogglePath)
	}
}

// #endregion network-tests

// #region page-event-tests

func TestFromAnchorClick(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	if _, ok := p.FromAnchorClick("return Break();", time.Time{}); !ok {
		t.Error("expected Break() anchor to produce a start hint")
	}
	if _, ok := p.FromAnchorClick("openMenu()", time.Time{}); ok {
		t.Error("expected unrelated onclick to be ignored")
	}
}

func TestFromUnload(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	var w VisibilityWatch
	if _, ok := p.FromUnload(&w, time.Time{}); ok {
		t.Error("expected no unload signal before any snapshot")
	}
	w.Observe(ElementState{HasLayoutBox: true}, time.Time{})
	sig, ok := p.FromUnload(&w, time.Time{})
	if !ok || sig.Kind != HiddenHint || sig.Origin != OriginUnload {
		t.Errorf("expected unload hidden hint, got %+v ok=%v", sig, ok)
	}
}

func TestFromHook(t *testing.T) {
	sig := NewProducer(DefaultProducerConfig()).FromHook(time.UnixMilli(7))
	if sig.Kind != StartHint || sig.Origin != OriginHook {
		t.Errorf("unexpected hook signal %+v", sig)
	}
}

// #endregion page-event-tests

// #region message-tests

func TestMessageSignal(t *testing.T) {
	sig, err := Message{Type: "break-visible", When: 1500, Via: "initial"}.Signal(OriginWS)
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if sig.Kind != VisibleHint || sig.Origin != OriginInitial || sig.Timestamp.UnixMilli() != 1500 {
		t.Errorf("unexpected signal %+v", sig)
	}

	sig, err = Message{Type: "hidden"}.Signal(OriginSpool)
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if sig.Origin != OriginSpool || !sig.Timestamp.IsZero() {
		t.Errorf("expected default origin and zero time, got %+v", sig)
	}

	if _, err := (Message{Type: "toast"}).Signal(OriginWS); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestMessageFrom(t *testing.T) {
	m := MessageFrom(Signal{Kind: HiddenHint, Timestamp: time.UnixMilli(99), Origin: "unload"})
	if m.Type != "break-hidden" || m.When != 99 || m.Via != "unload" {
		t.Errorf("unexpected message %+v", m)
	}
}

// #endregion message-tests
