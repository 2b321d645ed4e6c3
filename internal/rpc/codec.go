package rpc

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/break-tracker/internal/engine"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

// #region types
// Reply is what the service reports for one processed signal.
type Reply struct {
	Outcome string
	Reason  string
	Session *state.Session
	Current *state.CurrentSession
}

// Status is the tracker's current state.
type Status struct {
	Tracking bool
	Current  *state.CurrentSession
}

// #endregion types

// #region encode
func resultToStruct(res engine.Result) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"outcome": string(res.Outcome),
		"kind":    res.Signal.Kind.String(),
		"origin":  res.Signal.Origin,
	}
	if res.Reason != "" {
		m["reason"] = res.Reason
	}
	if res.Session != nil {
		m["session"] = sessionToMap(*res.Session)
	}
	if res.Current != nil {
		m["current"] = currentToMap(*res.Current)
	}
	return structpb.NewStruct(m)
}

func statusToStruct(st Status) (*structpb.Struct, error) {
	m := map[string]interface{}{"tracking": st.Tracking}
	if st.Current != nil {
		m["current"] = currentToMap(*st.Current)
	}
	return structpb.NewStruct(m)
}

func sessionToMap(s state.Session) map[string]interface{} {
	return map[string]interface{}{
		"id":       s.ID,
		"start_ms": float64(s.Start.UnixMilli()),
		"end_ms":   float64(s.End.UnixMilli()),
		"origin":   s.Origin,
		"manual":   s.Manual,
	}
}

func currentToMap(c state.CurrentSession) map[string]interface{} {
	return map[string]interface{}{
		"start_ms": float64(c.Start.UnixMilli()),
		"origin":   c.Origin,
	}
}

func messageToStruct(m signals.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"type": m.Type,
		"when": float64(m.When),
		"via":  m.Via,
	})
}

// #endregion encode

// #region decode
func messageFromStruct(s *structpb.Struct) signals.Message {
	f := s.GetFields()
	return signals.Message{
		Type: f["type"].GetStringValue(),
		When: int64(f["when"].GetNumberValue()),
		Via:  f["via"].GetStringValue(),
	}
}

func replyFromStruct(s *structpb.Struct) (Reply, error) {
	f := s.GetFields()
	outcome := f["outcome"].GetStringValue()
	if outcome == "" {
		return Reply{}, fmt.Errorf("reply missing outcome")
	}
	r := Reply{Outcome: outcome, Reason: f["reason"].GetStringValue()}
	if sv := f["session"].GetStructValue(); sv != nil {
		sf := sv.GetFields()
		r.Session = &state.Session{
			ID:     sf["id"].GetStringValue(),
			Start:  msTime(sf["start_ms"]),
			End:    msTime(sf["end_ms"]),
			Origin: sf["origin"].GetStringValue(),
			Manual: sf["manual"].GetBoolValue(),
		}
	}
	r.Current = currentFromValue(f["current"])
	return r, nil
}

func statusFromStruct(s *structpb.Struct) Status {
	f := s.GetFields()
	return Status{
		Tracking: f["tracking"].GetBoolValue(),
		Current:  currentFromValue(f["current"]),
	}
}

func currentFromValue(v *structpb.Value) *state.CurrentSession {
	sv := v.GetStructValue()
	if sv == nil {
		return nil
	}
	f := sv.GetFields()
	return &state.CurrentSession{Start: msTime(f["start_ms"]), Origin: f["origin"].GetStringValue()}
}

func msTime(v *structpb.Value) time.Time {
	return time.UnixMilli(int64(v.GetNumberValue()))
}

// #endregion decode
