package frame

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound steady-state frame types recognized by the input pump. Anything
// else is ignored.
const (
	InboundRealtimeInput    = "realtime_input"
	InboundReadAlongRequest = "read_along_request"
)

// initControl is the control word expected in the first inbound frame.
const initControl = "InitSession"

// ErrNotInit reports a first frame that is not a session init handshake.
var ErrNotInit = errors.New("expected InitSession")

// SessionParams are the handshake parameters passed through to session
// creation. Validation of their values is the lifecycle's concern.
type SessionParams struct {
	Subject             string  `json:"subject"`
	SkillDescription    string  `json:"skill_description"`
	SubskillDescription string  `json:"subskill_description"`
	StudentID           int64   `json:"student_id"`
	CompetencyScore     float64 `json:"competency_score"`
	SkillID             string  `json:"skill_id,omitempty"`
	SubskillID          string  `json:"subskill_id,omitempty"`
	UnitID              string  `json:"unit_id,omitempty"`
}

// DecodeInit parses the handshake frame
// {"text": "InitSession", "data": {...}} and returns its parameters.
func DecodeInit(data []byte) (SessionParams, error) {
	var env struct {
		Text string          `json:"text"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return SessionParams{}, fmt.Errorf("decode handshake: %w", err)
	}
	if env.Text != initControl {
		return SessionParams{}, ErrNotInit
	}
	var p SessionParams
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return SessionParams{}, fmt.Errorf("decode handshake params: %w", err)
		}
	}
	return p, nil
}

// Inbound is one steady-state client frame: its type tag plus the raw bytes,
// forwarded verbatim to the session when the type is recognized.
type Inbound struct {
	Type string
	Raw  json.RawMessage
}

// Recognized reports whether the frame should be forwarded into the session.
func (in Inbound) Recognized() bool {
	return in.Type == InboundRealtimeInput || in.Type == InboundReadAlongRequest
}

// DecodeInbound extracts the type tag of a steady-state frame.
func DecodeInbound(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode inbound frame: %w", err)
	}
	return Inbound{Type: env.Type, Raw: data}, nil
}
