package websocket

import "github.com/stemsi/oralexam/internal/examsession"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStartTimer     Action = "start_timer"
	ActionStopTimer      Action = "stop_timer"
	ActionStartRecording Action = "start_recording"
	ActionStopRecording  Action = "stop_recording"
	ActionAdvance        Action = "advance"
	ActionPing           Action = "ping"
)

// RequestEnvelope is the only client message shape; every action is bare.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// StateResponse carries a full session snapshot.
type StateResponse struct {
	Event Event             `json:"event"`
	State examsession.State `json:"state"`
}

type ErrorResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action,omitempty"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
