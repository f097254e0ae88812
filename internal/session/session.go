// Package session tracks the lifecycle of being inside a live room: one
// ephemeral session per client, moving idle → joining → active → ending →
// summarized → idle. The machine owns all live metrics (viewers, peak,
// coins, new followers/members/fans) and enforces the single-active-session
// invariant by construction.
package session

import (
	"time"
)

// State is the outer lifecycle state.
type State string

// Lifecycle states.
const (
	StateIdle       State = "idle"
	StateJoining    State = "joining"
	StateActive     State = "active"
	StateEnding     State = "ending"
	StateSummarized State = "summarized"
)

// Mode is the orthogonal sub-mode of an active session.
type Mode string

// Sub-modes.
const (
	ModeViewer      Mode = "viewer"
	ModeBroadcaster Mode = "broadcaster"
)

// maxEventLog bounds the in-session event log; oldest entries drop first.
const maxEventLog = 512

// LogEntry is one ordered entry of the in-session event log.
type LogEntry struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Session is the ephemeral state of the room the client is currently in.
type Session struct {
	RoomID         uint
	HostID         uint
	Mode           Mode
	StartTime      time.Time
	Viewers        int
	PeakViewers    int
	Coins          int
	NewFollowers   int
	NewMembers     int
	NewFans        int
	MicMuted       bool
	SoundMuted     bool
	AutoFollow     bool
	AutoInvite     bool
	PKBattleActive bool
	PKOpponentID   uint
	EventLog       []LogEntry
}

// ErrWrongState reports a transition attempted from an incompatible state.
type ErrWrongState struct {
	Op   string
	Have State
}

func (e *ErrWrongState) Error() string {
	return "session: cannot " + e.Op + " while " + string(e.Have)
}
