package session

import (
	"context"
	"sync"
	"time"

	"brilho/internal/models"
	"brilho/internal/observability"
)

// Machine is the live-session state machine. All methods are synchronous
// and mutex-guarded; transitions issued for a room the machine has already
// left are no-ops, which is how handlers for late-arriving responses avoid
// resurrecting a torn-down session.
type Machine struct {
	mu      sync.Mutex
	state   State
	session Session
	log     *observability.SessionLogger

	now func() time.Time
}

// NewMachine returns a Machine in the idle state.
func NewMachine() *Machine {
	return &Machine{
		state: StateIdle,
		log:   observability.NewSessionLogger(),
		now:   time.Now,
	}
}

// State reports the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the session, valid while not idle.
func (m *Machine) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		return Session{}, false
	}
	s := m.session
	s.EventLog = append([]LogEntry(nil), m.session.EventLog...)
	return s, true
}

// InRoom reports whether the machine currently tracks the given room.
func (m *Machine) InRoom(roomID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != StateIdle && m.session.RoomID == roomID
}

// BeginJoin moves idle → joining. Exactly one live session may exist per
// client, so joining while any session is in flight is an error.
func (m *Machine) BeginJoin(roomID, hostID uint, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return &ErrWrongState{Op: "join", Have: m.state}
	}
	m.transitionLocked(StateJoining, roomID)
	m.session = Session{RoomID: roomID, HostID: hostID, Mode: mode}
	return nil
}

// AbortJoin moves joining → idle, used when a precondition (private-room
// access, blocked device) fails before the room channel was entered.
func (m *Machine) AbortJoin(roomID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateJoining || m.session.RoomID != roomID {
		return
	}
	m.transitionLocked(StateIdle, roomID)
	m.session = Session{}
}

// CompleteJoin moves joining → active with the stream descriptor's seed
// viewer count. Peak starts at the seed.
func (m *Machine) CompleteJoin(roomID uint, seedViewers int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateJoining || m.session.RoomID != roomID {
		return &ErrWrongState{Op: "complete join", Have: m.state}
	}
	m.session.StartTime = m.now()
	m.session.Viewers = seedViewers
	m.session.PeakViewers = seedViewers
	m.appendLogLocked("joined", "")
	m.transitionLocked(StateActive, roomID)
	observability.ActiveSession.Set(1)
	observability.SessionPeakViewers.Set(float64(seedViewers))
	return nil
}

// RecordViewers applies a viewer-count event. Peak is a monotonic max: it
// never decreases even when the current count drops.
func (m *Machine) RecordViewers(roomID uint, viewers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return
	}
	m.session.Viewers = viewers
	if viewers > m.session.PeakViewers {
		m.session.PeakViewers = viewers
		observability.SessionPeakViewers.Set(float64(viewers))
	}
	m.appendLogLocked("viewers", "")
}

// AddCoins credits gift coins to the running session.
func (m *Machine) AddCoins(roomID uint, coins int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return
	}
	m.session.Coins += coins
	m.appendLogLocked("coins", "")
}

// AddFollower counts a follower gained during this session.
func (m *Machine) AddFollower(roomID uint) {
	m.addCounter(roomID, func(s *Session) { s.NewFollowers++ }, "follower")
}

// AddMember counts a fan-club member gained during this session.
func (m *Machine) AddMember(roomID uint) {
	m.addCounter(roomID, func(s *Session) { s.NewMembers++ }, "member")
}

// AddFan counts a fan gained during this session.
func (m *Machine) AddFan(roomID uint) {
	m.addCounter(roomID, func(s *Session) { s.NewFans++ }, "fan")
}

func (m *Machine) addCounter(roomID uint, bump func(*Session), kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return
	}
	bump(&m.session)
	m.appendLogLocked(kind, "")
}

// SetMicMuted records the mic mute flag.
func (m *Machine) SetMicMuted(roomID uint, muted bool) bool {
	return m.setFlag(roomID, func(s *Session) { s.MicMuted = muted })
}

// SetSoundMuted records the sound mute flag.
func (m *Machine) SetSoundMuted(roomID uint, muted bool) bool {
	return m.setFlag(roomID, func(s *Session) { s.SoundMuted = muted })
}

// SetAutoFollow records the auto-follow toggle.
func (m *Machine) SetAutoFollow(roomID uint, on bool) bool {
	return m.setFlag(roomID, func(s *Session) { s.AutoFollow = on })
}

// SetAutoInvite records the auto-invite toggle.
func (m *Machine) SetAutoInvite(roomID uint, on bool) bool {
	return m.setFlag(roomID, func(s *Session) { s.AutoInvite = on })
}

func (m *Machine) setFlag(roomID uint, set func(*Session)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return false
	}
	set(&m.session)
	return true
}

// MicMuted reads the current mic flag for compare-and-revert snapshots.
func (m *Machine) MicMuted(roomID uint) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return false, false
	}
	return m.session.MicMuted, true
}

// SoundMuted reads the current sound flag for compare-and-revert snapshots.
func (m *Machine) SoundMuted(roomID uint) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return false, false
	}
	return m.session.SoundMuted, true
}

// StartPKBattle raises the PK overlay flag. The outer state stays active;
// only which screen renders and how coins are attributed changes.
func (m *Machine) StartPKBattle(roomID, opponentID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return &ErrWrongState{Op: "start PK battle", Have: m.state}
	}
	m.session.PKBattleActive = true
	m.session.PKOpponentID = opponentID
	m.appendLogLocked("pk_start", "")
	return nil
}

// EndPKBattle lowers the PK overlay flag.
func (m *Machine) EndPKBattle(roomID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return
	}
	m.session.PKBattleActive = false
	m.session.PKOpponentID = 0
	m.appendLogLocked("pk_end", "")
}

// BeginEnd moves active → ending: broadcaster end request (post
// confirmation) or viewer leave.
func (m *Machine) BeginEnd(roomID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.session.RoomID != roomID {
		return &ErrWrongState{Op: "end", Have: m.state}
	}
	m.transitionLocked(StateEnding, roomID)
	return nil
}

// FinishToIdle completes the viewer path: ending → idle, no summary.
// Returns the final session for any bookkeeping the caller wants.
func (m *Machine) FinishToIdle(roomID uint) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateEnding || m.session.RoomID != roomID {
		return Session{}, false
	}
	final := m.session
	m.transitionLocked(StateIdle, roomID)
	m.session = Session{}
	observability.ActiveSession.Set(0)
	return final, true
}

// Summarize completes the broadcaster path: ending → summarized. It
// computes the elapsed duration and builds both the persistable history
// entry and the display summary.
func (m *Machine) Summarize(roomID uint) (models.StreamSummaryData, models.StreamHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateEnding || m.session.RoomID != roomID {
		return models.StreamSummaryData{}, models.StreamHistoryEntry{}, &ErrWrongState{Op: "summarize", Have: m.state}
	}
	elapsed := m.now().Sub(m.session.StartTime)
	summary := models.StreamSummaryData{
		Duration:     models.FormatDuration(elapsed),
		PeakViewers:  m.session.PeakViewers,
		Coins:        m.session.Coins,
		NewFollowers: m.session.NewFollowers,
		NewMembers:   m.session.NewMembers,
		NewFans:      m.session.NewFans,
	}
	history := models.StreamHistoryEntry{
		HostID:       m.session.HostID,
		StartedAt:    m.session.StartTime,
		Duration:     int(elapsed.Seconds()),
		Coins:        m.session.Coins,
		PeakViewers:  m.session.PeakViewers,
		NewFollowers: m.session.NewFollowers,
	}
	m.transitionLocked(StateSummarized, roomID)
	observability.ActiveSession.Set(0)
	return summary, history, nil
}

// AcknowledgeSummary moves summarized → idle once the host dismisses the
// summary screen.
func (m *Machine) AcknowledgeSummary() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSummarized {
		return
	}
	m.transitionLocked(StateIdle, m.session.RoomID)
	m.session = Session{}
}

// ForceTeardown tears the session down from any state when a kick names the
// current room. It wins over any in-progress local transition. Returns
// whether a session was actually torn down.
func (m *Machine) ForceTeardown(roomID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle || m.session.RoomID != roomID {
		return false
	}
	m.transitionLocked(StateIdle, roomID)
	m.session = Session{}
	observability.ActiveSession.Set(0)
	return true
}

func (m *Machine) transitionLocked(to State, roomID uint) {
	from := m.state
	m.state = to
	m.log.LogTransition(context.Background(), string(from), string(to), roomID)
}

func (m *Machine) appendLogLocked(kind, detail string) {
	m.session.EventLog = append(m.session.EventLog, LogEntry{At: m.now(), Kind: kind, Detail: detail})
	if len(m.session.EventLog) > maxEventLog {
		m.session.EventLog = m.session.EventLog[len(m.session.EventLog)-maxEventLog:]
	}
}
