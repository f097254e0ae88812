package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeMachine(t *testing.T, roomID uint, mode Mode, seed int) *Machine {
	t.Helper()
	m := NewMachine()
	require.NoError(t, m.BeginJoin(roomID, 7, mode))
	require.NoError(t, m.CompleteJoin(roomID, seed))
	return m
}

func TestViewerLifecycle(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.BeginJoin(100, 7, ModeViewer))
	assert.Equal(t, StateJoining, m.State())

	require.NoError(t, m.CompleteJoin(100, 12))
	assert.Equal(t, StateActive, m.State())
	sess, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, 12, sess.Viewers)
	assert.Equal(t, 12, sess.PeakViewers)

	require.NoError(t, m.BeginEnd(100))
	final, ok := m.FinishToIdle(100)
	require.True(t, ok)
	assert.Equal(t, uint(100), final.RoomID)
	assert.Equal(t, StateIdle, m.State())
	_, ok = m.Current()
	assert.False(t, ok)
}

func TestSecondJoinWhileSessionExists(t *testing.T) {
	m := activeMachine(t, 100, ModeViewer, 0)
	err := m.BeginJoin(200, 9, ModeViewer)
	var wrong *ErrWrongState
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, StateActive, wrong.Have)
}

func TestAbortJoinOnlyFromJoining(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.BeginJoin(100, 7, ModeViewer))
	m.AbortJoin(100)
	assert.Equal(t, StateIdle, m.State())

	m = activeMachine(t, 100, ModeViewer, 0)
	m.AbortJoin(100)
	assert.Equal(t, StateActive, m.State())
}

func TestPeakViewersIsMonotonic(t *testing.T) {
	m := activeMachine(t, 100, ModeBroadcaster, 10)
	for _, v := range []int{40, 95, 60, 3} {
		m.RecordViewers(100, v)
	}
	sess, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, 3, sess.Viewers)
	assert.Equal(t, 95, sess.PeakViewers)
}

func TestStaleRoomEventsAreIgnored(t *testing.T) {
	m := activeMachine(t, 100, ModeBroadcaster, 5)
	m.RecordViewers(200, 999)
	m.AddCoins(200, 50)
	m.AddFollower(200)
	assert.False(t, m.SetMicMuted(200, true))

	sess, _ := m.Current()
	assert.Equal(t, 5, sess.Viewers)
	assert.Equal(t, 0, sess.Coins)
	assert.Equal(t, 0, sess.NewFollowers)
	assert.False(t, sess.MicMuted)
}

func TestBroadcasterSummary(t *testing.T) {
	m := NewMachine()
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	clock := start
	m.now = func() time.Time { return clock }

	require.NoError(t, m.BeginJoin(100, 7, ModeBroadcaster))
	require.NoError(t, m.CompleteJoin(100, 1))
	m.RecordViewers(100, 95)
	m.RecordViewers(100, 40)
	m.AddCoins(100, 120)
	m.AddCoins(100, 30)
	m.AddFollower(100)
	m.AddFollower(100)
	m.AddMember(100)
	m.AddFan(100)

	clock = start.Add(1*time.Hour + 23*time.Minute + 45*time.Second)
	require.NoError(t, m.BeginEnd(100))
	summary, history, err := m.Summarize(100)
	require.NoError(t, err)

	assert.Equal(t, "01:23:45", summary.Duration)
	assert.Equal(t, 95, summary.PeakViewers)
	assert.Equal(t, 150, summary.Coins)
	assert.Equal(t, 2, summary.NewFollowers)
	assert.Equal(t, 1, summary.NewMembers)
	assert.Equal(t, 1, summary.NewFans)

	assert.Equal(t, uint(7), history.HostID)
	assert.Equal(t, start, history.StartedAt)
	assert.Equal(t, 5025, history.Duration)
	assert.Equal(t, 150, history.Coins)

	// Session data survives until the summary is acknowledged.
	assert.Equal(t, StateSummarized, m.State())
	_, ok := m.Current()
	assert.True(t, ok)

	m.AcknowledgeSummary()
	assert.Equal(t, StateIdle, m.State())
}

func TestPKBattleOverlayKeepsOuterState(t *testing.T) {
	m := activeMachine(t, 100, ModeBroadcaster, 0)
	require.NoError(t, m.StartPKBattle(100, 9))

	assert.Equal(t, StateActive, m.State())
	sess, _ := m.Current()
	assert.True(t, sess.PKBattleActive)
	assert.Equal(t, uint(9), sess.PKOpponentID)

	m.EndPKBattle(100)
	sess, _ = m.Current()
	assert.False(t, sess.PKBattleActive)
	assert.Equal(t, uint(0), sess.PKOpponentID)
}

func TestForceTeardownWinsFromAnyState(t *testing.T) {
	t.Run("joining", func(t *testing.T) {
		m := NewMachine()
		require.NoError(t, m.BeginJoin(100, 7, ModeViewer))
		assert.True(t, m.ForceTeardown(100))
		assert.Equal(t, StateIdle, m.State())
	})
	t.Run("active", func(t *testing.T) {
		m := activeMachine(t, 100, ModeViewer, 0)
		assert.True(t, m.ForceTeardown(100))
		assert.Equal(t, StateIdle, m.State())
	})
	t.Run("ending", func(t *testing.T) {
		m := activeMachine(t, 100, ModeViewer, 0)
		require.NoError(t, m.BeginEnd(100))
		assert.True(t, m.ForceTeardown(100))
		assert.Equal(t, StateIdle, m.State())
	})
	t.Run("wrong room", func(t *testing.T) {
		m := activeMachine(t, 100, ModeViewer, 0)
		assert.False(t, m.ForceTeardown(200))
		assert.Equal(t, StateActive, m.State())
	})
}

func TestEventLogIsBounded(t *testing.T) {
	m := activeMachine(t, 100, ModeBroadcaster, 0)
	for i := 0; i < maxEventLog+50; i++ {
		m.AddCoins(100, 1)
	}
	sess, _ := m.Current()
	assert.Len(t, sess.EventLog, maxEventLog)
	assert.Equal(t, maxEventLog+50, sess.Coins)
}
