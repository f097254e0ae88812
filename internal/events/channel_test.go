package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pushServer is a minimal websocket endpoint that records inbound control
// envelopes and lets tests push events to the connected client.
type pushServer struct {
	*httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	controls []Envelope
	tickets  []string
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{}
	upgrader := websocket.Upgrader{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conns = append(ps.conns, conn)
		ps.tickets = append(ps.tickets, r.URL.Query().Get("ticket"))
		ps.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(raw, &env) == nil {
				ps.mu.Lock()
				ps.controls = append(ps.controls, env)
				ps.mu.Unlock()
			}
		}
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

func (ps *pushServer) push(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	require.NoError(t, err)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	require.NotEmpty(t, ps.conns)
	conn := ps.conns[len(ps.conns)-1]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
}

func (ps *pushServer) controlLog() []Envelope {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]Envelope(nil), ps.controls...)
}

func (ps *pushServer) dropConnections() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, conn := range ps.conns {
		_ = conn.Close()
	}
	ps.conns = nil
}

func (ps *pushServer) connCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.conns)
}

func newTestChannel(ps *pushServer) *Channel {
	return NewChannel(Options{
		URL:      ps.wsURL(),
		MinDelay: 10 * time.Millisecond,
		MaxDelay: 100 * time.Millisecond,
		Ticket: func(ctx context.Context) (string, error) {
			return "test-ticket", nil
		},
	})
}

func TestConnectSendsTicket(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	defer ch.Disconnect()

	ps.mu.Lock()
	defer ps.mu.Unlock()
	require.Len(t, ps.tickets, 1)
	assert.Equal(t, "test-ticket", ps.tickets[0])
}

func TestConnectTwiceFails(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	defer ch.Disconnect()

	assert.Error(t, ch.Connect(context.Background(), 1))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	ch.Disconnect()
	ch.Disconnect()
}

func TestHandlersRunInArrivalOrder(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	defer ch.Disconnect()

	var mu sync.Mutex
	var got []int
	ch.On(EventViewerCount, func(raw json.RawMessage) {
		p, err := DecodePayload[ViewerCount](raw)
		require.NoError(t, err)
		mu.Lock()
		got = append(got, p.Viewers)
		mu.Unlock()
	})

	for _, v := range []int{1, 2, 3, 4, 5} {
		ps.push(t, EventViewerCount, ViewerCount{RoomID: 100, Viewers: v})
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	mu.Unlock()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	defer ch.Disconnect()

	var mu sync.Mutex
	first, second := 0, 0
	unsub := ch.On(EventViewerCount, func(json.RawMessage) {
		mu.Lock()
		first++
		mu.Unlock()
	})
	ch.On(EventViewerCount, func(json.RawMessage) {
		mu.Lock()
		second++
		mu.Unlock()
	})

	ps.push(t, EventViewerCount, ViewerCount{RoomID: 100, Viewers: 1})
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return second == 1
	}, 2*time.Second, 10*time.Millisecond)

	unsub()
	ps.push(t, EventViewerCount, ViewerCount{RoomID: 100, Viewers: 2})
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return second == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, first)
	mu.Unlock()
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	defer ch.Disconnect()

	require.NoError(t, ch.JoinRoom(100))
	require.NoError(t, ch.JoinRoom(100))
	require.NoError(t, ch.LeaveRoom(100))
	require.NoError(t, ch.LeaveRoom(100))
	// Leaving a never-joined room sends nothing either.
	require.NoError(t, ch.LeaveRoom(200))

	assert.Eventually(t, func() bool {
		return len(ps.controlLog()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	log := ps.controlLog()
	assert.Equal(t, "joinRoom", log[0].Type)
	assert.Equal(t, "leaveRoom", log[1].Type)
	assert.Empty(t, ch.JoinedRooms())
}

func TestReconnectReplaysRoomSubscriptions(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	defer ch.Disconnect()

	require.NoError(t, ch.JoinRoom(100))
	assert.Eventually(t, func() bool {
		return len(ps.controlLog()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ps.dropConnections()

	// The client redials and replays the joinRoom for room 100.
	assert.Eventually(t, func() bool {
		return ps.connCount() == 1 && len(ps.controlLog()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	log := ps.controlLog()
	assert.Equal(t, "joinRoom", log[1].Type)

	// Events flow again after the reconnect.
	var mu sync.Mutex
	delivered := false
	ch.On(EventViewerCount, func(json.RawMessage) {
		mu.Lock()
		delivered = true
		mu.Unlock()
	})
	ps.push(t, EventViewerCount, ViewerCount{RoomID: 100, Viewers: 9})
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []uint{100}, ch.JoinedRooms())
}

func TestReconnectRunsRegisteredCallbacks(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)

	var mu sync.Mutex
	fired := 0
	ch.OnReconnect(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	require.NoError(t, ch.Connect(context.Background(), 1))
	defer ch.Disconnect()

	// The initial connect is not a reconnect.
	assert.Eventually(t, func() bool { return ps.connCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Zero(t, fired)
	mu.Unlock()

	ps.dropConnections()

	// The callback fires once the dropped connection is back, after room
	// replay, so consumers can pull-reconcile what they missed.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDialAfterDisconnectDoesNotInstallConnection(t *testing.T) {
	ps := newPushServer(t)
	ch := newTestChannel(ps)
	require.NoError(t, ch.Connect(context.Background(), 1))
	ch.Disconnect()

	// A dial that loses the race against Disconnect must close the fresh
	// connection instead of installing it, or it leaks forever.
	err := ch.dial(context.Background())
	require.ErrorIs(t, err, errChannelClosed)

	ch.mu.Lock()
	assert.Nil(t, ch.conn)
	ch.mu.Unlock()
}
