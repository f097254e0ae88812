package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"brilho/internal/observability"

	"github.com/gorilla/websocket"
)

// Handler consumes one event payload. Handlers run on the dispatch
// goroutine, one message at a time, in arrival order.
type Handler func(payload json.RawMessage)

// TicketFunc obtains a short-lived auth ticket for the channel, typically
// backed by the API's /channel/ticket endpoint.
type TicketFunc func(ctx context.Context) (string, error)

// Options configures a Channel.
type Options struct {
	URL      string
	MinDelay time.Duration
	MaxDelay time.Duration
	Ticket   TicketFunc
}

type registration struct {
	id int
	fn Handler
}

type channelState int

const (
	stateIdle channelState = iota
	stateConnected
	stateClosed
)

// Channel is the event-bus client: it subscribes to the server-push channel,
// delivers typed payloads to registered handlers and tracks per-room
// subscriptions across reconnects.
//
// Delivery is at-most-once per message per handler; messages in flight
// during a connection drop are lost, so consumers reconcile via pull after
// reconnects.
type Channel struct {
	opts Options
	log  *observability.ChannelLogger

	mu           sync.Mutex
	conn         *websocket.Conn
	handlers     map[string][]registration
	nextID       int
	rooms        map[uint]struct{}
	state        channelState
	identity     uint
	reconnectFns []func()

	inbox chan Envelope
	done  chan struct{}
}

// NewChannel returns an unconnected Channel.
func NewChannel(opts Options) *Channel {
	if opts.MinDelay <= 0 {
		opts.MinDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = 30 * time.Second
	}
	return &Channel{
		opts:     opts,
		log:      observability.NewChannelLogger("push"),
		handlers: make(map[string][]registration),
		rooms:    make(map[uint]struct{}),
		inbox:    make(chan Envelope, 256),
		done:     make(chan struct{}),
	}
}

// Connect dials the channel for the given identity and starts the read and
// dispatch loops. Calling Connect on a connected channel is an error.
func (c *Channel) Connect(ctx context.Context, identity uint) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return errAlreadyConnected
	}
	c.identity = identity
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = stateConnected
	c.mu.Unlock()
	c.log.LogConnect(ctx, identity)

	go c.dispatchLoop()
	go c.readLoop()
	return nil
}

// Disconnect closes the channel and stops both loops. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	c.state = stateClosed
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
		_ = conn.Close()
	}
	c.log.LogDisconnect(context.Background(), "client disconnect")
}

// OnReconnect registers fn to run after a dropped connection has been
// re-established and room subscriptions replayed. Messages in flight
// during the drop are lost, so this is where consumers trigger their pull
// reconciliation. fn runs on the read goroutine; long work belongs in a
// goroutine of its own.
func (c *Channel) OnReconnect(fn func()) {
	c.mu.Lock()
	c.reconnectFns = append(c.reconnectFns, fn)
	c.mu.Unlock()
}

// On registers a handler for the named event and returns its unsubscribe
// function. Handlers for one name run in registration order.
func (c *Channel) On(name string, fn Handler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[name] = append(c.handlers[name], registration{id: id, fn: fn})
	c.mu.Unlock()
	return func() { c.off(name, id) }
}

func (c *Channel) off(name string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	regs := c.handlers[name]
	for i := range regs {
		if regs[i].id == id {
			c.handlers[name] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// JoinRoom subscribes to a room's events. Joining an already-joined room is
// a no-op.
func (c *Channel) JoinRoom(roomID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; ok {
		return nil
	}
	c.rooms[roomID] = struct{}{}
	return c.writeControlLocked("joinRoom", roomID)
}

// LeaveRoom unsubscribes from a room's events. Leaving an unjoined room is
// a no-op. In-flight requests for the room are not cancelled; their
// handlers check the active session before applying results.
func (c *Channel) LeaveRoom(roomID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; !ok {
		return nil
	}
	delete(c.rooms, roomID)
	return c.writeControlLocked("leaveRoom", roomID)
}

// JoinedRooms reports the rooms currently subscribed.
func (c *Channel) JoinedRooms() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

type roomControl struct {
	RoomID uint `json:"room_id"`
}

func (c *Channel) writeControlLocked(kind string, roomID uint) error {
	if c.conn == nil {
		return nil
	}
	payload, _ := json.Marshal(roomControl{RoomID: roomID})
	raw, _ := json.Marshal(Envelope{Type: kind, Payload: payload})
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.log.LogError(context.Background(), err, kind)
		return err
	}
	return nil
}

// dial obtains a ticket, opens the websocket and replays room subscriptions.
func (c *Channel) dial(ctx context.Context) error {
	url := c.opts.URL
	if c.opts.Ticket != nil {
		ticket, err := c.opts.Ticket(ctx)
		if err != nil {
			return err
		}
		url += "?ticket=" + ticket
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	// Disconnect may have won the race while the dial was in flight;
	// installing the connection now would leak it with nothing left to
	// close it.
	if c.state == stateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return errChannelClosed
	}
	c.conn = conn
	for roomID := range c.rooms {
		_ = c.writeControlLocked("joinRoom", roomID)
	}
	c.mu.Unlock()
	return nil
}

func (c *Channel) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.state == stateClosed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.log.LogDisconnect(context.Background(), err.Error())
			if !c.reconnect() {
				return
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			observability.ChannelDroppedEventsTotal.WithLabelValues("decode").Inc()
			continue
		}
		select {
		case c.inbox <- env:
		case <-c.done:
			return
		}
	}
}

// reconnect retries the dial with exponential backoff until it succeeds or
// the channel is closed. Room subscriptions are replayed by dial.
func (c *Channel) reconnect() bool {
	delay := c.opts.MinDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		observability.ChannelReconnectsTotal.Inc()
		c.log.LogReconnect(context.Background(), attempt, delay.Milliseconds())

		if err := c.dial(context.Background()); err == nil {
			c.log.LogConnect(context.Background(), c.identity)
			c.mu.Lock()
			fns := make([]func(), len(c.reconnectFns))
			copy(fns, c.reconnectFns)
			c.mu.Unlock()
			for _, fn := range fns {
				fn()
			}
			return true
		}

		delay *= 2
		if delay > c.opts.MaxDelay {
			delay = c.opts.MaxDelay
		}
	}
}

// dispatchLoop serializes handler execution: one message at a time, arrival
// order preserved.
func (c *Channel) dispatchLoop() {
	for {
		select {
		case env := <-c.inbox:
			c.dispatch(env)
		case <-c.done:
			return
		}
	}
}

func (c *Channel) dispatch(env Envelope) {
	c.mu.Lock()
	regs := append([]registration(nil), c.handlers[env.Type]...)
	c.mu.Unlock()

	observability.ChannelEventsTotal.WithLabelValues(env.Type).Inc()
	if len(regs) == 0 {
		observability.ChannelDroppedEventsTotal.WithLabelValues("unhandled").Inc()
		return
	}
	c.log.LogEvent(context.Background(), env.Type, len(regs))
	for _, reg := range regs {
		reg.fn(env.Payload)
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateClosed
}
