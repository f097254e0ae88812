package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChannelEventsTotal counts push events dispatched by event name.
	ChannelEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brilho_channel_events_total",
		Help: "Total push events dispatched by event name",
	}, []string{"event"})

	// ChannelReconnectsTotal counts event-channel reconnect attempts.
	ChannelReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brilho_channel_reconnects_total",
		Help: "Total event-channel reconnect attempts",
	})

	// ChannelDroppedEventsTotal counts undecodable or unroutable messages.
	ChannelDroppedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brilho_channel_dropped_events_total",
		Help: "Total push messages dropped by reason",
	}, []string{"reason"})

	// MutationsTotal counts optimistic mutations by name and outcome.
	// Outcome is one of: confirmed, reverted, conflict_skipped.
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brilho_mutations_total",
		Help: "Total optimistic mutations by name and outcome",
	}, []string{"mutation", "outcome"})

	// FanoutWritesTotal counts fan-out writes by target slot.
	FanoutWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brilho_fanout_writes_total",
		Help: "Total fan-out propagation writes by slot",
	}, []string{"slot"})

	// ActiveSession is 1 while a live session is active, 0 otherwise.
	ActiveSession = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brilho_active_session",
		Help: "Whether a live session is currently active",
	})

	// SessionPeakViewers tracks the peak viewer count of the current session.
	SessionPeakViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brilho_session_peak_viewers",
		Help: "Peak viewer count of the current live session",
	})

	// APIRequestsTotal counts API requests by operation and result.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brilho_api_requests_total",
		Help: "Total API requests by operation and result",
	}, []string{"operation", "result"})

	// RoomConnectionsTotal is the simulator's gauge of connections per room.
	RoomConnectionsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "brilho_sim_room_connections",
		Help: "Simulator websocket connections per room",
	}, []string{"room_id"})
)
