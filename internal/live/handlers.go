package live

import (
	"encoding/json"

	"brilho/internal/events"
	"brilho/internal/models"
	"brilho/internal/observability"
	"brilho/internal/session"
)

// registerHandlers subscribes every push event to its handler. Handlers run
// on the channel's dispatch goroutine and terminate in fan-out propagation
// or the session machine; both paths are synchronous, so no interleaving is
// observable mid-update.
func (c *Coordinator) registerHandlers() {
	c.unsubs = append(c.unsubs,
		c.channel.On(events.EventFollowUpdate, c.onFollowUpdate),
		c.channel.On(events.EventNewFollower, c.onNewFollower),
		c.channel.On(events.EventMicStateUpdate, c.onMicStateUpdate),
		c.channel.On(events.EventSoundStateUpdate, c.onSoundStateUpdate),
		c.channel.On(events.EventUserUpdate, c.onUserUpdate),
		c.channel.On(events.EventTransactionUpdate, c.onTransactionUpdate),
		c.channel.On(events.EventStreamerLive, c.onStreamerLive),
		c.channel.On(events.EventGiftSent, c.onGiftSent),
		c.channel.On(events.EventViewerCount, c.onViewerCount),
		c.channel.On(events.EventKicked, c.onKicked),
		c.channel.On(events.EventJoinDenied, c.onJoinDenied),
	)
}

func (c *Coordinator) onFollowUpdate(raw json.RawMessage) {
	p, err := events.DecodePayload[events.FollowUpdate](raw)
	if err != nil {
		c.dropEvent(events.EventFollowUpdate, err)
		return
	}
	c.store.ApplyUserPatch(p.UserID, models.UserPatch{
		IsFollowed: models.Ptr(p.IsFollowed),
		Fans:       models.Ptr(p.Fans),
		Following:  models.Ptr(p.Following),
	})
}

func (c *Coordinator) onNewFollower(raw json.RawMessage) {
	p, err := events.DecodePayload[events.NewFollower](raw)
	if err != nil {
		c.dropEvent(events.EventNewFollower, err)
		return
	}
	c.machine.AddFollower(p.RoomID)
	c.store.ReplaceUser(p.User)
	sess, active := c.machine.Current()
	if me, ok := c.store.Me(); ok && active && sess.RoomID == p.RoomID && sess.Mode == session.ModeBroadcaster {
		c.store.ApplyUserPatch(me.ID, models.UserPatch{Fans: models.Ptr(me.Fans + 1)})
	}
}

func (c *Coordinator) onMicStateUpdate(raw json.RawMessage) {
	p, err := events.DecodePayload[events.MicStateUpdate](raw)
	if err != nil {
		c.dropEvent(events.EventMicStateUpdate, err)
		return
	}
	c.machine.SetMicMuted(p.RoomID, p.Muted)
}

func (c *Coordinator) onSoundStateUpdate(raw json.RawMessage) {
	p, err := events.DecodePayload[events.SoundStateUpdate](raw)
	if err != nil {
		c.dropEvent(events.EventSoundStateUpdate, err)
		return
	}
	c.machine.SetSoundMuted(p.RoomID, p.Muted)
}

func (c *Coordinator) onUserUpdate(raw json.RawMessage) {
	p, err := events.DecodePayload[events.UserUpdate](raw)
	if err != nil {
		c.dropEvent(events.EventUserUpdate, err)
		return
	}
	// Replace-by-id keeps this commutative with followUpdate: whichever
	// order the two names arrive in, both converge on the final record.
	c.store.ReplaceUser(p.User)
}

func (c *Coordinator) onTransactionUpdate(raw json.RawMessage) {
	p, err := events.DecodePayload[events.TransactionUpdate](raw)
	if err != nil {
		c.dropEvent(events.EventTransactionUpdate, err)
		return
	}
	c.store.UpsertPurchase(p.Record)
}

func (c *Coordinator) onStreamerLive(raw json.RawMessage) {
	p, err := events.DecodePayload[events.StreamerLive](raw)
	if err != nil {
		c.dropEvent(events.EventStreamerLive, err)
		return
	}
	if p.IsLive {
		c.store.UpsertStreamer(p.Streamer)
	} else {
		c.store.RemoveStreamer(p.Streamer.ID)
	}
	c.store.ApplyUserPatch(p.Streamer.HostID, models.UserPatch{IsLive: models.Ptr(p.IsLive)})
}

func (c *Coordinator) onGiftSent(raw json.RawMessage) {
	p, err := events.DecodePayload[events.GiftSent](raw)
	if err != nil {
		c.dropEvent(events.EventGiftSent, err)
		return
	}
	c.machine.AddCoins(p.RoomID, p.Coins)
}

func (c *Coordinator) onViewerCount(raw json.RawMessage) {
	p, err := events.DecodePayload[events.ViewerCount](raw)
	if err != nil {
		c.dropEvent(events.EventViewerCount, err)
		return
	}
	c.machine.RecordViewers(p.RoomID, p.Viewers)
	c.store.SetStreamerViewers(p.RoomID, p.Viewers)
}

// onKicked handles forced termination: it wins over any in-progress local
// transition, tears the session down and surfaces the reason.
func (c *Coordinator) onKicked(raw json.RawMessage) {
	p, err := events.DecodePayload[events.Kicked](raw)
	if err != nil {
		c.dropEvent(events.EventKicked, err)
		return
	}
	if !c.machine.ForceTeardown(p.RoomID) {
		return
	}
	_ = c.channel.LeaveRoom(p.RoomID)
	c.store.SetViewedProfile(nil)
	c.store.SetPKOpponent(nil)
	c.toastError(models.NewKickedError(p.Reason))
}

// onJoinDenied refuses an entry whose kick landed before the join
// completed.
func (c *Coordinator) onJoinDenied(raw json.RawMessage) {
	p, err := events.DecodePayload[events.JoinDenied](raw)
	if err != nil {
		c.dropEvent(events.EventJoinDenied, err)
		return
	}
	c.machine.AbortJoin(p.RoomID)
	_ = c.channel.LeaveRoom(p.RoomID)
	c.toastError(models.NewAccessDeniedError(p.Reason))
}

func (c *Coordinator) dropEvent(name string, err error) {
	observability.ChannelDroppedEventsTotal.WithLabelValues("payload_decode").Inc()
	observability.GlobalLogger.Error("undecodable event payload", "event", name, "error", err.Error())
}
