package live

import (
	"context"

	"brilho/internal/models"
	"brilho/internal/session"
	"brilho/internal/store"
)

// JoinRoom takes the viewer into a stream: idle → joining → active. The
// private-room access check and the precondition fetches run during
// joining; any failure aborts back to idle before speculative state exists.
func (c *Coordinator) JoinRoom(ctx context.Context, streamer models.Streamer) error {
	if err := c.machine.BeginJoin(streamer.ID, streamer.HostID, session.ModeViewer); err != nil {
		return models.NewValidationError("Already inside a live session")
	}

	if streamer.IsPrivate {
		if err := c.api.CheckRoomAccess(ctx, streamer.ID); err != nil {
			c.machine.AbortJoin(streamer.ID)
			c.toastError(err)
			return err
		}
	}

	if err := c.loadGiftData(ctx, streamer.HostID); err != nil {
		c.machine.AbortJoin(streamer.ID)
		c.toastError(err)
		return err
	}

	if err := c.api.JoinStream(ctx, streamer.ID); err != nil {
		c.machine.AbortJoin(streamer.ID)
		c.toastError(err)
		return err
	}

	if err := c.channel.JoinRoom(streamer.ID); err != nil {
		c.machine.AbortJoin(streamer.ID)
		c.toastError(models.NewNetworkError(err))
		return models.NewNetworkError(err)
	}

	// A kick can land between the access check and here; CompleteJoin
	// no-ops if the machine already tore the join down.
	if err := c.machine.CompleteJoin(streamer.ID, streamer.Viewers); err != nil {
		_ = c.channel.LeaveRoom(streamer.ID)
		return err
	}

	host, err := c.api.GetUser(ctx, streamer.HostID)
	if err == nil {
		c.store.SetViewedProfile(&host)
	}
	return nil
}

// LeaveRoom takes the viewer out: active → ending → idle. Server-side
// bookkeeping failures surface as toasts but never block local teardown.
func (c *Coordinator) LeaveRoom(ctx context.Context) error {
	sess, ok := c.machine.Current()
	if !ok {
		return nil
	}
	roomID := sess.RoomID

	if err := c.machine.BeginEnd(roomID); err != nil {
		return err
	}

	if err := c.api.LeaveStream(ctx, roomID); err != nil {
		c.toastError(err)
	}
	if err := c.channel.LeaveRoom(roomID); err != nil {
		c.toastError(models.NewNetworkError(err))
	}

	c.machine.FinishToIdle(roomID)
	c.store.SetViewedProfile(nil)
	c.store.SetPKOpponent(nil)
	return nil
}

// GoLive opens a broadcast room for the authenticated user and enters it
// as broadcaster.
func (c *Coordinator) GoLive(ctx context.Context, title string, isPrivate bool) (models.Streamer, error) {
	me, ok := c.store.Me()
	if !ok {
		return models.Streamer{}, models.NewValidationError("Not signed in")
	}

	streamer, err := c.api.StartStream(ctx, title, isPrivate)
	if err != nil {
		c.toastError(err)
		return models.Streamer{}, err
	}

	// Any abort from here on must also close the stream the server just
	// opened, or it stays live with nobody broadcasting.
	closeStream := func() {
		if err := c.api.EndStream(ctx, streamer.ID); err != nil {
			c.toast(ToastError, "Could not notify the server the stream ended")
		}
	}

	if err := c.machine.BeginJoin(streamer.ID, me.ID, session.ModeBroadcaster); err != nil {
		closeStream()
		return models.Streamer{}, models.NewValidationError("Already inside a live session")
	}

	if err := c.loadGiftData(ctx, me.ID); err != nil {
		c.machine.AbortJoin(streamer.ID)
		closeStream()
		c.toastError(err)
		return models.Streamer{}, err
	}

	if err := c.channel.JoinRoom(streamer.ID); err != nil {
		c.machine.AbortJoin(streamer.ID)
		closeStream()
		c.toastError(models.NewNetworkError(err))
		return models.Streamer{}, models.NewNetworkError(err)
	}

	if err := c.machine.CompleteJoin(streamer.ID, streamer.Viewers); err != nil {
		_ = c.channel.LeaveRoom(streamer.ID)
		closeStream()
		return models.Streamer{}, err
	}

	c.store.ApplyUserPatch(me.ID, models.UserPatch{IsLive: models.Ptr(true)})
	return streamer, nil
}

// RequestEndStream validates that the broadcaster may end the stream. The
// actual teardown waits for ConfirmEndStream, giving the UI its
// confirmation step.
func (c *Coordinator) RequestEndStream() error {
	sess, ok := c.machine.Current()
	if !ok || c.machine.State() != session.StateActive {
		return models.NewValidationError("No active live session")
	}
	if sess.Mode != session.ModeBroadcaster {
		return models.NewValidationError("Only the broadcaster can end the stream")
	}
	return nil
}

// ConfirmEndStream ends the broadcast: active → ending → summarized. The
// history save and the end-session call are reported on failure but never
// block teardown; the machine stays in summarized until the host dismisses
// the summary.
func (c *Coordinator) ConfirmEndStream(ctx context.Context) (models.StreamSummaryData, error) {
	if err := c.RequestEndStream(); err != nil {
		return models.StreamSummaryData{}, err
	}
	sess, _ := c.machine.Current()
	roomID := sess.RoomID

	if err := c.machine.BeginEnd(roomID); err != nil {
		return models.StreamSummaryData{}, err
	}

	summary, history, err := c.machine.Summarize(roomID)
	if err != nil {
		return models.StreamSummaryData{}, err
	}

	if err := c.api.SaveStreamHistory(ctx, history); err != nil {
		c.toast(ToastError, "Could not save the stream history")
	}
	if err := c.api.EndStream(ctx, roomID); err != nil {
		c.toast(ToastError, "Could not notify the server the stream ended")
	}
	if err := c.channel.LeaveRoom(roomID); err != nil {
		c.toastError(models.NewNetworkError(err))
	}

	if me, ok := c.store.Me(); ok {
		c.store.ApplyUserPatch(me.ID, models.UserPatch{IsLive: models.Ptr(false)})
	}
	c.store.SetPKOpponent(nil)
	return summary, nil
}

// AcknowledgeSummary dismisses the end-of-stream summary: summarized → idle.
func (c *Coordinator) AcknowledgeSummary() {
	c.machine.AcknowledgeSummary()
}

// StartPKBattle opens a PK battle against another host from the running
// broadcast. The opponent's user record lands in the PK-opponent slot.
func (c *Coordinator) StartPKBattle(ctx context.Context, opponentID uint) error {
	sess, ok := c.machine.Current()
	if !ok || sess.Mode != session.ModeBroadcaster {
		return models.NewValidationError("PK battles require an active broadcast")
	}

	opponent, err := c.api.StartPKBattle(ctx, sess.RoomID, opponentID)
	if err != nil {
		c.toastError(err)
		return err
	}

	if err := c.machine.StartPKBattle(sess.RoomID, opponentID); err != nil {
		return err
	}
	c.store.SetPKOpponent(&opponent)
	return nil
}

// EndPKBattle closes the running PK battle. The overlay drops locally even
// when the server call fails.
func (c *Coordinator) EndPKBattle(ctx context.Context) error {
	sess, ok := c.machine.Current()
	if !ok || !sess.PKBattleActive {
		return nil
	}

	err := c.api.EndPKBattle(ctx, sess.RoomID)
	if err != nil {
		c.toastError(err)
	}
	c.machine.EndPKBattle(sess.RoomID)
	c.store.SetPKOpponent(nil)
	return err
}

// RefreshLists pull-reconciles every materialized view. Called after
// reconnects, since in-flight push messages during a drop are lost.
func (c *Coordinator) RefreshLists(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for slot, name := range map[store.ListSlot]string{
		store.ListFollowing: "following",
		store.ListFans:      "fans",
		store.ListFriends:   "friends",
		store.ListVisitors:  "visitors",
		store.ListRanking:   "ranking",
	} {
		users, err := c.api.ListUsers(ctx, name)
		keep(err)
		if err == nil {
			c.store.ReplaceList(slot, users)
		}
	}

	convs, err := c.api.ListConversations(ctx)
	keep(err)
	if err == nil {
		c.store.ReplaceConversations(convs)
	}

	streamers, err := c.api.ListStreamers(ctx)
	keep(err)
	if err == nil {
		c.store.ReplaceStreamers(streamers)
	}

	records, err := c.api.PurchaseHistory(ctx)
	keep(err)
	if err == nil {
		c.store.ReplacePurchases(records)
	}

	return firstErr
}

func (c *Coordinator) loadGiftData(ctx context.Context, hostID uint) error {
	gifts, err := c.api.GiftCatalog(ctx)
	if err != nil {
		return err
	}
	received, err := c.api.ReceivedGifts(ctx, hostID)
	if err != nil {
		return err
	}
	c.giftMu.Lock()
	c.gifts = gifts
	c.received = received
	c.giftMu.Unlock()
	return nil
}
