// Package live exposes the imperative command surface the presentation
// layer drives: join/leave rooms, follow, like, send gifts, go live and end
// streams. It owns the wiring between the event channel, the entity store,
// the optimistic mutation runner and the session state machine.
package live

import (
	"context"
	"errors"
	"sync"

	"brilho/internal/api"
	"brilho/internal/events"
	"brilho/internal/models"
	"brilho/internal/optimistic"
	"brilho/internal/session"
	"brilho/internal/store"
)

// APIClient is the slice of the platform API the coordinator uses.
// *api.Client satisfies it; tests substitute stubs.
type APIClient interface {
	GetUser(ctx context.Context, id uint) (models.User, error)
	Follow(ctx context.Context, targetID uint) (api.FollowResponse, error)
	Unfollow(ctx context.Context, targetID uint) (api.FollowResponse, error)
	SetPhotoLiked(ctx context.Context, photoID uint, liked bool) (api.LikeResponse, error)
	GiftCatalog(ctx context.Context) ([]models.Gift, error)
	ReceivedGifts(ctx context.Context, hostID uint) ([]models.ReceivedGift, error)
	SendGift(ctx context.Context, roomID, giftID uint, count int) (api.SendGiftResponse, error)
	CheckRoomAccess(ctx context.Context, roomID uint) error
	JoinStream(ctx context.Context, roomID uint) error
	LeaveStream(ctx context.Context, roomID uint) error
	StartStream(ctx context.Context, title string, isPrivate bool) (models.Streamer, error)
	EndStream(ctx context.Context, roomID uint) error
	SaveStreamHistory(ctx context.Context, entry models.StreamHistoryEntry) error
	ListStreamers(ctx context.Context) ([]models.Streamer, error)
	ListUsers(ctx context.Context, list string) ([]models.User, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	PurchaseHistory(ctx context.Context) ([]models.PurchaseRecord, error)
	StartPKBattle(ctx context.Context, roomID, opponentID uint) (models.User, error)
	EndPKBattle(ctx context.Context, roomID uint) error
	SetMicState(ctx context.Context, roomID uint, muted bool) error
	SetSoundState(ctx context.Context, roomID uint, muted bool) error
}

// EventChannel is the slice of the event-bus client the coordinator uses.
type EventChannel interface {
	Connect(ctx context.Context, identity uint) error
	Disconnect()
	On(name string, fn events.Handler) func()
	OnReconnect(fn func())
	JoinRoom(roomID uint) error
	LeaveRoom(roomID uint) error
}

// ToastLevel classifies a user-facing notification.
type ToastLevel string

// Toast levels.
const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Toaster surfaces user-visible notifications. The presentation layer
// provides the implementation.
type Toaster interface {
	Toast(level ToastLevel, message string)
}

// likeState is the client-side state of one photo's like toggle.
type likeState struct {
	Liked bool
	Count int
}

// Coordinator wires the live subsystem together. All of its command
// methods are safe for concurrent use.
type Coordinator struct {
	store   *store.Store
	api     APIClient
	channel EventChannel
	runner  *optimistic.Runner
	machine *session.Machine
	toaster Toaster

	giftMu   sync.Mutex
	gifts    []models.Gift
	received []models.ReceivedGift

	likeMu sync.Mutex
	likes  map[uint]likeState

	unsubs []func()
}

// New returns a Coordinator over the given collaborators.
func New(st *store.Store, apiClient APIClient, channel EventChannel, toaster Toaster) *Coordinator {
	return &Coordinator{
		store:   st,
		api:     apiClient,
		channel: channel,
		runner:  optimistic.NewRunner(),
		machine: session.NewMachine(),
		toaster: toaster,
		likes:   make(map[uint]likeState),
	}
}

// Start connects the event channel for the authenticated user and registers
// all push-event handlers.
func (c *Coordinator) Start(ctx context.Context) error {
	me, ok := c.store.Me()
	if !ok {
		return errors.New("live: authenticated user not set")
	}
	if err := c.channel.Connect(ctx, me.ID); err != nil {
		return models.NewNetworkError(err)
	}
	c.registerHandlers()
	// Push messages in flight during a drop are lost for good, so every
	// materialized list is pull-reconciled once the channel is back.
	c.channel.OnReconnect(func() {
		go func() {
			if err := c.RefreshLists(context.Background()); err != nil {
				c.toastError(err)
			}
		}()
	})
	return nil
}

// Stop unregisters handlers and closes the event channel.
func (c *Coordinator) Stop() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.channel.Disconnect()
}

// Store exposes read-only snapshots to the presentation layer.
func (c *Coordinator) Store() *store.Store { return c.store }

// SessionState reports the machine's lifecycle state.
func (c *Coordinator) SessionState() session.State { return c.machine.State() }

// Session returns a copy of the current session, if any.
func (c *Coordinator) Session() (session.Session, bool) { return c.machine.Current() }

// GiftCatalog returns the catalog cached during the last room join.
func (c *Coordinator) GiftCatalog() []models.Gift {
	c.giftMu.Lock()
	defer c.giftMu.Unlock()
	return append([]models.Gift(nil), c.gifts...)
}

// ReceivedGifts returns the host's received gifts cached during join.
func (c *Coordinator) ReceivedGifts() []models.ReceivedGift {
	c.giftMu.Lock()
	defer c.giftMu.Unlock()
	return append([]models.ReceivedGift(nil), c.received...)
}

// LikeState reports the local like state of one photo.
func (c *Coordinator) LikeState(photoID uint) (bool, int) {
	c.likeMu.Lock()
	defer c.likeMu.Unlock()
	s := c.likes[photoID]
	return s.Liked, s.Count
}

// SeedLikeState installs the fetched like state of a photo, e.g. when a
// profile screen loads.
func (c *Coordinator) SeedLikeState(photoID uint, liked bool, count int) {
	c.likeMu.Lock()
	defer c.likeMu.Unlock()
	c.likes[photoID] = likeState{Liked: liked, Count: count}
}

func (c *Coordinator) toast(level ToastLevel, message string) {
	if c.toaster != nil {
		c.toaster.Toast(level, message)
	}
}

// toastError surfaces an error with its AppError message when present.
func (c *Coordinator) toastError(err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		c.toast(ToastError, appErr.Message)
		return
	}
	c.toast(ToastError, "Something went wrong")
}
