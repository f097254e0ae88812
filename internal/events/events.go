// Package events implements the client side of the server-push event
// channel: a closed set of named events, delivered over a websocket in
// arrival order, with automatic reconnection and per-room subscriptions.
package events

import (
	"encoding/json"
	"fmt"

	"brilho/internal/models"
)

// Event name constants prevent typos in event names.
const (
	EventFollowUpdate      = "followUpdate"
	EventNewFollower       = "newFollower"
	EventMicStateUpdate    = "micStateUpdate"
	EventSoundStateUpdate  = "soundStateUpdate"
	EventUserUpdate        = "userUpdate"
	EventTransactionUpdate = "transactionUpdate"
	EventStreamerLive      = "streamerLive"
	EventGiftSent          = "giftSent"
	EventViewerCount       = "viewerCount"
	EventKicked            = "kicked"
	EventJoinDenied        = "joinDenied"
)

// Envelope is the wire format of every push message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FollowUpdate reports a change in the viewer's relationship to a user.
type FollowUpdate struct {
	UserID     uint `json:"user_id"`
	IsFollowed bool `json:"is_followed"`
	Fans       int  `json:"fans"`
	Following  int  `json:"following"`
}

// NewFollower reports a follower gained by the broadcasting host.
type NewFollower struct {
	RoomID uint        `json:"room_id"`
	User   models.User `json:"user"`
}

// MicStateUpdate reports the host's mic mute state in a room.
type MicStateUpdate struct {
	RoomID uint `json:"room_id"`
	Muted  bool `json:"muted"`
}

// SoundStateUpdate reports the host's sound mute state in a room.
type SoundStateUpdate struct {
	RoomID uint `json:"room_id"`
	Muted  bool `json:"muted"`
}

// UserUpdate replaces the full record of one user.
type UserUpdate struct {
	User models.User `json:"user"`
}

// TransactionUpdate patches or prepends one wallet ledger entry.
type TransactionUpdate struct {
	Record models.PurchaseRecord `json:"record"`
}

// StreamerLive announces a stream going live or off air.
type StreamerLive struct {
	Streamer models.Streamer `json:"streamer"`
	IsLive   bool            `json:"is_live"`
}

// GiftSent announces a gift delivered inside a room.
type GiftSent struct {
	RoomID     uint   `json:"room_id"`
	SenderID   uint   `json:"sender_id"`
	SenderName string `json:"sender_name"`
	GiftID     uint   `json:"gift_id"`
	Count      int    `json:"count"`
	Coins      int    `json:"coins"`
}

// ViewerCount reports the current audience size of a room.
type ViewerCount struct {
	RoomID  uint `json:"room_id"`
	Viewers int  `json:"viewers"`
}

// Kicked forces the viewer out of the named room.
type Kicked struct {
	RoomID uint   `json:"room_id"`
	Reason string `json:"reason"`
}

// JoinDenied refuses a room entry that had not completed yet.
type JoinDenied struct {
	RoomID uint   `json:"room_id"`
	Reason string `json:"reason"`
}

// DecodePayload decodes a payload into its typed variant.
func DecodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decoding event payload: %w", err)
	}
	return v, nil
}
