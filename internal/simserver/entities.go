// Package simserver implements a small platform simulator: the REST API and
// the push channel the client core talks to, enough to develop and test
// against without the real backend.
package simserver

import (
	"time"

	"brilho/internal/models"
)

// Account is the simulator's persisted user row.
type Account struct {
	ID          uint   `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex;not null"`
	DisplayName string
	Password    string `gorm:"not null"` // bcrypt hash
	AvatarURL   string
	Bio         string
	Country     string
	Fans        int
	Following   int
	Diamonds    int
	Earnings    int
	IsLive      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FollowRow records that Viewer follows Target.
type FollowRow struct {
	ID       uint `gorm:"primaryKey"`
	ViewerID uint `gorm:"index;uniqueIndex:idx_follow_pair"`
	TargetID uint `gorm:"index;uniqueIndex:idx_follow_pair"`
}

// LikeRow records that User likes Photo.
type LikeRow struct {
	ID      uint `gorm:"primaryKey"`
	PhotoID uint `gorm:"index;uniqueIndex:idx_like_pair"`
	UserID  uint `gorm:"index;uniqueIndex:idx_like_pair"`
}

// StreamRow is one open or finished broadcast room.
type StreamRow struct {
	ID        uint `gorm:"primaryKey"`
	HostID    uint `gorm:"index"`
	Title     string
	IsPrivate bool
	IsLive    bool `gorm:"index"`
	Viewers   int
	StartedAt time.Time
	EndedAt   *time.Time
}

// GiftRow is one catalog gift.
type GiftRow struct {
	ID      uint `gorm:"primaryKey"`
	Name    string
	IconURL string
	Price   int
}

// ReceivedGiftRow aggregates gifts received by a host.
type ReceivedGiftRow struct {
	ID     uint `gorm:"primaryKey"`
	HostID uint `gorm:"index;uniqueIndex:idx_received_pair"`
	GiftID uint `gorm:"uniqueIndex:idx_received_pair"`
	Count  int
}

// PurchaseRow is one wallet ledger entry.
type PurchaseRow struct {
	ID        string `gorm:"primaryKey"`
	UserID    uint   `gorm:"index"`
	Kind      string
	Amount    int
	Status    string
	CreatedAt time.Time
}

// ConversationRow is one direct-message inbox entry.
type ConversationRow struct {
	ID            uint `gorm:"primaryKey"`
	UserID        uint `gorm:"index;uniqueIndex:idx_conversation_pair"`
	FriendID      uint `gorm:"uniqueIndex:idx_conversation_pair"`
	LastMessage   string
	LastMessageAt time.Time
	Unread        int
}

// FrameRow is one purchasable avatar frame.
type FrameRow struct {
	ID    uint `gorm:"primaryKey"`
	Name  string
	Price int // diamonds
	Days  int
}

// OwnedFrameRow records a frame owned by a user.
type OwnedFrameRow struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index;uniqueIndex:idx_owned_frame_pair"`
	FrameID   uint `gorm:"uniqueIndex:idx_owned_frame_pair"`
	ExpiresAt time.Time
}

// HistoryRow is one persisted stream history entry.
type HistoryRow struct {
	ID           uint `gorm:"primaryKey"`
	HostID       uint `gorm:"index"`
	StartedAt    time.Time
	Duration     int
	Coins        int
	PeakViewers  int
	NewFollowers int
}

func (a Account) toUser(viewerFollows bool) models.User {
	return models.User{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		Bio:         a.Bio,
		Country:     a.Country,
		Fans:        a.Fans,
		Following:   a.Following,
		Diamonds:    a.Diamonds,
		Earnings:    a.Earnings,
		IsLive:      a.IsLive,
		IsOnline:    true,
		IsFollowed:  viewerFollows,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (s StreamRow) toStreamer(host Account) models.Streamer {
	return models.Streamer{
		ID:            s.ID,
		HostID:        s.HostID,
		HostName:      host.DisplayName,
		HostAvatarURL: host.AvatarURL,
		Title:         s.Title,
		Viewers:       s.Viewers,
		IsPrivate:     s.IsPrivate,
		StartedAt:     s.StartedAt,
	}
}

func (p PurchaseRow) toRecord() models.PurchaseRecord {
	return models.PurchaseRecord{
		ID:        p.ID,
		Kind:      models.PurchaseKind(p.Kind),
		Amount:    p.Amount,
		Status:    models.PurchaseStatus(p.Status),
		CreatedAt: p.CreatedAt,
	}
}
