// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a platform account as the client sees it: identity,
// social-graph counters, wallet balances and live-status flags. The same
// struct is used for the authenticated user and for every denormalized copy
// held in derived lists.
type User struct {
	ID            uint         `json:"id"`
	Username      string       `json:"username"`
	DisplayName   string       `json:"display_name"`
	AvatarURL     string       `json:"avatar_url"`
	Bio           string       `json:"bio"`
	Country       string       `json:"country"`
	Fans          int          `json:"fans"`
	Following     int          `json:"following"`
	Diamonds      int          `json:"diamonds"`
	Earnings      int          `json:"earnings"`
	IsLive        bool         `json:"is_live"`
	IsOnline      bool         `json:"is_online"`
	IsFollowed    bool         `json:"is_followed"`
	ActiveFrameID uint         `json:"active_frame_id,omitempty"`
	Frames        []OwnedFrame `json:"frames,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// OwnedFrame is one decorative avatar frame owned by a user, with its
// expiration. An expired frame stays in the list until the server prunes it.
type OwnedFrame struct {
	FrameID   uint      `json:"frame_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserPatch is a partial update to a User. Nil fields are left untouched.
// Patches are how both push events and mutation confirmations write through
// to every denormalized copy of a user.
type UserPatch struct {
	DisplayName   *string `json:"display_name,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	Bio           *string `json:"bio,omitempty"`
	Fans          *int    `json:"fans,omitempty"`
	Following     *int    `json:"following,omitempty"`
	Diamonds      *int    `json:"diamonds,omitempty"`
	Earnings      *int    `json:"earnings,omitempty"`
	IsLive        *bool   `json:"is_live,omitempty"`
	IsOnline      *bool   `json:"is_online,omitempty"`
	IsFollowed    *bool   `json:"is_followed,omitempty"`
	ActiveFrameID *uint   `json:"active_frame_id,omitempty"`
}

// Apply returns a copy of u with every non-nil patch field applied.
func (p UserPatch) Apply(u User) User {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Fans != nil {
		u.Fans = *p.Fans
	}
	if p.Following != nil {
		u.Following = *p.Following
	}
	if p.Diamonds != nil {
		u.Diamonds = *p.Diamonds
	}
	if p.Earnings != nil {
		u.Earnings = *p.Earnings
	}
	if p.IsLive != nil {
		u.IsLive = *p.IsLive
	}
	if p.IsOnline != nil {
		u.IsOnline = *p.IsOnline
	}
	if p.IsFollowed != nil {
		u.IsFollowed = *p.IsFollowed
	}
	if p.ActiveFrameID != nil {
		u.ActiveFrameID = *p.ActiveFrameID
	}
	return u
}

// Ptr is a small helper for building patches from literals.
func Ptr[T any](v T) *T { return &v }
