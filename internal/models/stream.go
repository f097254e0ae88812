// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"time"
)

// Streamer is the public descriptor of a live broadcast. It is distinct from
// User because a stream carries room metadata the off-air user record does
// not. HostName and HostAvatarURL are denormalized from the host's User
// record and resynchronized whenever that user changes.
type Streamer struct {
	ID            uint      `json:"id"`
	HostID        uint      `json:"host_id"`
	HostName      string    `json:"host_name"`
	HostAvatarURL string    `json:"host_avatar_url"`
	Title         string    `json:"title"`
	Viewers       int       `json:"viewers"`
	IsPrivate     bool      `json:"is_private"`
	StartedAt     time.Time `json:"started_at"`
}

// StreamHistoryEntry is the persisted record of one finished broadcast.
type StreamHistoryEntry struct {
	ID           uint      `json:"id,omitempty"`
	HostID       uint      `json:"host_id"`
	StartedAt    time.Time `json:"started_at"`
	Duration     int       `json:"duration_seconds"`
	Coins        int       `json:"coins"`
	PeakViewers  int       `json:"peak_viewers"`
	NewFollowers int       `json:"new_followers"`
}

// StreamSummaryData is the end-of-broadcast summary shown to the host.
type StreamSummaryData struct {
	Duration     string `json:"duration"`
	PeakViewers  int    `json:"peak_viewers"`
	Coins        int    `json:"coins"`
	NewFollowers int    `json:"new_followers"`
	NewMembers   int    `json:"new_members"`
	NewFans      int    `json:"new_fans"`
}

// FormatDuration renders an elapsed duration as HH:MM:SS for summaries.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
