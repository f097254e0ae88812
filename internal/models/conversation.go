// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Conversation is one entry of the direct-message inbox. Friend is a
// denormalized copy of the other participant and is rewritten whenever that
// user changes.
type Conversation struct {
	ID            uint      `json:"id"`
	Friend        User      `json:"friend"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	Unread        int       `json:"unread"`
}
