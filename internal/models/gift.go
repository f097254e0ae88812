// Package models contains data structures for the application's domain models.
package models

// Gift is one entry of the sendable gift catalog.
type Gift struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
	Price   int    `json:"price"` // coins
}

// ReceivedGift aggregates how many of a given gift a host has received.
type ReceivedGift struct {
	GiftID uint `json:"gift_id"`
	Count  int  `json:"count"`
}
