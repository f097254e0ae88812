package api

import (
	"context"
	"fmt"
	"net/http"

	"brilho/internal/models"
)

// UserResponse wraps a single user payload.
type UserResponse struct {
	Envelope
	User models.User `json:"user"`
}

// UsersResponse wraps a user list payload.
type UsersResponse struct {
	Envelope
	Users []models.User `json:"users"`
}

// FollowResponse carries the authoritative relationship state after a
// follow or unfollow.
type FollowResponse struct {
	Envelope
	IsFollowed bool `json:"is_followed"`
	Fans       int  `json:"fans"`
	Following  int  `json:"following"`
}

// LikeResponse carries the authoritative like state; the count may differ
// from the speculative one when other clients liked concurrently.
type LikeResponse struct {
	Envelope
	Likes   int  `json:"likes"`
	IsLiked bool `json:"is_liked"`
}

// GiftCatalogResponse wraps the sendable gift catalog.
type GiftCatalogResponse struct {
	Envelope
	Gifts []models.Gift `json:"gifts"`
}

// ReceivedGiftsResponse wraps a host's received-gift aggregates.
type ReceivedGiftsResponse struct {
	Envelope
	Gifts []models.ReceivedGift `json:"gifts"`
}

// SendGiftResponse carries the authoritative wallet balances after a gift.
type SendGiftResponse struct {
	Envelope
	Diamonds int `json:"diamonds"`
	Coins    int `json:"coins"`
}

// RoomAccessResponse answers a private-room permission check.
type RoomAccessResponse struct {
	Envelope
	Allowed bool `json:"allowed"`
}

// StreamerResponse wraps a single stream descriptor.
type StreamerResponse struct {
	Envelope
	Streamer models.Streamer `json:"streamer"`
}

// StreamersResponse wraps the visible streamer list.
type StreamersResponse struct {
	Envelope
	Streamers []models.Streamer `json:"streamers"`
}

// ConversationsResponse wraps the direct-message inbox.
type ConversationsResponse struct {
	Envelope
	Conversations []models.Conversation `json:"conversations"`
}

// PurchasesResponse wraps the wallet ledger.
type PurchasesResponse struct {
	Envelope
	Records []models.PurchaseRecord `json:"records"`
}

// TicketResponse carries a short-lived event-channel ticket.
type TicketResponse struct {
	Envelope
	Ticket string `json:"ticket"`
}

// LoginResponse carries a bearer token and the authenticated user.
type LoginResponse struct {
	Envelope
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates and returns a bearer token. The caller decides when
// to adopt it via SetToken.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, &resp)
	return resp, err
}

// GetUser fetches one user as seen by the authenticated viewer.
func (c *Client) GetUser(ctx context.Context, id uint) (models.User, error) {
	var resp UserResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &resp)
	return resp.User, err
}

// UpdateUser saves profile edits and returns the authoritative record.
func (c *Client) UpdateUser(ctx context.Context, id uint, patch models.UserPatch) (models.User, error) {
	var resp UserResponse
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/users/%d", id), patch, &resp)
	return resp.User, err
}

// Follow follows the target user.
func (c *Client) Follow(ctx context.Context, targetID uint) (FollowResponse, error) {
	var resp FollowResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/follow", targetID), nil, &resp)
	return resp, err
}

// Unfollow unfollows the target user.
func (c *Client) Unfollow(ctx context.Context, targetID uint) (FollowResponse, error) {
	var resp FollowResponse
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d/follow", targetID), nil, &resp)
	return resp, err
}

// SetPhotoLiked toggles a like on a photo.
func (c *Client) SetPhotoLiked(ctx context.Context, photoID uint, liked bool) (LikeResponse, error) {
	var resp LikeResponse
	method := http.MethodPost
	if !liked {
		method = http.MethodDelete
	}
	err := c.do(ctx, method, fmt.Sprintf("/photos/%d/like", photoID), nil, &resp)
	return resp, err
}

// GiftCatalog fetches the sendable gift catalog.
func (c *Client) GiftCatalog(ctx context.Context) ([]models.Gift, error) {
	var resp GiftCatalogResponse
	err := c.do(ctx, http.MethodGet, "/gifts", nil, &resp)
	return resp.Gifts, err
}

// ReceivedGifts fetches a host's received-gift aggregates.
func (c *Client) ReceivedGifts(ctx context.Context, hostID uint) ([]models.ReceivedGift, error) {
	var resp ReceivedGiftsResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/gifts", hostID), nil, &resp)
	return resp.Gifts, err
}

type sendGiftRequest struct {
	GiftID uint `json:"gift_id"`
	Count  int  `json:"count"`
}

// SendGift sends a gift in the given room and returns authoritative balances.
func (c *Client) SendGift(ctx context.Context, roomID, giftID uint, count int) (SendGiftResponse, error) {
	var resp SendGiftResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/gifts", roomID), sendGiftRequest{GiftID: giftID, Count: count}, &resp)
	return resp, err
}

// CheckRoomAccess asks whether the viewer may enter a (possibly private) room.
func (c *Client) CheckRoomAccess(ctx context.Context, roomID uint) error {
	var resp RoomAccessResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%d/access", roomID), nil, &resp); err != nil {
		return err
	}
	if !resp.Allowed {
		return models.NewAccessDeniedError(resp.Message)
	}
	return nil
}

// JoinStream registers the viewer in a room's audience.
func (c *Client) JoinStream(ctx context.Context, roomID uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/join", roomID), nil, nil)
}

// LeaveStream removes the viewer from a room's audience.
func (c *Client) LeaveStream(ctx context.Context, roomID uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/leave", roomID), nil, nil)
}

type startStreamRequest struct {
	Title     string `json:"title"`
	IsPrivate bool   `json:"is_private"`
}

// StartStream opens a broadcast room for the authenticated user.
func (c *Client) StartStream(ctx context.Context, title string, isPrivate bool) (models.Streamer, error) {
	var resp StreamerResponse
	err := c.do(ctx, http.MethodPost, "/streams", startStreamRequest{Title: title, IsPrivate: isPrivate}, &resp)
	return resp.Streamer, err
}

// EndStream closes the broadcast room.
func (c *Client) EndStream(ctx context.Context, roomID uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/streams/%d/end", roomID), nil, nil)
}

// SaveStreamHistory persists the finished broadcast's history entry.
func (c *Client) SaveStreamHistory(ctx context.Context, entry models.StreamHistoryEntry) error {
	return c.do(ctx, http.MethodPost, "/streams/history", entry, nil)
}

// ListStreamers fetches the visible live streams.
func (c *Client) ListStreamers(ctx context.Context) ([]models.Streamer, error) {
	var resp StreamersResponse
	err := c.do(ctx, http.MethodGet, "/streams", nil, &resp)
	return resp.Streamers, err
}

// ListUsers fetches one of the materialized user lists by its API name
// (following, fans, friends, visitors, ranking).
func (c *Client) ListUsers(ctx context.Context, list string) ([]models.User, error) {
	var resp UsersResponse
	err := c.do(ctx, http.MethodGet, "/users/lists/"+list, nil, &resp)
	return resp.Users, err
}

// ListConversations fetches the direct-message inbox.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var resp ConversationsResponse
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &resp)
	return resp.Conversations, err
}

// PurchaseHistory fetches the wallet ledger.
func (c *Client) PurchaseHistory(ctx context.Context) ([]models.PurchaseRecord, error) {
	var resp PurchasesResponse
	err := c.do(ctx, http.MethodGet, "/wallet/purchases", nil, &resp)
	return resp.Records, err
}

type withdrawalRequest struct {
	Amount int `json:"amount"`
}

// RequestWithdrawal files an earnings withdrawal; settlement is pushed later
// as a transactionUpdate.
func (c *Client) RequestWithdrawal(ctx context.Context, amount int) (models.PurchaseRecord, error) {
	var resp struct {
		Envelope
		Record models.PurchaseRecord `json:"record"`
	}
	err := c.do(ctx, http.MethodPost, "/wallet/withdrawals", withdrawalRequest{Amount: amount}, &resp)
	return resp.Record, err
}

// PurchaseFrame buys a decorative avatar frame.
func (c *Client) PurchaseFrame(ctx context.Context, frameID uint) (models.User, error) {
	var resp UserResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/frames/%d/purchase", frameID), nil, &resp)
	return resp.User, err
}

// StartPKBattle opens a PK battle against the given host and returns the
// opponent's user record.
func (c *Client) StartPKBattle(ctx context.Context, roomID, opponentID uint) (models.User, error) {
	var resp UserResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/pk/%d", roomID, opponentID), nil, &resp)
	return resp.User, err
}

// EndPKBattle closes the running PK battle.
func (c *Client) EndPKBattle(ctx context.Context, roomID uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/pk/end", roomID), nil, nil)
}

type micStateRequest struct {
	Muted bool `json:"muted"`
}

// SetMicState reports the broadcaster's mic mute state to the room.
func (c *Client) SetMicState(ctx context.Context, roomID uint, muted bool) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/mic", roomID), micStateRequest{Muted: muted}, nil)
}

// SetSoundState reports the broadcaster's sound mute state to the room.
func (c *Client) SetSoundState(ctx context.Context, roomID uint, muted bool) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/sound", roomID), micStateRequest{Muted: muted}, nil)
}

// IssueChannelTicket obtains a short-lived ticket for the event channel.
func (c *Client) IssueChannelTicket(ctx context.Context) (string, error) {
	var resp TicketResponse
	err := c.do(ctx, http.MethodPost, "/channel/ticket", nil, &resp)
	return resp.Ticket, err
}
