package simserver

import (
	"time"

	"brilho/internal/events"
	"brilho/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GiftCatalog returns the sendable gift catalog.
func (s *Server) GiftCatalog(c *fiber.Ctx) error {
	var rows []GiftRow
	if err := s.db.Order("price").Find(&rows).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load gifts")
	}
	gifts := make([]models.Gift, 0, len(rows))
	for _, row := range rows {
		gifts = append(gifts, models.Gift{ID: row.ID, Name: row.Name, IconURL: row.IconURL, Price: row.Price})
	}
	return ok(c, fiber.Map{"gifts": gifts})
}

// ReceivedGifts returns a host's received-gift aggregates.
func (s *Server) ReceivedGifts(c *fiber.Ctx) error {
	hostID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user id")
	}
	var rows []ReceivedGiftRow
	if err := s.db.Where("host_id = ?", hostID).Order("gift_id").Find(&rows).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load received gifts")
	}
	gifts := make([]models.ReceivedGift, 0, len(rows))
	for _, row := range rows {
		gifts = append(gifts, models.ReceivedGift{GiftID: row.GiftID, Count: row.Count})
	}
	return ok(c, fiber.Map{"gifts": gifts})
}

type sendGiftRequest struct {
	GiftID uint `json:"gift_id"`
	Count  int  `json:"count"`
}

// SendGift charges the viewer's diamonds, credits the host and announces
// the gift to the room.
func (s *Server) SendGift(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	var req sendGiftRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	stream, err := s.liveStream(roomID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	var gift GiftRow
	if err := s.db.First(&gift, req.GiftID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Gift not found")
	}

	var sender, host Account
	if err := s.db.First(&sender, viewerID(c)).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unknown viewer")
	}
	if err := s.db.First(&host, stream.HostID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Host not found")
	}

	cost := gift.Price * req.Count
	if sender.Diamonds < cost {
		return fail(c, fiber.StatusBadRequest, "Insufficient diamond balance")
	}
	sender.Diamonds -= cost
	host.Earnings += cost
	s.db.Save(&sender)
	s.db.Save(&host)

	received := ReceivedGiftRow{HostID: host.ID, GiftID: gift.ID}
	s.db.Where(&received).FirstOrCreate(&received)
	s.db.Model(&received).Update("count", received.Count+req.Count)

	s.hub.SendRoom(roomID, events.EventGiftSent, events.GiftSent{
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		GiftID:     gift.ID,
		Count:      req.Count,
		Coins:      cost,
	})
	s.hub.SendUser(host.ID, events.EventUserUpdate, events.UserUpdate{User: host.toUser(false)})

	return ok(c, fiber.Map{"diamonds": sender.Diamonds, "coins": cost})
}

// CheckRoomAccess answers whether the viewer may enter the room. Private
// rooms admit only viewers the host follows back.
func (s *Server) CheckRoomAccess(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	stream, err := s.liveStream(roomID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	allowed := !stream.IsPrivate || s.follows(stream.HostID, viewerID(c))
	if !allowed {
		return ok(c, fiber.Map{"allowed": false, "message": "This room is private"})
	}
	return ok(c, fiber.Map{"allowed": true})
}

// JoinRoom registers the viewer in a room's audience.
func (s *Server) JoinRoom(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	stream, err := s.liveStream(roomID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	if stream.IsPrivate && stream.HostID != viewerID(c) && !s.follows(stream.HostID, viewerID(c)) {
		return fail(c, fiber.StatusForbidden, "This room is private")
	}
	return ok(c, nil)
}

// LeaveRoom removes the viewer from a room's audience. Leaving a room the
// viewer is not in succeeds; teardown must never be blocked.
func (s *Server) LeaveRoom(c *fiber.Ctx) error {
	if _, err := paramUint(c, "id"); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	return ok(c, nil)
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

// SetMicState records and broadcasts the host's mic mute state.
func (s *Server) SetMicState(c *fiber.Ctx) error {
	return s.setMuteState(c, events.EventMicStateUpdate)
}

// SetSoundState records and broadcasts the host's sound mute state.
func (s *Server) SetSoundState(c *fiber.Ctx) error {
	return s.setMuteState(c, events.EventSoundStateUpdate)
}

func (s *Server) setMuteState(c *fiber.Ctx, eventType string) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	var req muteRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	stream, err := s.liveStream(roomID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	if stream.HostID != viewerID(c) {
		return fail(c, fiber.StatusForbidden, "Only the host can change room state")
	}

	if eventType == events.EventMicStateUpdate {
		s.hub.SendRoom(roomID, eventType, events.MicStateUpdate{RoomID: roomID, Muted: req.Muted})
	} else {
		s.hub.SendRoom(roomID, eventType, events.SoundStateUpdate{RoomID: roomID, Muted: req.Muted})
	}
	return ok(c, nil)
}

// StartPKBattle opens a battle between the room's host and an opponent.
func (s *Server) StartPKBattle(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	opponentID, err := paramUint(c, "opponentID")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid opponent id")
	}
	stream, err := s.liveStream(roomID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	if stream.HostID != viewerID(c) {
		return fail(c, fiber.StatusForbidden, "Only the host can start a battle")
	}
	opponent, err := s.userFor(viewerID(c), opponentID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Opponent not found")
	}
	return ok(c, fiber.Map{"user": opponent})
}

// EndPKBattle closes the room's running battle.
func (s *Server) EndPKBattle(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	if _, err := s.liveStream(roomID); err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	return ok(c, nil)
}

// KickViewer forces a viewer out of the room. Host only.
func (s *Server) KickViewer(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	userID, err := paramUint(c, "userID")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user id")
	}
	stream, err := s.liveStream(roomID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	if stream.HostID != viewerID(c) {
		return fail(c, fiber.StatusForbidden, "Only the host can kick viewers")
	}
	s.hub.SendUser(userID, events.EventKicked, events.Kicked{
		RoomID: roomID,
		Reason: "Removed by the host",
	})
	return ok(c, nil)
}

// ListStreamers returns the visible live streams.
func (s *Server) ListStreamers(c *fiber.Ctx) error {
	var rows []StreamRow
	if err := s.db.Where("is_live = ?", true).Order("viewers DESC").Find(&rows).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load streams")
	}
	streamers := make([]models.Streamer, 0, len(rows))
	for _, row := range rows {
		var host Account
		if err := s.db.First(&host, row.HostID).Error; err != nil {
			continue
		}
		streamers = append(streamers, row.toStreamer(host))
	}
	return ok(c, fiber.Map{"streamers": streamers})
}

type startStreamRequest struct {
	Title     string `json:"title"`
	IsPrivate bool   `json:"is_private"`
}

// StartStream opens a broadcast room for the viewer and announces it.
func (s *Server) StartStream(c *fiber.Ctx) error {
	var req startStreamRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	var host Account
	if err := s.db.First(&host, viewerID(c)).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unknown viewer")
	}
	var n int64
	s.db.Model(&StreamRow{}).Where("host_id = ? AND is_live = ?", host.ID, true).Count(&n)
	if n > 0 {
		return fail(c, fiber.StatusConflict, "Already live")
	}

	row := StreamRow{
		HostID:    host.ID,
		Title:     req.Title,
		IsPrivate: req.IsPrivate,
		IsLive:    true,
		StartedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to start stream")
	}
	host.IsLive = true
	s.db.Save(&host)

	streamer := row.toStreamer(host)
	s.hub.SendAll(events.EventStreamerLive, events.StreamerLive{Streamer: streamer, IsLive: true})
	return ok(c, fiber.Map{"streamer": streamer})
}

// EndStream closes the viewer's broadcast room and announces it.
func (s *Server) EndStream(c *fiber.Ctx) error {
	roomID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid room id")
	}
	var row StreamRow
	if err := s.db.First(&row, roomID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Room not found")
	}
	if row.HostID != viewerID(c) {
		return fail(c, fiber.StatusForbidden, "Only the host can end the stream")
	}
	if !row.IsLive {
		return ok(c, nil)
	}

	now := time.Now()
	row.IsLive = false
	row.EndedAt = &now
	s.db.Save(&row)

	var host Account
	if err := s.db.First(&host, row.HostID).Error; err == nil {
		host.IsLive = false
		s.db.Save(&host)
		s.hub.SendAll(events.EventStreamerLive, events.StreamerLive{
			Streamer: row.toStreamer(host),
			IsLive:   false,
		})
	}
	return ok(c, nil)
}

// SaveStreamHistory persists a finished broadcast's history entry.
func (s *Server) SaveStreamHistory(c *fiber.Ctx) error {
	var entry models.StreamHistoryEntry
	if err := c.BodyParser(&entry); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	row := HistoryRow{
		HostID:       viewerID(c),
		StartedAt:    entry.StartedAt,
		Duration:     entry.Duration,
		Coins:        entry.Coins,
		PeakViewers:  entry.PeakViewers,
		NewFollowers: entry.NewFollowers,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to save history")
	}
	return ok(c, nil)
}

func (s *Server) liveStream(roomID uint) (StreamRow, error) {
	var row StreamRow
	err := s.db.Where("id = ? AND is_live = ?", roomID, true).First(&row).Error
	return row, err
}
