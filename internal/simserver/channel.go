package simserver

import (
	"encoding/json"

	"brilho/internal/events"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IssueTicket mints a short-lived channel ticket for the authenticated user.
func (s *Server) IssueTicket(c *fiber.Ctx) error {
	ticket, err := IssueChannelTicket(s.opts.JWTSecret, viewerID(c))
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to issue ticket")
	}
	return ok(c, fiber.Map{"ticket": ticket})
}

// channelLoop serves one push-channel connection: it registers the client
// in the hub and consumes joinRoom/leaveRoom control envelopes until the
// socket closes.
func (s *Server) channelLoop(conn *websocket.Conn) {
	userID, _ := conn.Locals("userID").(uint)
	client := s.hub.Register(userID, conn)
	joined := make(map[uint]struct{})

	defer func() {
		s.hub.Unregister(client)
		for roomID := range joined {
			s.broadcastViewerCount(roomID)
		}
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env events.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		var ctl struct {
			RoomID uint `json:"room_id"`
		}
		if err := json.Unmarshal(env.Payload, &ctl); err != nil || ctl.RoomID == 0 {
			continue
		}

		switch env.Type {
		case "joinRoom":
			s.hub.JoinRoom(client, ctl.RoomID)
			joined[ctl.RoomID] = struct{}{}
			s.broadcastViewerCount(ctl.RoomID)
		case "leaveRoom":
			s.hub.LeaveRoom(client, ctl.RoomID)
			delete(joined, ctl.RoomID)
			s.broadcastViewerCount(ctl.RoomID)
		}
	}
}

// broadcastViewerCount pushes the room's audience size to its members and
// persists it on the stream row.
func (s *Server) broadcastViewerCount(roomID uint) {
	viewers := s.hub.RoomViewers(roomID)
	s.db.Model(&StreamRow{}).Where("id = ? AND is_live = ?", roomID, true).
		Update("viewers", viewers)
	s.hub.SendRoom(roomID, events.EventViewerCount, events.ViewerCount{
		RoomID:  roomID,
		Viewers: viewers,
	})
}
