package simserver

import (
	"errors"

	"brilho/internal/events"
	"brilho/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates an account and returns a bearer token.
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	var acct Account
	if err := s.db.Where("username = ?", req.Username).First(&acct).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.Password), []byte(req.Password)); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := IssueAuthToken(s.opts.JWTSecret, acct.ID)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to issue token")
	}
	u := acct.toUser(false)
	s.attachFrames(&u)
	return ok(c, fiber.Map{"token": token, "user": u})
}

// GetUser returns one account as seen by the viewer.
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user id")
	}
	u, err := s.userFor(viewerID(c), id)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "User not found")
	}
	return ok(c, fiber.Map{"user": u})
}

// UpdateUser applies profile edits to the viewer's own account.
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user id")
	}
	if id != viewerID(c) {
		return fail(c, fiber.StatusForbidden, "Cannot edit another user's profile")
	}

	var patch models.UserPatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	var acct Account
	if err := s.db.First(&acct, id).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "User not found")
	}
	if patch.DisplayName != nil {
		acct.DisplayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		acct.AvatarURL = *patch.AvatarURL
	}
	if patch.Bio != nil {
		acct.Bio = *patch.Bio
	}
	if err := s.db.Save(&acct).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to save profile")
	}

	u := acct.toUser(false)
	s.attachFrames(&u)
	s.hub.SendUser(acct.ID, events.EventUserUpdate, events.UserUpdate{User: u})
	return ok(c, fiber.Map{"user": u})
}

// Follow creates the viewer→target follow edge.
func (s *Server) Follow(c *fiber.Ctx) error {
	return s.setFollow(c, true)
}

// Unfollow removes the viewer→target follow edge.
func (s *Server) Unfollow(c *fiber.Ctx) error {
	return s.setFollow(c, false)
}

func (s *Server) setFollow(c *fiber.Ctx, follow bool) error {
	targetID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid user id")
	}
	viewer := viewerID(c)
	if targetID == viewer {
		return fail(c, fiber.StatusBadRequest, "Cannot follow yourself")
	}

	var target, me Account
	if err := s.db.First(&target, targetID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "User not found")
	}
	if err := s.db.First(&me, viewer).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unknown viewer")
	}

	var row FollowRow
	err = s.db.Where("viewer_id = ? AND target_id = ?", viewer, targetID).First(&row).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, fiber.StatusInternalServerError, "Failed to load follow state")
	}

	changed := false
	if follow && !exists {
		if err := s.db.Create(&FollowRow{ViewerID: viewer, TargetID: targetID}).Error; err != nil {
			return fail(c, fiber.StatusInternalServerError, "Failed to follow")
		}
		target.Fans++
		me.Following++
		changed = true
	} else if !follow && exists {
		if err := s.db.Delete(&row).Error; err != nil {
			return fail(c, fiber.StatusInternalServerError, "Failed to unfollow")
		}
		if target.Fans > 0 {
			target.Fans--
		}
		if me.Following > 0 {
			me.Following--
		}
		changed = true
	}
	if changed {
		s.db.Save(&target)
		s.db.Save(&me)

		// Other devices of the viewer converge via push.
		s.hub.SendUser(viewer, events.EventFollowUpdate, events.FollowUpdate{
			UserID:     target.ID,
			IsFollowed: follow,
			Fans:       target.Fans,
			Following:  target.Following,
		})
		s.hub.SendUser(target.ID, events.EventUserUpdate, events.UserUpdate{User: target.toUser(false)})

		if follow && target.IsLive {
			var stream StreamRow
			if err := s.db.Where("host_id = ? AND is_live = ?", target.ID, true).First(&stream).Error; err == nil {
				s.hub.SendRoom(stream.ID, events.EventNewFollower, events.NewFollower{
					RoomID: stream.ID,
					User:   me.toUser(false),
				})
			}
		}
	}

	return ok(c, fiber.Map{
		"is_followed": follow,
		"fans":        target.Fans,
		"following":   me.Following,
	})
}

// LikePhoto records the viewer's like on a photo.
func (s *Server) LikePhoto(c *fiber.Ctx) error {
	return s.setLike(c, true)
}

// UnlikePhoto removes the viewer's like from a photo.
func (s *Server) UnlikePhoto(c *fiber.Ctx) error {
	return s.setLike(c, false)
}

func (s *Server) setLike(c *fiber.Ctx, liked bool) error {
	photoID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid photo id")
	}
	viewer := viewerID(c)

	if liked {
		row := LikeRow{PhotoID: photoID, UserID: viewer}
		if err := s.db.Where(&row).FirstOrCreate(&row).Error; err != nil {
			return fail(c, fiber.StatusInternalServerError, "Failed to like photo")
		}
	} else {
		if err := s.db.Where("photo_id = ? AND user_id = ?", photoID, viewer).
			Delete(&LikeRow{}).Error; err != nil {
			return fail(c, fiber.StatusInternalServerError, "Failed to unlike photo")
		}
	}

	var likes int64
	s.db.Model(&LikeRow{}).Where("photo_id = ?", photoID).Count(&likes)
	return ok(c, fiber.Map{"likes": int(likes), "is_liked": liked})
}

const listLimit = 50

// ListUsers materializes one of the named user lists for the viewer.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	viewer := viewerID(c)
	var accounts []Account
	var err error

	switch c.Params("name") {
	case "following":
		err = s.db.
			Joins("JOIN follow_rows ON follow_rows.target_id = accounts.id").
			Where("follow_rows.viewer_id = ?", viewer).
			Limit(listLimit).Find(&accounts).Error
	case "fans":
		err = s.db.
			Joins("JOIN follow_rows ON follow_rows.viewer_id = accounts.id").
			Where("follow_rows.target_id = ?", viewer).
			Limit(listLimit).Find(&accounts).Error
	case "friends":
		err = s.db.
			Joins("JOIN follow_rows out ON out.target_id = accounts.id AND out.viewer_id = ?", viewer).
			Joins("JOIN follow_rows back ON back.viewer_id = accounts.id AND back.target_id = ?", viewer).
			Limit(listLimit).Find(&accounts).Error
	case "visitors":
		err = s.db.Where("id <> ?", viewer).Order("updated_at DESC").
			Limit(20).Find(&accounts).Error
	case "ranking":
		err = s.db.Order("earnings DESC").Limit(20).Find(&accounts).Error
	default:
		return fail(c, fiber.StatusBadRequest, "Unknown list")
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load list")
	}

	followed := s.followSet(viewer)
	users := make([]models.User, 0, len(accounts))
	for _, acct := range accounts {
		users = append(users, acct.toUser(followed[acct.ID]))
	}
	return ok(c, fiber.Map{"users": users})
}

// followSet loads every target the viewer follows.
func (s *Server) followSet(viewer uint) map[uint]bool {
	var rows []FollowRow
	s.db.Where("viewer_id = ?", viewer).Find(&rows)
	set := make(map[uint]bool, len(rows))
	for _, row := range rows {
		set[row.TargetID] = true
	}
	return set
}

// ListConversations returns the viewer's direct-message inbox.
func (s *Server) ListConversations(c *fiber.Ctx) error {
	viewer := viewerID(c)
	var rows []ConversationRow
	if err := s.db.Where("user_id = ?", viewer).
		Order("last_message_at DESC").Find(&rows).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load conversations")
	}

	followed := s.followSet(viewer)
	conversations := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		var friend Account
		if err := s.db.First(&friend, row.FriendID).Error; err != nil {
			continue
		}
		conversations = append(conversations, models.Conversation{
			ID:            row.ID,
			Friend:        friend.toUser(followed[friend.ID]),
			LastMessage:   row.LastMessage,
			LastMessageAt: row.LastMessageAt,
			Unread:        row.Unread,
		})
	}
	return ok(c, fiber.Map{"conversations": conversations})
}
