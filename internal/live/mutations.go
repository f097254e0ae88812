package live

import (
	"context"

	"brilho/internal/api"
	"brilho/internal/models"
	"brilho/internal/optimistic"
)

// followSnapshot is the slice of state a follow toggle touches on the
// target user, used for compare-and-revert.
type followSnapshot struct {
	Followed bool
	Fans     int
}

// FollowUser optimistically follows the target user.
func (c *Coordinator) FollowUser(ctx context.Context, targetID uint) error {
	return c.setFollowed(ctx, targetID, true)
}

// UnfollowUser optimistically unfollows the target user.
func (c *Coordinator) UnfollowUser(ctx context.Context, targetID uint) error {
	return c.setFollowed(ctx, targetID, false)
}

func (c *Coordinator) setFollowed(ctx context.Context, targetID uint, followed bool) error {
	target, ok := c.store.GetUser(targetID)
	if !ok {
		return models.NewNotFoundError("User", targetID)
	}
	me, haveMe := c.store.Me()

	prevTarget := followSnapshot{Followed: target.IsFollowed, Fans: target.Fans}
	fans := target.Fans
	if followed && !target.IsFollowed {
		fans++
	} else if !followed && target.IsFollowed && fans > 0 {
		fans--
	}
	appliedTarget := followSnapshot{Followed: followed, Fans: fans}

	prevFollowing := me.Following
	appliedFollowing := me.Following
	if haveMe {
		if followed && !target.IsFollowed {
			appliedFollowing++
		} else if !followed && target.IsFollowed && appliedFollowing > 0 {
			appliedFollowing--
		}
	}

	name := "follow"
	if !followed {
		name = "unfollow"
	}

	cmd := optimistic.Command{
		Name: name,
		Apply: func() []optimistic.Entry {
			c.store.ApplyUserPatch(targetID, models.UserPatch{
				IsFollowed: models.Ptr(followed),
				Fans:       models.Ptr(fans),
			})
			entries := []optimistic.Entry{{
				Slot:    "target.follow",
				Applied: appliedTarget,
				Current: func() (interface{}, bool) {
					u, ok := c.store.GetUser(targetID)
					if !ok {
						return nil, false
					}
					return followSnapshot{Followed: u.IsFollowed, Fans: u.Fans}, true
				},
				Restore: func() {
					c.store.ApplyUserPatch(targetID, models.UserPatch{
						IsFollowed: models.Ptr(prevTarget.Followed),
						Fans:       models.Ptr(prevTarget.Fans),
					})
				},
			}}
			if haveMe {
				c.store.ApplyUserPatch(me.ID, models.UserPatch{Following: models.Ptr(appliedFollowing)})
				entries = append(entries, optimistic.Entry{
					Slot:    "me.following",
					Applied: appliedFollowing,
					Current: func() (interface{}, bool) {
						u, ok := c.store.Me()
						if !ok {
							return nil, false
						}
						return u.Following, true
					},
					Restore: func() {
						c.store.ApplyUserPatch(me.ID, models.UserPatch{Following: models.Ptr(prevFollowing)})
					},
				})
			}
			return entries
		},
		Request: func(ctx context.Context) (interface{}, error) {
			if followed {
				resp, err := c.api.Follow(ctx, targetID)
				return resp, err
			}
			resp, err := c.api.Unfollow(ctx, targetID)
			return resp, err
		},
		Confirm: func(result interface{}) {
			resp, ok := result.(api.FollowResponse)
			if !ok {
				return
			}
			// Server wins on conflict: counts may differ from the
			// speculative ones when other clients acted concurrently.
			c.store.ApplyUserPatch(targetID, models.UserPatch{
				IsFollowed: models.Ptr(resp.IsFollowed),
				Fans:       models.Ptr(resp.Fans),
			})
			if haveMe {
				c.store.ApplyUserPatch(me.ID, models.UserPatch{Following: models.Ptr(resp.Following)})
			}
		},
	}
	err := c.runner.Do(ctx, cmd)
	if err != nil {
		c.toastError(err)
	}
	return err
}

// ToggleLike optimistically flips a photo's like state.
func (c *Coordinator) ToggleLike(ctx context.Context, photoID uint) error {
	c.likeMu.Lock()
	prev := c.likes[photoID]
	c.likeMu.Unlock()

	applied := likeState{Liked: !prev.Liked}
	if applied.Liked {
		applied.Count = prev.Count + 1
	} else if prev.Count > 0 {
		applied.Count = prev.Count - 1
	}

	cmd := optimistic.Command{
		Name: "toggle_like",
		Apply: func() []optimistic.Entry {
			c.likeMu.Lock()
			c.likes[photoID] = applied
			c.likeMu.Unlock()
			return []optimistic.Entry{{
				Slot:    "photo.like",
				Applied: applied,
				Current: func() (interface{}, bool) {
					c.likeMu.Lock()
					defer c.likeMu.Unlock()
					return c.likes[photoID], true
				},
				Restore: func() {
					c.likeMu.Lock()
					c.likes[photoID] = prev
					c.likeMu.Unlock()
				},
			}}
		},
		Request: func(ctx context.Context) (interface{}, error) {
			resp, err := c.api.SetPhotoLiked(ctx, photoID, applied.Liked)
			return resp, err
		},
		Confirm: func(result interface{}) {
			resp, ok := result.(api.LikeResponse)
			if !ok {
				return
			}
			c.likeMu.Lock()
			c.likes[photoID] = likeState{Liked: resp.IsLiked, Count: resp.Likes}
			c.likeMu.Unlock()
		},
	}
	err := c.runner.Do(ctx, cmd)
	if err != nil {
		c.toastError(err)
	}
	return err
}

// SendGift optimistically deducts the gift cost from the sender's diamonds
// and sends the gift in the current room. The server's balance wins on
// confirm; a rejection restores the pre-send balance.
func (c *Coordinator) SendGift(ctx context.Context, giftID uint, count int) error {
	sess, ok := c.machine.Current()
	if !ok {
		return models.NewValidationError("No active live session")
	}
	me, ok := c.store.Me()
	if !ok {
		return models.NewValidationError("Not signed in")
	}
	if count <= 0 {
		count = 1
	}

	var gift models.Gift
	found := false
	c.giftMu.Lock()
	for _, g := range c.gifts {
		if g.ID == giftID {
			gift = g
			found = true
			break
		}
	}
	c.giftMu.Unlock()
	if !found {
		return models.NewNotFoundError("Gift", giftID)
	}

	prevDiamonds := me.Diamonds
	appliedDiamonds := me.Diamonds - gift.Price*count

	cmd := optimistic.Command{
		Name: "send_gift",
		Apply: func() []optimistic.Entry {
			c.store.ApplyUserPatch(me.ID, models.UserPatch{Diamonds: models.Ptr(appliedDiamonds)})
			return []optimistic.Entry{{
				Slot:    "me.diamonds",
				Applied: appliedDiamonds,
				Current: func() (interface{}, bool) {
					u, ok := c.store.Me()
					if !ok {
						return nil, false
					}
					return u.Diamonds, true
				},
				Restore: func() {
					c.store.ApplyUserPatch(me.ID, models.UserPatch{Diamonds: models.Ptr(prevDiamonds)})
				},
			}}
		},
		Request: func(ctx context.Context) (interface{}, error) {
			resp, err := c.api.SendGift(ctx, sess.RoomID, giftID, count)
			return resp, err
		},
		Confirm: func(result interface{}) {
			resp, ok := result.(api.SendGiftResponse)
			if !ok {
				return
			}
			c.store.ApplyUserPatch(me.ID, models.UserPatch{Diamonds: models.Ptr(resp.Diamonds)})
		},
	}
	err := c.runner.Do(ctx, cmd)
	if err != nil {
		c.toastError(err)
	}
	return err
}

// SetMicMuted optimistically toggles the session's mic mute flag.
func (c *Coordinator) SetMicMuted(ctx context.Context, muted bool) error {
	return c.setMuteFlag(ctx, muted, "mic_mute",
		c.machine.MicMuted,
		c.machine.SetMicMuted,
		c.api.SetMicState,
	)
}

// SetSoundMuted optimistically toggles the session's sound mute flag.
func (c *Coordinator) SetSoundMuted(ctx context.Context, muted bool) error {
	return c.setMuteFlag(ctx, muted, "sound_mute",
		c.machine.SoundMuted,
		c.machine.SetSoundMuted,
		c.api.SetSoundState,
	)
}

func (c *Coordinator) setMuteFlag(
	ctx context.Context,
	muted bool,
	name string,
	read func(uint) (bool, bool),
	write func(uint, bool) bool,
	request func(context.Context, uint, bool) error,
) error {
	sess, ok := c.machine.Current()
	if !ok {
		return models.NewValidationError("No active live session")
	}
	roomID := sess.RoomID
	prev, ok := read(roomID)
	if !ok {
		return models.NewValidationError("No active live session")
	}

	cmd := optimistic.Command{
		Name: name,
		Apply: func() []optimistic.Entry {
			write(roomID, muted)
			return []optimistic.Entry{{
				Slot:    name,
				Applied: muted,
				Current: func() (interface{}, bool) {
					v, ok := read(roomID)
					return v, ok
				},
				Restore: func() { write(roomID, prev) },
			}}
		},
		Request: func(ctx context.Context) (interface{}, error) {
			return nil, request(ctx, roomID, muted)
		},
	}
	err := c.runner.Do(ctx, cmd)
	if err != nil {
		c.toastError(err)
	}
	return err
}
