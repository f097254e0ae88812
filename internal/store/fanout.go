package store

import (
	"brilho/internal/models"
	"brilho/internal/observability"
)

// propagateUser writes one updated user into every slot that might hold a
// stale copy: canonical slots by ID match, lists by ID-match replace,
// conversations by friend sub-object replace and streamers by host display
// fields only. Membership predicates are enforced here too: an unfollow
// removes the user from the following list, a follow inserts it.
//
// This is a pure function of (previous state, updated entity); it performs
// no I/O and is safe to call from any event handler or mutation
// confirmation. Applying the same user twice is idempotent, and because
// every write is replace-by-id, concurrent-name event orderings converge.
func propagateUser(st *state, u models.User) {
	if st.me != nil && st.me.ID == u.ID {
		c := cloneUser(u)
		st.me = &c
		observability.FanoutWritesTotal.WithLabelValues("me").Inc()
	}
	if st.viewedProfile != nil && st.viewedProfile.ID == u.ID {
		c := cloneUser(u)
		st.viewedProfile = &c
		observability.FanoutWritesTotal.WithLabelValues("viewed_profile").Inc()
	}
	if st.pkOpponent != nil && st.pkOpponent.ID == u.ID {
		c := cloneUser(u)
		st.pkOpponent = &c
		observability.FanoutWritesTotal.WithLabelValues("pk_opponent").Inc()
	}

	replaceByID(&st.allUsers, u, "all_users")
	replaceByID(&st.fans, u, "fans")
	replaceByID(&st.friends, u, "friends")
	replaceByID(&st.searchResults, u, "search_results")
	replaceByID(&st.visitors, u, "visitors")
	replaceByID(&st.ranking, u, "ranking")

	syncFollowing(st, u)

	for i := range st.conversations {
		if st.conversations[i].Friend.ID == u.ID {
			st.conversations[i].Friend = cloneUser(u)
			observability.FanoutWritesTotal.WithLabelValues("conversations").Inc()
		}
	}

	// Streamer records only track the host's display identity; viewer
	// counts belong to the room, not the user.
	for i := range st.streamers {
		if st.streamers[i].HostID == u.ID {
			st.streamers[i].HostName = u.DisplayName
			st.streamers[i].HostAvatarURL = u.AvatarURL
			observability.FanoutWritesTotal.WithLabelValues("streamers").Inc()
		}
	}
}

// replaceByID swaps the list entry matching u.ID in place. Membership is
// not changed: lists gain or lose entries only through their own predicates
// or a wholesale refresh.
func replaceByID(list *[]models.User, u models.User, slot string) {
	for i := range *list {
		if (*list)[i].ID == u.ID {
			(*list)[i] = cloneUser(u)
			observability.FanoutWritesTotal.WithLabelValues(slot).Inc()
			return
		}
	}
}

// syncFollowing keeps the following list consistent with the IsFollowed
// predicate: exactly one entry while followed, none once unfollowed.
func syncFollowing(st *state, u models.User) {
	idx := -1
	for i := range st.following {
		if st.following[i].ID == u.ID {
			idx = i
			break
		}
	}
	switch {
	case u.IsFollowed && idx >= 0:
		st.following[idx] = cloneUser(u)
		observability.FanoutWritesTotal.WithLabelValues("following").Inc()
	case u.IsFollowed && idx < 0:
		st.following = append(st.following, cloneUser(u))
		observability.FanoutWritesTotal.WithLabelValues("following").Inc()
	case !u.IsFollowed && idx >= 0:
		st.following = append(st.following[:idx], st.following[idx+1:]...)
		observability.FanoutWritesTotal.WithLabelValues("following").Inc()
	}
}

// upsertPurchase patches the ledger entry matching ID or prepends a new one.
func upsertPurchase(st *state, rec models.PurchaseRecord) {
	for i := range st.purchases {
		if st.purchases[i].ID == rec.ID {
			st.purchases[i] = rec
			observability.FanoutWritesTotal.WithLabelValues("purchases").Inc()
			return
		}
	}
	st.purchases = append([]models.PurchaseRecord{rec}, st.purchases...)
	observability.FanoutWritesTotal.WithLabelValues("purchases").Inc()
}
