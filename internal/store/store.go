// Package store holds the client's in-memory entity graph: the authenticated
// user plus every denormalized copy of users appearing in derived lists.
// All writers route through fan-out propagation so the write path stays a
// single chokepoint.
package store

import (
	"sync"

	"brilho/internal/models"
)

// Snapshot is a read-only copy of every store slot, handed to subscribers
// and to the presentation layer. Mutating a snapshot never affects the store.
type Snapshot struct {
	Me            *models.User
	ViewedProfile *models.User
	PKOpponent    *models.User
	AllUsers      []models.User
	Following     []models.User
	Fans          []models.User
	Friends       []models.User
	SearchResults []models.User
	Visitors      []models.User
	Ranking       []models.User
	Conversations []models.Conversation
	Streamers     []models.Streamer
	Purchases     []models.PurchaseRecord
}

// Store is the single shared mutable resource of the client. Writes are
// mutex-guarded and synchronous: no reader can observe a partial apply.
// Each user ID is an independent unit of consistency; there is no cross-ID
// transactionality.
type Store struct {
	mu    sync.RWMutex
	state state

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// state groups the slots so fan-out can be expressed as a function over it.
type state struct {
	me            *models.User
	viewedProfile *models.User
	pkOpponent    *models.User
	allUsers      []models.User
	following     []models.User
	fans          []models.User
	friends       []models.User
	searchResults []models.User
	visitors      []models.User
	ranking       []models.User
	conversations []models.Conversation
	streamers     []models.Streamer
	purchases     []models.PurchaseRecord
}

// New creates an empty Store.
func New() *Store {
	return &Store{subs: make(map[int]func(Snapshot))}
}

// SetMe installs the authenticated user.
func (s *Store) SetMe(u models.User) {
	s.mu.Lock()
	c := cloneUser(u)
	s.state.me = &c
	s.mu.Unlock()
	s.notify()
}

// Me returns a copy of the authenticated user, if set.
func (s *Store) Me() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.me == nil {
		return models.User{}, false
	}
	return cloneUser(*s.state.me), true
}

// GetUser returns a copy of the freshest known record for the given ID,
// searching the canonical slots before the derived lists.
func (s *Store) GetUser(id uint) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUserLocked(id)
}

func (s *Store) getUserLocked(id uint) (models.User, bool) {
	for _, slot := range []*models.User{s.state.me, s.state.viewedProfile, s.state.pkOpponent} {
		if slot != nil && slot.ID == id {
			return cloneUser(*slot), true
		}
	}
	for _, list := range [][]models.User{
		s.state.following, s.state.fans, s.state.friends,
		s.state.allUsers, s.state.searchResults, s.state.visitors, s.state.ranking,
	} {
		for i := range list {
			if list[i].ID == id {
				return cloneUser(list[i]), true
			}
		}
	}
	for i := range s.state.conversations {
		if s.state.conversations[i].Friend.ID == id {
			return cloneUser(s.state.conversations[i].Friend), true
		}
	}
	return models.User{}, false
}

// ApplyUserPatch patches the freshest known record for id and fans the
// result out to every slot holding a copy. Unknown IDs are a no-op. The
// read, patch and fan-out happen under one lock so concurrent patches to
// the same ID never erase each other's fields.
func (s *Store) ApplyUserPatch(id uint, patch models.UserPatch) bool {
	s.mu.Lock()
	current, ok := s.getUserLocked(id)
	if !ok {
		s.mu.Unlock()
		return false
	}
	propagateUser(&s.state, patch.Apply(current))
	s.mu.Unlock()
	s.notify()
	return true
}

// ReplaceUser writes the given user into every slot that holds a copy of
// the same ID. This is the fan-out chokepoint: event handlers and mutation
// confirmations both terminate here.
func (s *Store) ReplaceUser(u models.User) {
	s.mu.Lock()
	propagateUser(&s.state, cloneUser(u))
	s.mu.Unlock()
	s.notify()
}

// SetViewedProfile installs (or clears, with nil) the actively viewed profile.
func (s *Store) SetViewedProfile(u *models.User) {
	s.mu.Lock()
	if u == nil {
		s.state.viewedProfile = nil
	} else {
		c := cloneUser(*u)
		s.state.viewedProfile = &c
	}
	s.mu.Unlock()
	s.notify()
}

// SetPKOpponent installs (or clears, with nil) the PK battle opponent.
func (s *Store) SetPKOpponent(u *models.User) {
	s.mu.Lock()
	if u == nil {
		s.state.pkOpponent = nil
	} else {
		c := cloneUser(*u)
		s.state.pkOpponent = &c
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceList swaps out one materialized user list wholesale. Used by pull
// reconciliation after reconnects and by initial fetches.
func (s *Store) ReplaceList(slot ListSlot, users []models.User) {
	s.mu.Lock()
	copied := cloneUsers(users)
	switch slot {
	case ListAllUsers:
		s.state.allUsers = copied
	case ListFollowing:
		s.state.following = copied
	case ListFans:
		s.state.fans = copied
	case ListFriends:
		s.state.friends = copied
	case ListSearchResults:
		s.state.searchResults = copied
	case ListVisitors:
		s.state.visitors = copied
	case ListRanking:
		s.state.ranking = copied
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceConversations swaps the conversation list wholesale.
func (s *Store) ReplaceConversations(convs []models.Conversation) {
	s.mu.Lock()
	s.state.conversations = cloneConversations(convs)
	s.mu.Unlock()
	s.notify()
}

// ReplaceStreamers swaps the visible streamer list wholesale.
func (s *Store) ReplaceStreamers(streamers []models.Streamer) {
	s.mu.Lock()
	s.state.streamers = append([]models.Streamer(nil), streamers...)
	s.mu.Unlock()
	s.notify()
}

// UpsertStreamer patches the streamer matching ID, or prepends a new one.
func (s *Store) UpsertStreamer(st models.Streamer) {
	s.mu.Lock()
	replaced := false
	for i := range s.state.streamers {
		if s.state.streamers[i].ID == st.ID {
			s.state.streamers[i] = st
			replaced = true
			break
		}
	}
	if !replaced {
		s.state.streamers = append([]models.Streamer{st}, s.state.streamers...)
	}
	s.mu.Unlock()
	s.notify()
}

// SetStreamerViewers updates the audience size of one room's descriptor.
func (s *Store) SetStreamerViewers(roomID uint, viewers int) {
	s.mu.Lock()
	for i := range s.state.streamers {
		if s.state.streamers[i].ID == roomID {
			s.state.streamers[i].Viewers = viewers
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// RemoveStreamer drops a streamer that went off air.
func (s *Store) RemoveStreamer(id uint) {
	s.mu.Lock()
	out := s.state.streamers[:0]
	for _, st := range s.state.streamers {
		if st.ID != id {
			out = append(out, st)
		}
	}
	s.state.streamers = out
	s.mu.Unlock()
	s.notify()
}

// ReplacePurchases swaps the wallet ledger wholesale.
func (s *Store) ReplacePurchases(records []models.PurchaseRecord) {
	s.mu.Lock()
	s.state.purchases = append([]models.PurchaseRecord(nil), records...)
	s.mu.Unlock()
	s.notify()
}

// UpsertPurchase patches the ledger entry matching ID, or prepends a new
// one. Status transitions are server-authoritative; this just reflects them.
func (s *Store) UpsertPurchase(rec models.PurchaseRecord) {
	s.mu.Lock()
	upsertPurchase(&s.state, rec)
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a deep copy of every slot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(&s.state)
}

// Subscribe registers fn to be invoked synchronously after every write.
// The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// ListSlot names one of the materialized user lists.
type ListSlot string

// Materialized list slots.
const (
	ListAllUsers      ListSlot = "all_users"
	ListFollowing     ListSlot = "following"
	ListFans          ListSlot = "fans"
	ListFriends       ListSlot = "friends"
	ListSearchResults ListSlot = "search_results"
	ListVisitors      ListSlot = "visitors"
	ListRanking       ListSlot = "ranking"
)

func cloneUser(u models.User) models.User {
	u.Frames = append([]models.OwnedFrame(nil), u.Frames...)
	return u
}

func cloneUsers(users []models.User) []models.User {
	out := make([]models.User, len(users))
	for i := range users {
		out[i] = cloneUser(users[i])
	}
	return out
}

func cloneConversations(convs []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(convs))
	for i := range convs {
		out[i] = convs[i]
		out[i].Friend = cloneUser(convs[i].Friend)
	}
	return out
}

func snapshotOf(st *state) Snapshot {
	snap := Snapshot{
		AllUsers:      cloneUsers(st.allUsers),
		Following:     cloneUsers(st.following),
		Fans:          cloneUsers(st.fans),
		Friends:       cloneUsers(st.friends),
		SearchResults: cloneUsers(st.searchResults),
		Visitors:      cloneUsers(st.visitors),
		Ranking:       cloneUsers(st.ranking),
		Conversations: cloneConversations(st.conversations),
		Streamers:     append([]models.Streamer(nil), st.streamers...),
		Purchases:     append([]models.PurchaseRecord(nil), st.purchases...),
	}
	if st.me != nil {
		c := cloneUser(*st.me)
		snap.Me = &c
	}
	if st.viewedProfile != nil {
		c := cloneUser(*st.viewedProfile)
		snap.ViewedProfile = &c
	}
	if st.pkOpponent != nil {
		c := cloneUser(*st.pkOpponent)
		snap.PKOpponent = &c
	}
	return snap
}
