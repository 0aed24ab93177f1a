package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/domain"
)

// Roster is the in-memory conversation membership index: which live
// sessions are currently subscribed to which conversation. It is the only
// shared mutable state outside the store and is mutated exclusively through
// the gateway. It never closes adapter-owned connections.
type Roster struct {
	mu    sync.RWMutex
	rooms map[domain.ConversationID]map[SessionID]*Session
}

func NewRoster() *Roster {
	return &Roster{rooms: make(map[domain.ConversationID]map[SessionID]*Session)}
}

// Add subscribes a session to a conversation. Adding twice is a no-op.
func (r *Roster) Add(conv domain.ConversationID, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[conv]
	if !ok {
		room = make(map[SessionID]*Session)
		r.rooms[conv] = room
	}
	room[sess.SID] = sess
	log.Info().Str("module", "core.roster").Str("sid", string(sess.SID)).Int64("conv", int64(conv)).Msg("session added")
}

// Remove drops a session from one conversation; no-op if absent.
func (r *Roster) Remove(conv domain.ConversationID, sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(conv, sid)
}

// RemoveSession drops a session from every conversation it occupies.
// Used on disconnect; safe when the session never joined anything.
func (r *Roster) RemoveSession(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conv, room := range r.rooms {
		if _, ok := room[sid]; ok {
			r.removeLocked(conv, sid)
		}
	}
}

func (r *Roster) removeLocked(conv domain.ConversationID, sid SessionID) {
	room, ok := r.rooms[conv]
	if !ok {
		return
	}
	if _, ok := room[sid]; !ok {
		return
	}
	delete(room, sid)
	if len(room) == 0 {
		delete(r.rooms, conv)
	}
	log.Info().Str("module", "core.roster").Str("sid", string(sid)).Int64("conv", int64(conv)).Msg("session removed")
}

// MembersOf returns a point-in-time snapshot of the room. The snapshot may
// be stale by the time delivery completes; sessions joining after it is
// taken do not receive that particular event.
func (r *Roster) MembersOf(conv domain.ConversationID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[conv]
	out := make([]*Session, 0, len(room))
	for _, s := range room {
		out = append(out, s)
	}
	return out
}

func (r *Roster) Count(conv domain.ConversationID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conv])
}

// Contains reports whether a session is currently in the room.
func (r *Roster) Contains(conv domain.ConversationID, sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[conv][sid]
	return ok
}
