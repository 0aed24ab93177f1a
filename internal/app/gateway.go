package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/store"
)

// ErrNotJoined is returned for realtime operations that require the
// session to be subscribed to the target conversation first.
var ErrNotJoined = errors.New("session not joined to conversation")

// Gateway owns the live-connection lifecycle: connect, join/leave a
// conversation room, disconnect. All roster mutation goes through here.
type Gateway struct {
	Registry *Registry
	Roster   *core.Roster
	Store    *store.Store
}

func NewGateway(reg *Registry, roster *core.Roster, st *store.Store) *Gateway {
	return &Gateway{Registry: reg, Roster: roster, Store: st}
}

// Connect allocates the live session handle for a new connection.
// No persisted side effect.
func (g *Gateway) Connect(sid core.SessionID, user domain.UserID, conn core.EventConn, cancel context.CancelFunc) *core.Session {
	sess := &core.Session{SID: sid, UserID: user, Conn: conn}
	g.Registry.Bind(sid, sess, cancel)
	return sess
}

// Join subscribes the session to a conversation room. A session occupies
// at most one room; joining a new one leaves the previous one first.
// Joining the same room twice changes nothing.
//
// Policy: strict — the session's user must be a persisted participant of
// the conversation, otherwise the join is rejected with ErrNotFound.
func (g *Gateway) Join(sid core.SessionID, conv domain.ConversationID) error {
	sess, ok := g.Registry.Get(sid)
	if !ok {
		return ErrNotJoined
	}

	member, err := g.Store.IsMember(conv, sess.UserID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !member {
		log.Warn().Str("module", "app.gateway").Str("sid", string(sid)).Int64("conv", int64(conv)).Msg("join rejected: not a participant")
		return domain.ErrNotFound
	}

	if current, ok := g.Registry.ConversationOf(sid); ok {
		if current == conv {
			return nil
		}
		g.Roster.Remove(current, sid)
	}

	g.Roster.Add(conv, sess)
	g.Registry.UpdateConversation(sid, conv)
	log.Info().Str("module", "app.gateway").Str("sid", string(sid)).Int64("conv", int64(conv)).Msg("joined room")
	return nil
}

// Leave removes the session from the named room; no-op if absent.
func (g *Gateway) Leave(sid core.SessionID, conv domain.ConversationID) {
	g.Roster.Remove(conv, sid)
	if current, ok := g.Registry.ConversationOf(sid); ok && current == conv {
		g.Registry.ClearConversation(sid)
	}
	log.Info().Str("module", "app.gateway").Str("sid", string(sid)).Int64("conv", int64(conv)).Msg("left room")
}

// Disconnect purges the session from whatever rooms it occupies and
// releases its resources. Safe even if the session never joined a room.
func (g *Gateway) Disconnect(sid core.SessionID) {
	g.Roster.RemoveSession(sid)
	g.Registry.Cancel(sid)
	g.Registry.Unbind(sid)
	log.Info().Str("module", "app.gateway").Str("sid", string(sid)).Msg("disconnected")
}
