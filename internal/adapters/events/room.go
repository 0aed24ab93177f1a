package events

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

func (ctl *EventsWSController) handleJoinRoom(
	sid core.SessionID,
	conn *WsEventConn,
	data []byte,
) {
	type joinPayload struct {
		Type           string `json:"type"`
		ConversationID int64  `json:"conversationId"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "events").Msg("bad joinRoom payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	conv := domain.ConversationID(p.ConversationID)

	if err := ctl.Gateway.Join(sid, conv); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			ctl.sendError(conn, "conversation not found")
			return
		}
		log.Error().Err(err).Str("module", "events").Str("sid", string(sid)).Msg("join failed")
		ctl.sendError(conn, "join failed")
		return
	}

	resp := struct {
		Type           string `json:"type"`
		ConversationID int64  `json:"conversationId"`
		Count          int    `json:"count"`
	}{
		Type:           "joined",
		ConversationID: p.ConversationID,
		Count:          ctl.Gateway.Roster.Count(conv),
	}
	ctl.sendJSON(conn, resp)
}

// handleLeaveRoom unsubscribes from a conversation without dropping the
// connection.
func (ctl *EventsWSController) handleLeaveRoom(
	sid core.SessionID,
	conn *WsEventConn,
	data []byte,
) {
	type leavePayload struct {
		Type           string `json:"type"`
		ConversationID int64  `json:"conversationId"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "events").Msg("bad leaveRoom payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	ctl.Gateway.Leave(sid, domain.ConversationID(p.ConversationID))
	ctl.sendJSON(conn, map[string]any{
		"type":           "left",
		"conversationId": p.ConversationID,
	})
}
