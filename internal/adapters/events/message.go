package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

func (ctl *EventsWSController) handleSendMessage(
	sid core.SessionID,
	conn *WsEventConn,
	data []byte,
) {
	type sendPayload struct {
		Type            string `json:"type"`
		ConversationID  int64  `json:"conversationId"`
		Text            string `json:"text"`
		ClientTimestamp string `json:"clientTimestamp,omitempty"`
	}
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "events").Msg("bad sendMessage payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	sess, ok := ctl.Gateway.Registry.Get(sid)
	if !ok {
		ctl.sendError(conn, "not connected")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sess.UserID) {
		log.Warn().Str("module", "events").Str("user", string(sess.UserID)).Msg("send rate limited")
		ctl.sendError(conn, "rate_limited")
		return
	}

	// Client timestamps are advisory; unparseable ones fall back to the
	// server clock inside the store.
	var ts time.Time
	if p.ClientTimestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, p.ClientTimestamp); err == nil {
			ts = parsed
		}
	}

	_, err := ctl.Broadcaster.SendMessage(sid, domain.ConversationID(p.ConversationID), p.Text, ts)
	if err != nil {
		ctl.sendOpError(conn, err, "send failed")
	}
	// The ack to the author is delivered by the broadcaster itself.
}

func (ctl *EventsWSController) handleEditMessage(
	sid core.SessionID,
	conn *WsEventConn,
	data []byte,
) {
	type editPayload struct {
		Type      string `json:"type"`
		MessageID int64  `json:"messageId"`
		NewText   string `json:"newText"`
	}
	var p editPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "events").Msg("bad editMessage payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	sess, ok := ctl.Gateway.Registry.Get(sid)
	if !ok {
		ctl.sendError(conn, "not connected")
		return
	}

	if _, err := ctl.Broadcaster.EditMessage(sess.UserID, domain.MessageID(p.MessageID), p.NewText); err != nil {
		ctl.sendOpError(conn, err, "edit failed")
	}
}

func (ctl *EventsWSController) handleDeleteMessage(
	sid core.SessionID,
	conn *WsEventConn,
	data []byte,
) {
	type deletePayload struct {
		Type      string `json:"type"`
		MessageID int64  `json:"messageId"`
	}
	var p deletePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "events").Msg("bad deleteMessage payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	sess, ok := ctl.Gateway.Registry.Get(sid)
	if !ok {
		ctl.sendError(conn, "not connected")
		return
	}

	if err := ctl.Broadcaster.DeleteMessage(sess.UserID, domain.MessageID(p.MessageID)); err != nil {
		ctl.sendOpError(conn, err, "delete failed")
	}
}

// sendOpError maps core failures to caller-only error events.
func (ctl *EventsWSController) sendOpError(conn *WsEventConn, err error, generic string) {
	switch {
	case errors.Is(err, domain.ErrEmptyText):
		ctl.sendError(conn, "empty text")
	case errors.Is(err, domain.ErrNotAuthor):
		ctl.sendError(conn, "not the author")
	case errors.Is(err, domain.ErrNotFound):
		ctl.sendError(conn, "message not found")
	case errors.Is(err, app.ErrNotJoined):
		ctl.sendError(conn, "join the conversation first")
	default:
		log.Error().Err(err).Str("module", "events").Msg(generic)
		ctl.sendError(conn, generic)
	}
}
