package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
)

func (ctl *EventsWSController) writePump(ctx context.Context, c *WsEventConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "events").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "events").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "events").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "events").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *EventsWSController) readPump(ctx context.Context, sid core.SessionID, c *WsEventConn) {
	defer func() {
		log.Info().Str("module", "events").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Gateway.Disconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "events").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "events").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(sid, c, data)
		}
	}
}

func (ctl *EventsWSController) handleEvent(sid core.SessionID, c *WsEventConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "events").Msg("bad json")
		return
	}

	switch env.Type {
	case "joinRoom":
		ctl.handleJoinRoom(sid, c, data)
	case "leaveRoom":
		ctl.handleLeaveRoom(sid, c, data)
	case "sendMessage":
		ctl.handleSendMessage(sid, c, data)
	case "editMessage":
		ctl.handleEditMessage(sid, c, data)
	case "deleteMessage":
		ctl.handleDeleteMessage(sid, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "events").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *EventsWSController) sendJSON(c *WsEventConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "events").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *EventsWSController) sendError(c *WsEventConn, reason string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": reason,
	})
}

func (ctl *EventsWSController) handlePing(c *WsEventConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(c, resp)
}
