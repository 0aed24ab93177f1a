// Package events is the realtime transport adapter: it upgrades the
// connection, owns the read/write pumps and translates wire events into
// gateway and broadcaster calls.
package events

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type EventsWSController struct {
	Gateway     *app.Gateway
	Broadcaster *app.Broadcaster
	Limiter     *SendRateLimiter
	ReadLimit   int64
}

func NewEventsWSController(gw *app.Gateway, bc *app.Broadcaster, limiter *SendRateLimiter, readLimit int64) *EventsWSController {
	return &EventsWSController{
		Gateway:     gw,
		Broadcaster: bc,
		Limiter:     limiter,
		ReadLimit:   readLimit,
	}
}

type WsEventConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsEventConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsEventConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades an authenticated request to a live session.
// The uuid client token is the session id; the login cookie supplies
// the user.
func (ctl *EventsWSController) HandleEvents(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))

	uid, _ := sessions.Default(c).Get("uid").(string)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}

	log.Info().Str("module", "events").Str("sid", string(sid)).Str("user", uid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "events").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsEventConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Gateway.Connect(sid, domain.UserID(uid), conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
