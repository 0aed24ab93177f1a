// Package http wires the REST query surface and the WS upgrade endpoint.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/adapters/events"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/store"
)

// API bundles what the REST handlers delegate to. Edits and deletes go
// through the broadcaster so live rooms stay in sync with the store.
type API struct {
	Store       *store.Store
	Broadcaster *app.Broadcaster
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token identifying
// its live session across reconnects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, api *API, ctl *events.EventsWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ChatSessions", sessionStore))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	apiGroup := r.Group("/api")

	apiGroup.POST("/auth", api.handleAuth)

	apiGroup.GET("/conversations/:userId", api.handleListConversations)
	apiGroup.POST("/conversations", api.handleCreateDirect)
	apiGroup.POST("/conversations/group", api.handleCreateGroup)
	apiGroup.POST("/conversations/:id/members", api.handleAddMembers)

	apiGroup.PUT("/messages/:id", api.handleEditMessage)
	apiGroup.DELETE("/messages/:id", api.handleDeleteMessage)

	r.GET("/ws/events", func(c *gin.Context) {
		ctl.HandleEvents(ctx, c)
	})

	return r
}

// fail maps core errors onto the REST failure shape.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyText),
		errors.Is(err, domain.ErrNameEmpty),
		errors.Is(err, domain.ErrNameTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotAuthor):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the author may do that"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrAmbiguousName):
		// Ambiguous name resolution is reported as not-found rather
		// than guessing between users.
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad credentials"})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
