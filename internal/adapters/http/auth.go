package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/domain"
)

type authRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// handleAuth logs an existing user in when userId is present, otherwise
// registers a new one and returns the assigned 5-character id.
func (a *API) handleAuth(c *gin.Context) {
	var req authRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	var (
		user *domain.User
		err  error
	)
	if req.UserID != "" {
		user, err = a.Store.Authenticate(domain.UserID(req.UserID), req.Password)
	} else {
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
			return
		}
		user, err = a.Store.Register(req.Name, req.Password)
	}
	if err != nil {
		fail(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set("uid", string(user.ID))
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
	}

	log.Info().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("authenticated")
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "name": user.Name})
}
