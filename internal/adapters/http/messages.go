package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Chat/internal/domain"
)

// PUT /api/messages/:id — edit; live rooms are notified through the
// broadcaster, same as WS-originated edits.
func (a *API) handleEditMessage(c *gin.Context) {
	msgID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	var req struct {
		UserID  string `json:"userId"`
		NewText string `json:"newText"`
	}
	if err := c.BindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	msg, err := a.Broadcaster.EditMessage(domain.UserID(req.UserID), domain.MessageID(msgID), req.NewText)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DELETE /api/messages/:id
func (a *API) handleDeleteMessage(c *gin.Context) {
	msgID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.BindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	if err := a.Broadcaster.DeleteMessage(domain.UserID(req.UserID), domain.MessageID(msgID)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
