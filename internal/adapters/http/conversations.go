package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Chat/internal/domain"
)

// GET /api/conversations/:userId
func (a *API) handleListConversations(c *gin.Context) {
	userID := domain.UserID(c.Param("userId"))
	views, err := a.Store.ConversationsFor(userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// POST /api/conversations — get-or-create a 1:1 conversation.
func (a *API) handleCreateDirect(c *gin.Context) {
	var req struct {
		UserA string `json:"userA"`
		UserB string `json:"userB"`
	}
	if err := c.BindJSON(&req); err != nil || req.UserA == "" || req.UserB == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userA and userB required"})
		return
	}
	conv, err := a.Store.DirectConversation(domain.UserID(req.UserA), domain.UserID(req.UserB))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID})
}

// POST /api/conversations/group
func (a *API) handleCreateGroup(c *gin.Context) {
	var req struct {
		CreatorID   string   `json:"creatorId"`
		GroupName   string   `json:"groupName"`
		MemberNames []string `json:"memberNames"`
	}
	if err := c.BindJSON(&req); err != nil || req.CreatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creatorId required"})
		return
	}
	conv, err := a.Store.CreateGroup(domain.UserID(req.CreatorID), req.GroupName, req.MemberNames)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID, "groupName": conv.GroupName})
}

// POST /api/conversations/:id/members — add members, optionally rename.
func (a *API) handleAddMembers(c *gin.Context) {
	convID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	var req struct {
		MemberNames []string `json:"memberNames"`
		GroupName   string   `json:"groupName"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := a.Store.AddMembers(domain.ConversationID(convID), req.MemberNames, req.GroupName); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
