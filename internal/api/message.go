package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/middleware"
	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/service"
)

type MessageHandler struct {
	messages *service.MessageService
	logger   *zap.Logger
}

func NewMessageHandler(messages *service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type sendMessageRequest struct {
	Content         string `json:"content" binding:"required"`
	Type            string `json:"type"`
	ParentMessageID *int64 `json:"parent_message_id"`
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Send handles POST /api/communication/channels/:id/messages.
func (h *MessageHandler) Send(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), service.SendMessageInput{
		ChannelID:       channelID,
		SenderID:        middleware.GetUserID(c),
		Content:         req.Content,
		Type:            models.MessageType(req.Type),
		ParentMessageID: req.ParentMessageID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /api/communication/channels/:id/messages.
//
// Cursor pagination on message id:
//
//	?before=123  messages older than id 123, newest first (0 = latest page)
//	?after=123   messages newer than id 123, oldest first (catch-up reads)
//	?limit=50    page size, default 50, capped at 100
func (h *MessageHandler) List(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	before, ok := queryInt64(c, "before", 0)
	if !ok {
		badRequest(c, "invalid 'before' parameter")
		return
	}
	after, ok := queryInt64(c, "after", 0)
	if !ok {
		badRequest(c, "invalid 'after' parameter")
		return
	}

	userID := middleware.GetUserID(c)
	var (
		messages []models.Message
		err      error
	)
	if after > 0 {
		messages, err = h.messages.ListAfter(c.Request.Context(), channelID, userID, after, limit)
	} else {
		messages, err = h.messages.ListBefore(c.Request.Context(), channelID, userID, before, limit)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Search handles GET /api/communication/channels/:id/messages/search?q=term.
func (h *MessageHandler) Search(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	messages, err := h.messages.Search(c.Request.Context(), channelID, middleware.GetUserID(c), c.Query("q"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// ListPinned handles GET /api/communication/channels/:id/messages/pinned.
func (h *MessageHandler) ListPinned(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	messages, err := h.messages.ListPinned(c.Request.Context(), channelID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// UnreadCount handles GET /api/communication/channels/:id/unread-count.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	count, err := h.messages.UnreadCount(c.Request.Context(), channelID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// Edit handles PUT /api/communication/messages/:id.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathMessageID(c)
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), messageID, middleware.GetUserID(c), req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /api/communication/messages/:id.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathMessageID(c)
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), messageID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Pin handles POST /api/communication/messages/:id/pin.
func (h *MessageHandler) Pin(c *gin.Context) {
	messageID, ok := pathMessageID(c)
	if !ok {
		return
	}
	if err := h.messages.Pin(c.Request.Context(), messageID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": true})
}

// Unpin handles DELETE /api/communication/messages/:id/pin.
func (h *MessageHandler) Unpin(c *gin.Context) {
	messageID, ok := pathMessageID(c)
	if !ok {
		return
	}
	if err := h.messages.Unpin(c.Request.Context(), messageID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": false})
}

// ListReplies handles GET /api/communication/messages/:id/replies.
func (h *MessageHandler) ListReplies(c *gin.Context) {
	messageID, ok := pathMessageID(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	replies, err := h.messages.ListReplies(c.Request.Context(), messageID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

func pathMessageID(c *gin.Context) (int64, bool) {
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || messageID < 1 {
		badRequest(c, "invalid message ID")
		return 0, false
	}
	return messageID, true
}
