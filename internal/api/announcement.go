package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/middleware"
	"github.com/cascadefinds/comms/internal/service"
)

type AnnouncementHandler struct {
	announcements *service.AnnouncementService
	logger        *zap.Logger
}

func NewAnnouncementHandler(announcements *service.AnnouncementService, logger *zap.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements, logger: logger}
}

type createAnnouncementRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	Title     string `json:"title"`
	Content   string `json:"content" binding:"required"`
}

// List handles GET /api/communication/announcements — announcements across
// the caller's channels, newest first.
func (h *AnnouncementHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	announcements, err := h.announcements.ListForUser(c.Request.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, announcements)
}

// Create handles POST /api/communication/announcements. Only channel admins
// may post; the message is auto-pinned.
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req createAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		badRequest(c, "invalid channel ID")
		return
	}

	msg, err := h.announcements.Create(c.Request.Context(), channelID, middleware.GetUserID(c), req.Title, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Stats handles GET /api/communication/announcements/:id/stats.
func (h *AnnouncementHandler) Stats(c *gin.Context) {
	messageID, ok := pathMessageID(c)
	if !ok {
		return
	}
	stats, err := h.announcements.Stats(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
