package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/middleware"
	"github.com/cascadefinds/comms/internal/service"
)

type NotificationHandler struct {
	comms  *service.CommunicationService
	logger *zap.Logger
}

func NewNotificationHandler(comms *service.CommunicationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{comms: comms, logger: logger}
}

// List handles GET /api/communication/notifications?unread_only=true.
func (h *NotificationHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	unreadOnly := c.Query("unread_only") == "true"

	notifications, err := h.comms.ListNotifications(c.Request.Context(), middleware.GetUserID(c), unreadOnly, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// UnreadCount handles GET /api/communication/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.comms.UnreadNotificationCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead handles POST /api/communication/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || notificationID < 1 {
		badRequest(c, "invalid notification ID")
		return
	}
	if err := h.comms.MarkNotificationRead(c.Request.Context(), notificationID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// MarkAllRead handles POST /api/communication/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.comms.MarkAllNotificationsRead(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// Prune handles DELETE /api/communication/notifications/prune. Admin only;
// registered behind RequireAdmin. ?days overrides the 30-day default.
func (h *NotificationHandler) Prune(c *gin.Context) {
	retention := service.DefaultNotificationRetention
	if days, ok := queryInt64(c, "days", 0); !ok || days < 0 {
		badRequest(c, "invalid 'days' parameter")
		return
	} else if days > 0 {
		retention = time.Duration(days) * 24 * time.Hour
	}

	removed, err := h.comms.PruneNotifications(c.Request.Context(), retention)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
