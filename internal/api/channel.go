package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/middleware"
	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/service"
)

// ChannelHandler serves channel lifecycle, membership and read-state routes.
// Listing goes through the communication facade so every caller is
// auto-joined to the global channels first.
type ChannelHandler struct {
	channels *service.ChannelService
	comms    *service.CommunicationService
	logger   *zap.Logger
}

func NewChannelHandler(channels *service.ChannelService, comms *service.CommunicationService, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, comms: comms, logger: logger}
}

type createChannelRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type"`
	EventID     *int64 `json:"event_id"`
	ShopID      *int64 `json:"shop_id"`
}

type updateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// List handles GET /api/communication/channels — the caller's channels,
// each with their unread message count.
func (h *ChannelHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	channels, err := h.comms.ListUserChannels(c.Request.Context(), userID, role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// Create handles POST /api/communication/channels.
func (h *ChannelHandler) Create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ch, err := h.channels.Create(c.Request.Context(), service.CreateChannelInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        models.ChannelType(req.Type),
		CreatedBy:   middleware.GetUserID(c),
		EventID:     req.EventID,
		ShopID:      req.ShopID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// Get handles GET /api/communication/channels/:id. A slug works in place
// of the UUID, matching how channel links are shared.
func (h *ChannelHandler) Get(c *gin.Context) {
	raw := c.Param("id")
	var (
		ch  *models.Channel
		err error
	)
	if channelID, parseErr := uuid.Parse(raw); parseErr == nil {
		ch, err = h.channels.Get(c.Request.Context(), channelID)
	} else {
		ch, err = h.channels.GetBySlug(c.Request.Context(), raw)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Update handles PUT /api/communication/channels/:id.
func (h *ChannelHandler) Update(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	var req updateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ch, err := h.channels.Update(c.Request.Context(), channelID, middleware.GetUserID(c), service.UpdateChannelInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Delete handles DELETE /api/communication/channels/:id. Channels are
// archived, never hard-deleted, so history stays readable.
func (h *ChannelHandler) Delete(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	if err := h.channels.Archive(c.Request.Context(), channelID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": true})
}

// Join handles POST /api/communication/channels/:id/join. Joining twice is
// a no-op that returns the existing membership.
func (h *ChannelHandler) Join(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	p, err := h.channels.AddParticipant(c.Request.Context(), channelID, middleware.GetUserID(c), models.ParticipantMember)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Leave handles DELETE /api/communication/channels/:id/leave.
func (h *ChannelHandler) Leave(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	if err := h.channels.RemoveParticipant(c.Request.Context(), channelID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

// Participants handles GET /api/communication/channels/:id/participants.
func (h *ChannelHandler) Participants(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	participants, err := h.channels.ListParticipants(c.Request.Context(), channelID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, participants)
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SetParticipantRole handles PUT /api/communication/channels/:id/participants/:userID/role.
func (h *ChannelHandler) SetParticipantRole(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		badRequest(c, "invalid user ID")
		return
	}
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	err = h.channels.SetParticipantRole(c.Request.Context(), channelID, middleware.GetUserID(c), userID, models.ParticipantRole(req.Role))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// MarkRead handles POST /api/communication/channels/:id/read — advances the
// caller's read cursor to the channel's newest message.
func (h *ChannelHandler) MarkRead(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	if err := h.channels.MarkRead(c.Request.Context(), channelID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// GetPreferences handles GET /api/communication/channels/:id/preferences.
func (h *ChannelHandler) GetPreferences(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	p, err := h.channels.GetParticipant(c.Request.Context(), channelID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notification_preference": p.Preference,
		"muted":                   p.Muted,
	})
}

type preferencesRequest struct {
	NotificationPreference string `json:"notification_preference" binding:"required"`
	Muted                  bool   `json:"muted"`
}

// SetPreferences handles PUT /api/communication/channels/:id/preferences.
func (h *ChannelHandler) SetPreferences(c *gin.Context) {
	channelID, ok := pathChannelID(c)
	if !ok {
		return
	}
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	err := h.channels.SetPreference(c.Request.Context(), channelID, middleware.GetUserID(c),
		models.NotificationPreference(req.NotificationPreference), req.Muted)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// ListPublic handles GET /api/communication/channels/public.
func (h *ChannelHandler) ListPublic(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	channels, err := h.channels.ListPublic(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// Search handles GET /api/communication/channels/search?q=term.
func (h *ChannelHandler) Search(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	channels, err := h.channels.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// ListByEvent handles GET /api/communication/channels/event/:eventID.
func (h *ChannelHandler) ListByEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("eventID"), 10, 64)
	if err != nil {
		badRequest(c, "invalid event ID")
		return
	}
	channels, err := h.channels.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// ListByShop handles GET /api/communication/channels/shop/:shopID.
func (h *ChannelHandler) ListByShop(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Param("shopID"), 10, 64)
	if err != nil {
		badRequest(c, "invalid shop ID")
		return
	}
	channels, err := h.channels.ListByShop(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// pathChannelID parses the :id path parameter, writing the 400 itself when
// the value is not a UUID.
func pathChannelID(c *gin.Context) (uuid.UUID, bool) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid channel ID")
		return uuid.Nil, false
	}
	return channelID, true
}
