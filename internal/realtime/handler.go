package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/middleware"
	"github.com/cascadefinds/comms/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth already gates the endpoint; cross-origin browser clients
	// are expected.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades authenticated clients to websockets and wires them into
// the hub.
type Handler struct {
	hub      *Hub
	channels *service.ChannelService
	logger   *zap.Logger
}

func NewHandler(hub *Hub, channels *service.ChannelService, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, channels: channels, logger: logger}
}

// ServeWS handles GET /api/communication/ws?channel={id}. The client is
// subscribed to the requested channel's events after an access check.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "authentication required"})
		return
	}

	channelID, err := uuid.Parse(c.Query("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "invalid channel id"})
		return
	}

	ch, err := h.channels.Get(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": true, "message": "channel not found"})
		return
	}
	ok, err := h.channels.CanAccess(c.Request.Context(), ch, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "internal server error"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": true, "message": "not a participant of this channel"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(userID, ws)
	h.hub.Attach(conn)
	h.hub.Join(channelID, conn)

	h.logger.Debug("websocket attached",
		zap.String("user_id", userID.String()),
		zap.String("channel_id", channelID.String()),
	)

	// The read loop only drains control frames and detects disconnect;
	// clients never send data frames on this socket.
	go func() {
		defer func() {
			h.hub.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "client disconnected")
		}()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
