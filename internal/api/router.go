package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cascadefinds/comms/internal/middleware"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Channels      *ChannelHandler
	Messages      *MessageHandler
	Announcements *AnnouncementHandler
	Notifications *NotificationHandler

	// ServeWS is wired in from the realtime package so api does not
	// import it.
	ServeWS gin.HandlerFunc

	DB    HealthChecker
	Redis HealthChecker
}

// NewRouter builds the gin engine with the full route table.
func NewRouter(h Handlers, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Health is public so load balancers can probe it.
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus, redisStatus := "ok", "ok"
		if err := h.DB.Health(c.Request.Context()); err != nil {
			status, dbStatus = http.StatusServiceUnavailable, "unreachable"
		}
		if err := h.Redis.Health(c.Request.Context()); err != nil {
			status, redisStatus = http.StatusServiceUnavailable, "unreachable"
		}
		c.JSON(status, gin.H{"database": dbStatus, "redis": redisStatus})
	})

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/signup", h.Auth.Signup)
		authGroup.POST("/login", h.Auth.Login)
	}

	authed := r.Group("/api")
	authed.Use(middleware.AuthMiddleware(jwtSecret))

	authed.GET("/users/me", h.Users.GetMe)

	comm := authed.Group("/communication")

	channels := comm.Group("/channels")
	{
		channels.GET("", h.Channels.List)
		channels.POST("", h.Channels.Create)
		channels.GET("/public", h.Channels.ListPublic)
		channels.GET("/search", h.Channels.Search)
		channels.GET("/event/:eventID", h.Channels.ListByEvent)
		channels.GET("/shop/:shopID", h.Channels.ListByShop)

		channels.GET("/:id", h.Channels.Get)
		channels.PUT("/:id", h.Channels.Update)
		channels.DELETE("/:id", h.Channels.Delete)
		channels.POST("/:id/join", h.Channels.Join)
		channels.DELETE("/:id/leave", h.Channels.Leave)
		channels.GET("/:id/participants", h.Channels.Participants)
		channels.PUT("/:id/participants/:userID/role", h.Channels.SetParticipantRole)
		channels.POST("/:id/read", h.Channels.MarkRead)
		channels.GET("/:id/preferences", h.Channels.GetPreferences)
		channels.PUT("/:id/preferences", h.Channels.SetPreferences)
		channels.GET("/:id/unread-count", h.Messages.UnreadCount)

		channels.GET("/:id/messages", h.Messages.List)
		channels.POST("/:id/messages", h.Messages.Send)
		channels.GET("/:id/messages/search", h.Messages.Search)
		channels.GET("/:id/messages/pinned", h.Messages.ListPinned)
	}

	messages := comm.Group("/messages")
	{
		messages.PUT("/:id", h.Messages.Edit)
		messages.DELETE("/:id", h.Messages.Delete)
		messages.POST("/:id/pin", h.Messages.Pin)
		messages.DELETE("/:id/pin", h.Messages.Unpin)
		messages.GET("/:id/replies", h.Messages.ListReplies)
	}

	announcements := comm.Group("/announcements")
	{
		announcements.GET("", h.Announcements.List)
		announcements.POST("", h.Announcements.Create)
		announcements.GET("/:id/stats", h.Announcements.Stats)
	}

	notifications := comm.Group("/notifications")
	{
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.POST("/read-all", h.Notifications.MarkAllRead)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
		notifications.DELETE("/prune", middleware.RequireAdmin(), h.Notifications.Prune)
	}

	comm.GET("/ws", h.ServeWS)

	return r
}
