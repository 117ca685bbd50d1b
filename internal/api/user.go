package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/middleware"
	"github.com/cascadefinds/comms/internal/repository"
)

type UserHandler struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GetMe handles GET /api/users/me.
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := middleware.GetUserID(c)
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if user == nil {
		// Valid token for a user that no longer exists.
		c.JSON(http.StatusNotFound, gin.H{"error": true, "message": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}
