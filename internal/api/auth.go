package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/auth"
	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/repository"
)

const tokenTTL = 24 * time.Hour

// AuthHandler handles signup and login, the only public endpoints. They
// sit outside AuthMiddleware because they are what produces the JWT.
type AuthHandler struct {
	users     repository.UserRepository
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(users repository.UserRepository, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, logger: logger}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup. New accounts always get the member
// role; admin and moderator accounts are provisioned out of band.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	existing, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("signup lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "signup failed"})
		return
	}
	if existing != nil {
		respondError(c, h.logger, apperr.Conflict("email already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("password hash failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "signup failed"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Email, req.DisplayName, string(hash), models.RoleMember)
	if err != nil {
		h.logger.Error("user create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "signup failed"})
		return
	}

	token, err := auth.GenerateToken(user, h.jwtSecret, tokenTTL)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "signup failed"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("login lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "login failed"})
		return
	}

	// One generic message for unknown email and wrong password, so the
	// endpoint cannot be used to enumerate registered addresses.
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true, "message": "invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user, h.jwtSecret, tokenTTL)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "login failed"})
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}
