package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/repository/memory"
	"github.com/cascadefinds/comms/internal/service"
)

const testSecret = "test-secret"

type okChecker struct{}

func (okChecker) Health(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *memory.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memory.New()
	logger := zap.NewNop()

	channelSvc := service.NewChannelService(db.Channels(), db.Participants(), db.Messages(), db.Notifications(), logger)
	messageSvc := service.NewMessageService(db.Messages(), db.Channels(), db.Participants(), db.Notifications(), db.Users(), nil, logger)
	announcementSvc := service.NewAnnouncementService(messageSvc, db.Messages(), db.Channels(), db.Participants(), db.Notifications(), logger)
	commSvc := service.NewCommunicationService(channelSvc, db.Channels(), db.Notifications(), logger)

	router := NewRouter(Handlers{
		Auth:          NewAuthHandler(db.Users(), testSecret, logger),
		Users:         NewUserHandler(db.Users(), logger),
		Channels:      NewChannelHandler(channelSvc, commSvc, logger),
		Messages:      NewMessageHandler(messageSvc, logger),
		Announcements: NewAnnouncementHandler(announcementSvc, logger),
		Notifications: NewNotificationHandler(commSvc, logger),
		ServeWS:       func(c *gin.Context) { c.Status(http.StatusOK) },
		DB:            okChecker{},
		Redis:         okChecker{},
	}, testSecret)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// signup creates an account through the API and returns its token.
func signup(t *testing.T, router *gin.Engine, name string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":        name + "@example.com",
		"password":     "hunter2hunter2",
		"display_name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestSignupLoginRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)
	signup(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong password and unknown email produce the same answer.
	wrongPass := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	unknown := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "nobody@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	router, _ := newTestRouter(t)
	signup(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":        "alice@example.com",
		"password":     "hunter2hunter2",
		"display_name": "alice again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error": true, "message": "email already registered"}`, rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Error)
	assert.NotEmpty(t, envelope.Message)
}

func TestChannelMessageFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	alice := signup(t, router, "alice")
	bob := signup(t, router, "bob")

	created := doJSON(t, router, http.MethodPost, "/api/communication/channels", alice, gin.H{
		"name": "General",
		"type": "public",
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	var ch models.Channel
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &ch))
	assert.Equal(t, "general", ch.Slug)

	base := "/api/communication/channels/" + ch.ID.String()

	joined := doJSON(t, router, http.MethodPost, base+"/join", bob, nil)
	require.Equal(t, http.StatusOK, joined.Code)

	sent := doJSON(t, router, http.MethodPost, base+"/messages", bob, gin.H{
		"content": "hello",
	})
	require.Equal(t, http.StatusCreated, sent.Code, sent.Body.String())

	var msg models.Message
	require.NoError(t, json.Unmarshal(sent.Body.Bytes(), &msg))

	list := doJSON(t, router, http.MethodGet, base+"/messages", alice, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	// Alice was notified about bob's message.
	unread := doJSON(t, router, http.MethodGet, "/api/communication/notifications/unread-count", alice, nil)
	require.Equal(t, http.StatusOK, unread.Code)
	assert.JSONEq(t, `{"unread_count": 1}`, unread.Body.String())

	// Editing someone else's message maps Forbidden to 403 in the envelope.
	edit := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/communication/messages/%d", msg.ID), alice, gin.H{
		"content": "hijack",
	})
	assert.Equal(t, http.StatusForbidden, edit.Code)
	assert.Contains(t, edit.Body.String(), `"error":true`)
}

func TestPruneRequiresAdminRole(t *testing.T) {
	router, _ := newTestRouter(t)
	member := signup(t, router, "alice")

	rec := doJSON(t, router, http.MethodDelete, "/api/communication/notifications/prune", member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"database": "ok", "redis": "ok"}`, rec.Body.String())
}
