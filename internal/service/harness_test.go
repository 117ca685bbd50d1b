package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/repository/memory"
)

// env wires the services against the in-memory stores.
type env struct {
	db            *memory.DB
	channels      *ChannelService
	messages      *MessageService
	announcements *AnnouncementService
	comms         *CommunicationService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := memory.New()
	logger := zap.NewNop()

	channelSvc := NewChannelService(db.Channels(), db.Participants(), db.Messages(), db.Notifications(), logger)
	messageSvc := NewMessageService(db.Messages(), db.Channels(), db.Participants(), db.Notifications(), db.Users(), nil, logger)
	announcementSvc := NewAnnouncementService(messageSvc, db.Messages(), db.Channels(), db.Participants(), db.Notifications(), logger)
	commSvc := NewCommunicationService(channelSvc, db.Channels(), db.Notifications(), logger)

	return &env{
		db:            db,
		channels:      channelSvc,
		messages:      messageSvc,
		announcements: announcementSvc,
		comms:         commSvc,
	}
}

func (e *env) user(t *testing.T, displayName string, role models.Role) models.User {
	t.Helper()
	return e.db.AddUser(models.User{
		Email:       displayName + "@example.com",
		DisplayName: displayName,
		Role:        role,
	})
}

// channel creates a channel owned by creator, who is auto-joined as admin.
func (e *env) channel(t *testing.T, creator uuid.UUID, name string, typ models.ChannelType) *models.Channel {
	t.Helper()
	ch, err := e.channels.Create(context.Background(), CreateChannelInput{
		Name:      name,
		Type:      typ,
		CreatedBy: creator,
	})
	require.NoError(t, err)
	return ch
}

// join adds a member participant.
func (e *env) join(t *testing.T, channelID, userID uuid.UUID) {
	t.Helper()
	_, err := e.channels.AddParticipant(context.Background(), channelID, userID, models.ParticipantMember)
	require.NoError(t, err)
}

// send posts a text message and fails the test on error.
func (e *env) send(t *testing.T, channelID, senderID uuid.UUID, content string) *models.Message {
	t.Helper()
	msg, err := e.messages.Send(context.Background(), SendMessageInput{
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
	})
	require.NoError(t, err)
	return msg
}
