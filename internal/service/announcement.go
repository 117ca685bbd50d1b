package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/repository"
)

// AnnouncementService layers broadcast-style messages on MessageService:
// admin-gated creation, auto-pinning, and delivery statistics.
type AnnouncementService struct {
	messages      *MessageService
	messageRepo   repository.MessageRepository
	channels      repository.ChannelRepository
	participants  repository.ParticipantRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

func NewAnnouncementService(
	messages *MessageService,
	messageRepo repository.MessageRepository,
	channels repository.ChannelRepository,
	participants repository.ParticipantRepository,
	notifications repository.NotificationRepository,
	logger *zap.Logger,
) *AnnouncementService {
	return &AnnouncementService{
		messages:      messages,
		messageRepo:   messageRepo,
		channels:      channels,
		participants:  participants,
		notifications: notifications,
		logger:        logger,
	}
}

// Create sends an announcement into a channel. The sender must hold the
// channel admin role. A non-empty title is folded into the content as a
// bold header. Announcements are auto-pinned.
func (s *AnnouncementService) Create(ctx context.Context, channelID, senderID uuid.UUID, title, content string) (*models.Message, error) {
	p, err := s.participants.Get(ctx, channelID, senderID)
	if err != nil {
		return nil, apperr.Internal("failed to check permissions", err)
	}
	if p == nil || p.Role != models.ParticipantAdmin {
		return nil, apperr.Forbidden("only channel admins may create announcements")
	}

	if title != "" {
		content = fmt.Sprintf("**%s**\n\n%s", title, content)
	}

	msg, err := s.messages.Send(ctx, SendMessageInput{
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		Type:      models.MessageAnnouncement,
	})
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.SetPinned(ctx, msg.ID, true); err != nil {
		// The announcement went out; losing the pin is not worth failing
		// the request over.
		s.logger.Warn("failed to pin announcement",
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	} else {
		msg.Pinned = true
	}

	s.logger.Info("announcement created",
		zap.Int64("message_id", msg.ID),
		zap.String("channel_id", channelID.String()),
	)
	return msg, nil
}

// Stats reports an announcement's reach: total participants, how many
// notifications went out, and how many participants' read cursors have
// passed the message.
func (s *AnnouncementService) Stats(ctx context.Context, messageID int64) (*models.AnnouncementStats, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("failed to load message", err)
	}
	if msg == nil || msg.Deleted || msg.Type != models.MessageAnnouncement {
		return nil, apperr.NotFound("announcement not found")
	}

	ch, err := s.channels.GetByID(ctx, msg.ChannelID)
	if err != nil {
		return nil, apperr.Internal("failed to load channel", err)
	}
	if ch == nil {
		return nil, apperr.NotFound("channel not found")
	}

	participants, err := s.participants.ListByChannel(ctx, msg.ChannelID)
	if err != nil {
		return nil, apperr.Internal("failed to list participants", err)
	}

	notified, err := s.notifications.CountByMessage(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("failed to count notifications", err)
	}

	readCount := 0
	for _, p := range participants {
		if p.LastReadMessageID >= msg.ID {
			readCount++
		}
	}

	stats := &models.AnnouncementStats{
		MessageID:     msg.ID,
		ChannelID:     ch.ID,
		ChannelName:   ch.Name,
		TotalReach:    len(participants),
		NotifiedCount: notified,
		ReadCount:     readCount,
		CreatedAt:     msg.CreatedAt,
	}
	if len(participants) > 0 {
		pct := float64(readCount) / float64(len(participants)) * 100
		stats.ReadPercentage = math.Round(pct*100) / 100
	}
	return stats, nil
}

// ListForUser returns recent announcements across the channels the user
// participates in, newest first.
func (s *AnnouncementService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	msgs, err := s.messageRepo.ListAnnouncements(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to list announcements", err)
	}
	return msgs, nil
}
