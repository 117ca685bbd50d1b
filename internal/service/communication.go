package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/repository"
)

// Slugs of the two global channels every user belongs to. They are created
// by the seed migration; the facade treats their absence as a deployment
// configuration error, not a runtime condition to recover from.
const (
	SupportChannelSlug = "support"
	TipsChannelSlug    = "tips-tricks"
)

// DefaultNotificationRetention is how long notification rows are kept
// before pruning.
const DefaultNotificationRetention = 30 * 24 * time.Hour

// CommunicationService is the application facade the API layer talks to
// for cross-service flows: the global-channel membership guarantee,
// channel lists with unread counts, and notification management.
type CommunicationService struct {
	channelSvc    *ChannelService
	channels      repository.ChannelRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

func NewCommunicationService(
	channelSvc *ChannelService,
	channels repository.ChannelRepository,
	notifications repository.NotificationRepository,
	logger *zap.Logger,
) *CommunicationService {
	return &CommunicationService{
		channelSvc:    channelSvc,
		channels:      channels,
		notifications: notifications,
		logger:        logger,
	}
}

// EnsureGlobalChannels joins the user to both global channels if they are
// not already members. Privileged platform roles join as channel admins,
// everyone else as members. Joining is idempotent, so calling this on
// every channel-list request is safe.
func (s *CommunicationService) EnsureGlobalChannels(ctx context.Context, userID uuid.UUID, role models.Role) error {
	for _, slug := range []string{SupportChannelSlug, TipsChannelSlug} {
		ch, err := s.channels.GetBySlug(ctx, slug)
		if err != nil {
			return apperr.Internal("failed to load global channel", err)
		}
		if ch == nil {
			return apperr.Configuration(fmt.Sprintf("global channel %q is missing; seed data not installed", slug))
		}

		participantRole := models.ParticipantMember
		if role.Privileged() {
			participantRole = models.ParticipantAdmin
		}
		if _, err := s.channelSvc.AddParticipant(ctx, ch.ID, userID, participantRole); err != nil {
			return err
		}
	}
	return nil
}

// ListUserChannels guarantees global-channel membership, then returns the
// user's channels with unread counts, most recently active first.
func (s *CommunicationService) ListUserChannels(ctx context.Context, userID uuid.UUID, role models.Role) ([]models.ChannelWithUnread, error) {
	if err := s.EnsureGlobalChannels(ctx, userID, role); err != nil {
		return nil, err
	}
	chs, err := s.channels.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list channels", err)
	}
	return chs, nil
}

func (s *CommunicationService) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	ns, err := s.notifications.ListByUser(ctx, userID, unreadOnly, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to list notifications", err)
	}
	return ns, nil
}

func (s *CommunicationService) UnreadNotificationCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count notifications", err)
	}
	return count, nil
}

func (s *CommunicationService) MarkNotificationRead(ctx context.Context, notificationID int64, userID uuid.UUID) error {
	ok, err := s.notifications.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return apperr.Internal("failed to mark notification read", err)
	}
	if !ok {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (s *CommunicationService) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		return apperr.Internal("failed to mark notifications read", err)
	}
	return nil
}

// PruneNotifications deletes notifications older than the retention
// window. Exposed as an admin endpoint rather than an in-process timer —
// this domain has no background scheduler.
func (s *CommunicationService) PruneNotifications(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultNotificationRetention
	}
	cutoff := time.Now().Add(-retention)
	removed, err := s.notifications.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperr.Internal("failed to prune notifications", err)
	}
	s.logger.Info("notifications pruned",
		zap.Int64("removed", removed),
		zap.Time("cutoff", cutoff),
	)
	return removed, nil
}
