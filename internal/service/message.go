package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/repository"
)

// EventPublisher pushes message events to connected clients. Publishing is
// best-effort: a failed publish is logged and never fails the send.
type EventPublisher interface {
	PublishMessage(ctx context.Context, msg *models.Message) error
}

// NopPublisher satisfies EventPublisher when realtime delivery is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, *models.Message) error { return nil }

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// MessageService owns message lifecycle, search, counter maintenance, and
// notification fan-out.
type MessageService struct {
	messages      repository.MessageRepository
	channels      repository.ChannelRepository
	participants  repository.ParticipantRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
	publisher     EventPublisher
	logger        *zap.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	channels repository.ChannelRepository,
	participants repository.ParticipantRepository,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *MessageService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &MessageService{
		messages:      messages,
		channels:      channels,
		participants:  participants,
		notifications: notifications,
		users:         users,
		publisher:     publisher,
		logger:        logger,
	}
}

type SendMessageInput struct {
	ChannelID       uuid.UUID
	SenderID        uuid.UUID
	Content         string
	Type            models.MessageType
	ParentMessageID *int64
}

// Send validates the sender's membership, persists the message, maintains
// the denormalized counters, and fans notifications out to the other
// participants.
//
// The message insert and each counter bump are single atomic statements;
// the fan-out batch is one statement too. Fan-out failure after the
// message is persisted is logged, not returned — notification delivery is
// best-effort, message persistence is not.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("message content is required")
	}
	if in.Type == "" {
		in.Type = models.MessageText
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("invalid message type")
	}

	ch, err := s.channels.GetByID(ctx, in.ChannelID)
	if err != nil {
		return nil, apperr.Internal("failed to load channel", err)
	}
	if ch == nil {
		return nil, apperr.NotFound("channel not found")
	}
	if ch.Archived {
		return nil, apperr.Forbidden("channel is archived")
	}

	sender, err := s.participants.Get(ctx, in.ChannelID, in.SenderID)
	if err != nil {
		return nil, apperr.Internal("failed to check membership", err)
	}
	if sender == nil {
		return nil, apperr.Forbidden("sender is not a participant of this channel")
	}

	// Announcement channels are broadcast-only: members read, admins post.
	if ch.Type == models.ChannelAnnouncement && sender.Role != models.ParticipantAdmin {
		return nil, apperr.Forbidden("only channel admins may post in announcement channels")
	}

	if in.ParentMessageID != nil {
		parent, err := s.messages.GetByID(ctx, *in.ParentMessageID)
		if err != nil {
			return nil, apperr.Internal("failed to load parent message", err)
		}
		if parent == nil || parent.Deleted {
			return nil, apperr.NotFound("parent message not found")
		}
		if parent.ChannelID != in.ChannelID {
			return nil, apperr.Validation("parent message belongs to another channel")
		}
	}

	msg, err := s.messages.Create(ctx, &models.Message{
		ChannelID:       in.ChannelID,
		SenderID:        in.SenderID,
		Content:         in.Content,
		Type:            in.Type,
		ParentMessageID: in.ParentMessageID,
	})
	if err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}

	if err := s.channels.AddMessageCount(ctx, in.ChannelID, 1); err != nil {
		return nil, apperr.Internal("failed to update channel counters", err)
	}
	if in.ParentMessageID != nil {
		if err := s.messages.AddReplyCount(ctx, *in.ParentMessageID, 1); err != nil {
			return nil, apperr.Internal("failed to update reply count", err)
		}
	}

	if err := s.fanOut(ctx, msg); err != nil {
		s.logger.Error("notification fan-out failed",
			zap.Int64("message_id", msg.ID),
			zap.String("channel_id", msg.ChannelID.String()),
			zap.Error(err),
		)
	}

	if err := s.publisher.PublishMessage(ctx, msg); err != nil {
		s.logger.Warn("realtime publish failed",
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	}

	return msg, nil
}

// fanOut creates one unread notification per eligible recipient: every
// participant except the sender whose preference admits the message and
// who is not muted. The batch goes in as a single insert — all recipients
// or none.
func (s *MessageService) fanOut(ctx context.Context, msg *models.Message) error {
	participants, err := s.participants.ListByChannel(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	if len(participants) <= 1 {
		return nil
	}

	mentioned, err := s.mentionedUserIDs(ctx, msg.Content, participants)
	if err != nil {
		return err
	}

	recipients := make([]uuid.UUID, 0, len(participants)-1)
	for _, p := range participants {
		if p.UserID == msg.SenderID {
			continue
		}
		if p.ShouldNotify(mentioned[p.UserID]) {
			recipients = append(recipients, p.UserID)
		}
	}

	return s.notifications.CreateBatch(ctx, msg.ChannelID, msg.ID, recipients)
}

// mentionedUserIDs resolves @tokens in the content against participant
// display names (case-insensitive, spaces ignored, so "@JaneDoe" reaches
// "Jane Doe"). Only consulted for participants with the mentions
// preference, but computed once per message.
func (s *MessageService) mentionedUserIDs(ctx context.Context, content string, participants []models.Participant) (map[uuid.UUID]bool, error) {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	tokens := make(map[string]bool, len(matches))
	for _, m := range matches {
		tokens[strings.ToLower(m[1])] = true
	}

	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	mentioned := make(map[uuid.UUID]bool)
	for _, u := range users {
		name := strings.ToLower(strings.ReplaceAll(u.DisplayName, " ", ""))
		if tokens[name] {
			mentioned[u.ID] = true
		}
	}
	return mentioned, nil
}

// Edit rewrites a message. Only the original sender may edit.
func (s *MessageService) Edit(ctx context.Context, messageID int64, userID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("message content is required")
	}

	msg, err := s.getLive(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, apperr.Forbidden("only the sender may edit a message")
	}

	if err := s.messages.UpdateContent(ctx, messageID, content); err != nil {
		return nil, apperr.Internal("failed to edit message", err)
	}
	msg.Content = content
	return msg, nil
}

// Delete soft-deletes a message. Permitted for the sender and for channel
// admins. The channel counter and, for replies, the parent's reply_count
// are decremented; replies to the deleted message are untouched.
func (s *MessageService) Delete(ctx context.Context, messageID int64, userID uuid.UUID) error {
	msg, err := s.getLive(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.SenderID != userID {
		p, err := s.participants.Get(ctx, msg.ChannelID, userID)
		if err != nil {
			return apperr.Internal("failed to check permissions", err)
		}
		if p == nil || p.Role != models.ParticipantAdmin {
			return apperr.Forbidden("only the sender or a channel admin may delete a message")
		}
	}

	if err := s.messages.MarkDeleted(ctx, messageID); err != nil {
		return apperr.Internal("failed to delete message", err)
	}
	if err := s.channels.AddMessageCount(ctx, msg.ChannelID, -1); err != nil {
		return apperr.Internal("failed to update channel counters", err)
	}
	if msg.ParentMessageID != nil {
		if err := s.messages.AddReplyCount(ctx, *msg.ParentMessageID, -1); err != nil {
			return apperr.Internal("failed to update reply count", err)
		}
	}
	return nil
}

// Pin and Unpin are channel-admin operations; no counter changes.

func (s *MessageService) Pin(ctx context.Context, messageID int64, userID uuid.UUID) error {
	return s.setPinned(ctx, messageID, userID, true)
}

func (s *MessageService) Unpin(ctx context.Context, messageID int64, userID uuid.UUID) error {
	return s.setPinned(ctx, messageID, userID, false)
}

func (s *MessageService) setPinned(ctx context.Context, messageID int64, userID uuid.UUID, pinned bool) error {
	msg, err := s.getLive(ctx, messageID)
	if err != nil {
		return err
	}

	p, err := s.participants.Get(ctx, msg.ChannelID, userID)
	if err != nil {
		return apperr.Internal("failed to check permissions", err)
	}
	if p == nil || p.Role != models.ParticipantAdmin {
		return apperr.Forbidden("only channel admins may pin messages")
	}

	if err := s.messages.SetPinned(ctx, messageID, pinned); err != nil {
		return apperr.Internal("failed to pin message", err)
	}
	return nil
}

func (s *MessageService) Get(ctx context.Context, messageID int64) (*models.Message, error) {
	return s.getLive(ctx, messageID)
}

// ListBefore pages backward through a channel's history. before=0 starts
// from the newest message.
func (s *MessageService) ListBefore(ctx context.Context, channelID, userID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	if err := s.requireAccess(ctx, channelID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListBefore(ctx, channelID, before, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	return msgs, nil
}

// ListAfter pages forward from a cursor — the catch-up direction.
func (s *MessageService) ListAfter(ctx context.Context, channelID, userID uuid.UUID, after int64, limit int) ([]models.Message, error) {
	if err := s.requireAccess(ctx, channelID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListAfter(ctx, channelID, after, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	return msgs, nil
}

func (s *MessageService) ListPinned(ctx context.Context, channelID, userID uuid.UUID) ([]models.Message, error) {
	if err := s.requireAccess(ctx, channelID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListPinned(ctx, channelID)
	if err != nil {
		return nil, apperr.Internal("failed to list pinned messages", err)
	}
	return msgs, nil
}

func (s *MessageService) ListReplies(ctx context.Context, messageID int64, limit int) ([]models.Message, error) {
	if _, err := s.getLive(ctx, messageID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListReplies(ctx, messageID, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to list replies", err)
	}
	return msgs, nil
}

// Search matches non-deleted message content case-insensitively, newest
// first, bounded by limit.
func (s *MessageService) Search(ctx context.Context, channelID, userID uuid.UUID, query string, limit int) ([]models.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation("search query is required")
	}
	if err := s.requireAccess(ctx, channelID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.Search(ctx, channelID, query, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to search messages", err)
	}
	return msgs, nil
}

// UnreadCount counts messages past the participant's read cursor. Zero for
// non-participants.
func (s *MessageService) UnreadCount(ctx context.Context, channelID, userID uuid.UUID) (int, error) {
	p, err := s.participants.Get(ctx, channelID, userID)
	if err != nil {
		return 0, apperr.Internal("failed to load participant", err)
	}
	if p == nil {
		return 0, nil
	}
	count, err := s.messages.CountAfter(ctx, channelID, p.LastReadMessageID)
	if err != nil {
		return 0, apperr.Internal("failed to count unread", err)
	}
	return count, nil
}

// getLive returns a message that exists and is not soft-deleted.
func (s *MessageService) getLive(ctx context.Context, messageID int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("failed to load message", err)
	}
	if msg == nil || msg.Deleted {
		return nil, apperr.NotFound("message not found")
	}
	return msg, nil
}

// requireAccess mirrors ChannelService.CanAccess: public channels are
// readable by anyone, everything else needs membership.
func (s *MessageService) requireAccess(ctx context.Context, channelID, userID uuid.UUID) error {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return apperr.Internal("failed to load channel", err)
	}
	if ch == nil {
		return apperr.NotFound("channel not found")
	}
	if ch.Type == models.ChannelPublic {
		return nil
	}
	ok, err := s.participants.IsParticipant(ctx, channelID, userID)
	if err != nil {
		return apperr.Internal("failed to check access", err)
	}
	if !ok {
		return apperr.Forbidden("not a participant of this channel")
	}
	return nil
}
