package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cascadefinds/comms/internal/models"
)

// Every method takes a context.Context: these are all I/O against Postgres,
// and the HTTP request's context flows down so a disconnected client
// cancels the query.
//
// Counter maintenance lives here, not in the services: participant_count,
// message_count and reply_count are updated with single-statement
// "SET n = n + 1" increments so concurrent writers cannot lose updates.
// Services decide WHEN a counter moves; the store guarantees HOW is atomic.

// ChannelRepository defines the contract for channel persistence.
type ChannelRepository interface {
	// Create inserts a new channel and returns it with ID and timestamps
	// populated.
	Create(ctx context.Context, ch *models.Channel) (*models.Channel, error)

	// GetByID returns a single channel. Returns nil, nil if not found.
	GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error)

	// GetBySlug returns a channel by its unique slug. Returns nil, nil if
	// not found.
	GetBySlug(ctx context.Context, slug string) (*models.Channel, error)

	// SlugExists is the cheap existence probe CreateChannel uses while
	// uniquifying a generated slug.
	SlugExists(ctx context.Context, slug string) (bool, error)

	// Update persists name, description, archived flag and updated_at.
	Update(ctx context.Context, ch *models.Channel) error

	// ListPublic returns non-archived public channels, most recently
	// active first.
	ListPublic(ctx context.Context, limit int) ([]models.Channel, error)

	// ListByEvent / ListByShop return the channels attached to an external
	// event or shop record.
	ListByEvent(ctx context.Context, eventID int64) ([]models.Channel, error)
	ListByShop(ctx context.Context, shopID int64) ([]models.Channel, error)

	// ListByType returns non-archived channels of one type.
	ListByType(ctx context.Context, typ models.ChannelType) ([]models.Channel, error)

	// ListForUser returns the channels a user participates in, each with
	// that user's unread message count. Empty slice, not nil.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChannelWithUnread, error)

	// Search matches channel names case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]models.Channel, error)

	// AddParticipantCount atomically adjusts participant_count by delta.
	AddParticipantCount(ctx context.Context, channelID uuid.UUID, delta int) error

	// AddMessageCount atomically adjusts message_count by delta. A positive
	// delta also records channel activity (last_activity_at = now()).
	AddMessageCount(ctx context.Context, channelID uuid.UUID, delta int) error
}

// ParticipantRepository handles channel membership rows.
type ParticipantRepository interface {
	// Add inserts a membership row. Reports false without error when the
	// (channel, user) pair already exists — ON CONFLICT DO NOTHING — so
	// join is idempotent and the caller knows whether to bump the counter.
	Add(ctx context.Context, p *models.Participant) (bool, error)

	// Remove deletes a membership row, reporting whether one existed.
	Remove(ctx context.Context, channelID, userID uuid.UUID) (bool, error)

	// Get returns one membership. Returns nil, nil if not found.
	Get(ctx context.Context, channelID, userID uuid.UUID) (*models.Participant, error)

	// IsParticipant is the hot-path check run before every message send.
	IsParticipant(ctx context.Context, channelID, userID uuid.UUID) (bool, error)

	// ListByChannel returns all memberships of a channel.
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Participant, error)

	// SetRole changes a member's channel role.
	SetRole(ctx context.Context, channelID, userID uuid.UUID, role models.ParticipantRole) error

	// SetPreference updates notification preference and mute state.
	SetPreference(ctx context.Context, channelID, userID uuid.UUID, pref models.NotificationPreference, muted bool) error

	// AdvanceLastRead moves the read cursor forward, never backward:
	// last_read_message_id = GREATEST(last_read_message_id, messageID).
	AdvanceLastRead(ctx context.Context, channelID, userID uuid.UUID, messageID int64) error

	// CountByChannel returns the live membership count.
	CountByChannel(ctx context.Context, channelID uuid.UUID) (int, error)
}

// MessageRepository handles message persistence. Pagination is cursor-based
// on the bigserial id — never offset — so concurrent inserts cannot shift a
// client's page window.
type MessageRepository interface {
	// Create persists a message and returns it with ID and CreatedAt
	// populated.
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)

	// GetByID returns a message, deleted or not. Returns nil, nil if the
	// row does not exist.
	GetByID(ctx context.Context, messageID int64) (*models.Message, error)

	// UpdateContent rewrites a message body and bumps updated_at.
	UpdateContent(ctx context.Context, messageID int64, content string) error

	// MarkDeleted soft-deletes: the row stays for audit, reads skip it.
	MarkDeleted(ctx context.Context, messageID int64) error

	// SetPinned sets or clears the pinned flag.
	SetPinned(ctx context.Context, messageID int64, pinned bool) error

	// AddReplyCount atomically adjusts a parent's reply_count by delta.
	AddReplyCount(ctx context.Context, parentID int64, delta int) error

	// ListBefore returns non-deleted messages with id < before (0 means
	// newest), newest first, up to limit.
	ListBefore(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error)

	// ListAfter returns non-deleted messages with id > after, oldest
	// first, up to limit.
	ListAfter(ctx context.Context, channelID uuid.UUID, after int64, limit int) ([]models.Message, error)

	// ListPinned returns the channel's pinned, non-deleted messages.
	ListPinned(ctx context.Context, channelID uuid.UUID) ([]models.Message, error)

	// ListReplies returns non-deleted replies to a parent, oldest first.
	ListReplies(ctx context.Context, parentID int64, limit int) ([]models.Message, error)

	// Search matches non-deleted message content case-insensitively,
	// newest first.
	Search(ctx context.Context, channelID uuid.UUID, query string, limit int) ([]models.Message, error)

	// MaxID returns the highest message id in a channel, 0 when empty.
	// Feeds the mark-as-read cursor.
	MaxID(ctx context.Context, channelID uuid.UUID) (int64, error)

	// CountAfter counts non-deleted messages with id > after — the unread
	// count for a participant's cursor.
	CountAfter(ctx context.Context, channelID uuid.UUID, after int64) (int, error)

	// ListAnnouncements returns non-deleted announcement messages across
	// the channels a user participates in, newest first.
	ListAnnouncements(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error)
}

// NotificationRepository handles per-user notification rows.
type NotificationRepository interface {
	// CreateBatch inserts one unread notification per recipient in a
	// single multi-row INSERT: all recipients get a row or none do.
	CreateBatch(ctx context.Context, channelID uuid.UUID, messageID int64, userIDs []uuid.UUID) error

	// ListByUser returns a user's notifications, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)

	// CountUnread returns the user's unread notification count.
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkRead marks one notification read, scoped to its owner. Reports
	// false when no matching row exists.
	MarkRead(ctx context.Context, notificationID int64, userID uuid.UUID) (bool, error)

	// MarkAllRead marks every notification of a user read.
	MarkAllRead(ctx context.Context, userID uuid.UUID) error

	// MarkChannelRead marks a user's notifications for one channel read —
	// ride-along of the mark-channel-as-read operation.
	MarkChannelRead(ctx context.Context, channelID, userID uuid.UUID) error

	// CountByMessage returns how many notifications a message produced.
	CountByMessage(ctx context.Context, messageID int64) (int, error)

	// DeleteOlderThan prunes notifications created before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository handles user data.
type UserRepository interface {
	// Create inserts a new user and returns it with ID and CreatedAt
	// populated.
	Create(ctx context.Context, email, displayName, passwordHash string, role models.Role) (*models.User, error)

	// GetByID returns a user. Returns nil, nil if not found.
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail looks a user up for login. Returns nil, nil if not found.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ListByIDs returns the users for a set of ids, in no particular
	// order. Used to resolve @-mentions against display names.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}
