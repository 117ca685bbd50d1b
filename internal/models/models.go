package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's platform-wide role. Channel-level roles are a separate
// concept (see ParticipantRole) — a platform admin is not automatically a
// channel admin, they are granted that role when they join.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleSeller    Role = "seller"
	RoleMember    Role = "member"
)

// Privileged reports whether this platform role is granted channel-admin
// rights when auto-joined to the global channels.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleModerator
}

// Valid reports whether the role is one of the closed set of values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleSeller, RoleMember:
		return true
	}
	return false
}

// User is a person on the platform.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChannelType restricts what a channel is for and who may post in it.
// Announcement channels only accept messages from channel admins.
type ChannelType string

const (
	ChannelPublic       ChannelType = "public"
	ChannelPrivate      ChannelType = "private"
	ChannelEvent        ChannelType = "event"
	ChannelVendor       ChannelType = "vendor"
	ChannelAnnouncement ChannelType = "announcement"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelPublic, ChannelPrivate, ChannelEvent, ChannelVendor, ChannelAnnouncement:
		return true
	}
	return false
}

// Channel is a named conversation space. ParticipantCount and MessageCount
// are denormalized caches maintained by atomic increments at the storage
// layer; MessageCount counts non-deleted messages only.
//
// Channels are never hard-deleted — Archived is set instead, so message
// history stays readable for audit.
type Channel struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	Slug             string      `json:"slug"`
	Description      string      `json:"description,omitempty"`
	Type             ChannelType `json:"type"`
	CreatedBy        uuid.UUID   `json:"created_by"`
	EventID          *int64      `json:"event_id,omitempty"`
	ShopID           *int64      `json:"shop_id,omitempty"`
	Archived         bool        `json:"archived"`
	ParticipantCount int         `json:"participant_count"`
	MessageCount     int         `json:"message_count"`
	LastActivityAt   *time.Time  `json:"last_activity_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// ParticipantRole is a user's role within one channel.
type ParticipantRole string

const (
	ParticipantAdmin  ParticipantRole = "admin"
	ParticipantMember ParticipantRole = "member"
)

func (r ParticipantRole) Valid() bool {
	return r == ParticipantAdmin || r == ParticipantMember
}

// NotificationPreference controls fan-out when messages land in a channel.
//
//	all      — notified of every message
//	mentions — notified only when @-mentioned by display name
//	none     — never notified
type NotificationPreference string

const (
	NotifyAll      NotificationPreference = "all"
	NotifyMentions NotificationPreference = "mentions"
	NotifyNone     NotificationPreference = "none"
)

func (p NotificationPreference) Valid() bool {
	return p == NotifyAll || p == NotifyMentions || p == NotifyNone
}

// Participant is one user's membership in one channel. The pair
// (ChannelID, UserID) is the table's primary key, so a duplicate join is
// rejected by the constraint itself, not by a racy pre-check.
//
// LastReadMessageID is a monotonic read cursor: 0 means nothing read, and
// it only ever advances.
type Participant struct {
	ChannelID         uuid.UUID              `json:"channel_id"`
	UserID            uuid.UUID              `json:"user_id"`
	Role              ParticipantRole        `json:"role"`
	LastReadMessageID int64                  `json:"last_read_message_id"`
	Preference        NotificationPreference `json:"notification_preference"`
	Muted             bool                   `json:"muted"`
	JoinedAt          time.Time              `json:"joined_at"`
}

// ShouldNotify reports whether this participant receives a notification for
// a new message. mentioned is whether the message @-mentions them.
func (p Participant) ShouldNotify(mentioned bool) bool {
	if p.Muted {
		return false
	}
	switch p.Preference {
	case NotifyAll:
		return true
	case NotifyMentions:
		return mentioned
	default:
		return false
	}
}

// MessageType restricts messages to the three enumerated kinds.
type MessageType string

const (
	MessageText         MessageType = "text"
	MessageSystem       MessageType = "system"
	MessageAnnouncement MessageType = "announcement"
)

func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageSystem || t == MessageAnnouncement
}

// Message is a single post in a channel.
//
// IDs are bigserial, not UUIDs: messages are the highest-volume table and
// the monotonically increasing id doubles as the pagination cursor and the
// participants' read cursor.
//
// Deleted messages are soft-deleted: excluded from normal reads, retained
// for audit. ReplyCount counts non-deleted children only.
type Message struct {
	ID              int64       `json:"id"`
	ChannelID       uuid.UUID   `json:"channel_id"`
	SenderID        uuid.UUID   `json:"sender_id"`
	Content         string      `json:"content"`
	Type            MessageType `json:"type"`
	ParentMessageID *int64      `json:"parent_message_id,omitempty"`
	Pinned          bool        `json:"pinned"`
	ReplyCount      int         `json:"reply_count"`
	ReactionCount   int         `json:"reaction_count"`
	Deleted         bool        `json:"deleted"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Notification is a per-user pointer to a message needing attention. It
// references channel and message by id only and is independently prunable
// after the retention window.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	ChannelID uuid.UUID  `json:"channel_id"`
	MessageID int64      `json:"message_id"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ChannelWithUnread decorates a channel with the caller's unread message
// count for channel-list responses.
type ChannelWithUnread struct {
	Channel
	UnreadCount int `json:"unread_count"`
}

// AnnouncementStats describes how far an announcement reached.
// ReadCount counts participants whose read cursor has passed the message.
type AnnouncementStats struct {
	MessageID      int64     `json:"message_id"`
	ChannelID      uuid.UUID `json:"channel_id"`
	ChannelName    string    `json:"channel_name"`
	TotalReach     int       `json:"total_reach"`
	NotifiedCount  int       `json:"notified_count"`
	ReadCount      int       `json:"read_count"`
	ReadPercentage float64   `json:"read_percentage"`
	CreatedAt      time.Time `json:"created_at"`
}
