// Package memory holds in-memory implementations of the repository
// interfaces for tests. Semantics mirror the Postgres stores: idempotent
// participant inserts, soft-deleted messages excluded from reads, counter
// adjustments applied under one lock.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cascadefinds/comms/internal/models"
)

type participantKey struct {
	channelID uuid.UUID
	userID    uuid.UUID
}

// DB is the shared state behind the per-interface stores.
type DB struct {
	mu sync.Mutex

	channels      map[uuid.UUID]*models.Channel
	participants  map[participantKey]*models.Participant
	messages      map[int64]*models.Message
	notifications map[int64]*models.Notification
	users         map[uuid.UUID]*models.User

	nextMessageID      int64
	nextNotificationID int64
}

func New() *DB {
	return &DB{
		channels:      make(map[uuid.UUID]*models.Channel),
		participants:  make(map[participantKey]*models.Participant),
		messages:      make(map[int64]*models.Message),
		notifications: make(map[int64]*models.Notification),
		users:         make(map[uuid.UUID]*models.User),
	}
}

func (d *DB) Channels() *ChannelStore           { return &ChannelStore{d} }
func (d *DB) Participants() *ParticipantStore   { return &ParticipantStore{d} }
func (d *DB) Messages() *MessageStore           { return &MessageStore{d} }
func (d *DB) Notifications() *NotificationStore { return &NotificationStore{d} }
func (d *DB) Users() *UserStore                 { return &UserStore{d} }

// AddUser seeds a user directly, bypassing the repository contract.
func (d *DB) AddUser(u models.User) models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := u
	d.users[u.ID] = &cp
	return u
}

// ChannelStore

type ChannelStore struct{ db *DB }

func (s *ChannelStore) Create(_ context.Context, ch *models.Channel) (*models.Channel, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cp := *ch
	cp.ID = uuid.New()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.db.channels[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (s *ChannelStore) GetByID(_ context.Context, channelID uuid.UUID) (*models.Channel, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ch, ok := s.db.channels[channelID]
	if !ok {
		return nil, nil
	}
	out := *ch
	return &out, nil
}

func (s *ChannelStore) GetBySlug(_ context.Context, slug string) (*models.Channel, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, ch := range s.db.channels {
		if ch.Slug == slug {
			out := *ch
			return &out, nil
		}
	}
	return nil, nil
}

func (s *ChannelStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	ch, err := s.GetBySlug(ctx, slug)
	return ch != nil, err
}

func (s *ChannelStore) Update(_ context.Context, ch *models.Channel) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing, ok := s.db.channels[ch.ID]
	if !ok {
		return nil
	}
	existing.Name = ch.Name
	existing.Description = ch.Description
	existing.Archived = ch.Archived
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *ChannelStore) ListPublic(_ context.Context, limit int) ([]models.Channel, error) {
	return s.filter(limit, func(ch *models.Channel) bool {
		return ch.Type == models.ChannelPublic && !ch.Archived
	}), nil
}

func (s *ChannelStore) ListByEvent(_ context.Context, eventID int64) ([]models.Channel, error) {
	return s.filter(0, func(ch *models.Channel) bool {
		return ch.EventID != nil && *ch.EventID == eventID && !ch.Archived
	}), nil
}

func (s *ChannelStore) ListByShop(_ context.Context, shopID int64) ([]models.Channel, error) {
	return s.filter(0, func(ch *models.Channel) bool {
		return ch.ShopID != nil && *ch.ShopID == shopID && !ch.Archived
	}), nil
}

func (s *ChannelStore) ListByType(_ context.Context, typ models.ChannelType) ([]models.Channel, error) {
	return s.filter(0, func(ch *models.Channel) bool {
		return ch.Type == typ && !ch.Archived
	}), nil
}

func (s *ChannelStore) Search(_ context.Context, query string, limit int) ([]models.Channel, error) {
	q := strings.ToLower(query)
	return s.filter(limit, func(ch *models.Channel) bool {
		return strings.Contains(strings.ToLower(ch.Name), q) && !ch.Archived
	}), nil
}

func (s *ChannelStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.ChannelWithUnread, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.ChannelWithUnread, 0)
	for key, p := range s.db.participants {
		if key.userID != userID {
			continue
		}
		ch, ok := s.db.channels[key.channelID]
		if !ok || ch.Archived {
			continue
		}
		unread := 0
		for _, m := range s.db.messages {
			if m.ChannelID == ch.ID && !m.Deleted && m.ID > p.LastReadMessageID {
				unread++
			}
		}
		out = append(out, models.ChannelWithUnread{Channel: *ch, UnreadCount: unread})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *ChannelStore) AddParticipantCount(_ context.Context, channelID uuid.UUID, delta int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if ch, ok := s.db.channels[channelID]; ok {
		ch.ParticipantCount += delta
		ch.UpdatedAt = time.Now()
	}
	return nil
}

func (s *ChannelStore) AddMessageCount(_ context.Context, channelID uuid.UUID, delta int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if ch, ok := s.db.channels[channelID]; ok {
		ch.MessageCount += delta
		now := time.Now()
		if delta > 0 {
			ch.LastActivityAt = &now
		}
		ch.UpdatedAt = now
	}
	return nil
}

func (s *ChannelStore) filter(limit int, keep func(*models.Channel) bool) []models.Channel {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Channel, 0)
	for _, ch := range s.db.channels {
		if keep(ch) {
			out = append(out, *ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ParticipantStore

type ParticipantStore struct{ db *DB }

func (s *ParticipantStore) Add(_ context.Context, p *models.Participant) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := participantKey{p.ChannelID, p.UserID}
	if _, exists := s.db.participants[key]; exists {
		return false, nil
	}
	cp := *p
	if cp.JoinedAt.IsZero() {
		cp.JoinedAt = time.Now()
	}
	s.db.participants[key] = &cp
	return true, nil
}

func (s *ParticipantStore) Remove(_ context.Context, channelID, userID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := participantKey{channelID, userID}
	if _, exists := s.db.participants[key]; !exists {
		return false, nil
	}
	delete(s.db.participants, key)
	return true, nil
}

func (s *ParticipantStore) Get(_ context.Context, channelID, userID uuid.UUID) (*models.Participant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.participants[participantKey{channelID, userID}]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (s *ParticipantStore) IsParticipant(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	p, err := s.Get(ctx, channelID, userID)
	return p != nil, err
}

func (s *ParticipantStore) ListByChannel(_ context.Context, channelID uuid.UUID) ([]models.Participant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Participant, 0)
	for key, p := range s.db.participants {
		if key.channelID == channelID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *ParticipantStore) SetRole(_ context.Context, channelID, userID uuid.UUID, role models.ParticipantRole) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if p, ok := s.db.participants[participantKey{channelID, userID}]; ok {
		p.Role = role
	}
	return nil
}

func (s *ParticipantStore) SetPreference(_ context.Context, channelID, userID uuid.UUID, pref models.NotificationPreference, muted bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if p, ok := s.db.participants[participantKey{channelID, userID}]; ok {
		p.Preference = pref
		p.Muted = muted
	}
	return nil
}

func (s *ParticipantStore) AdvanceLastRead(_ context.Context, channelID, userID uuid.UUID, messageID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if p, ok := s.db.participants[participantKey{channelID, userID}]; ok {
		if messageID > p.LastReadMessageID {
			p.LastReadMessageID = messageID
		}
	}
	return nil
}

func (s *ParticipantStore) CountByChannel(_ context.Context, channelID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	count := 0
	for key := range s.db.participants {
		if key.channelID == channelID {
			count++
		}
	}
	return count, nil
}

// MessageStore

type MessageStore struct{ db *DB }

func (s *MessageStore) Create(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.nextMessageID++
	cp := *msg
	cp.ID = s.db.nextMessageID
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.db.messages[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (s *MessageStore) GetByID(_ context.Context, messageID int64) (*models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.messages[messageID]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (s *MessageStore) UpdateContent(_ context.Context, messageID int64, content string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if m, ok := s.db.messages[messageID]; ok {
		m.Content = content
		m.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MessageStore) MarkDeleted(_ context.Context, messageID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if m, ok := s.db.messages[messageID]; ok {
		m.Deleted = true
		m.Pinned = false
		m.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MessageStore) SetPinned(_ context.Context, messageID int64, pinned bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if m, ok := s.db.messages[messageID]; ok {
		m.Pinned = pinned
		m.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MessageStore) AddReplyCount(_ context.Context, parentID int64, delta int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if m, ok := s.db.messages[parentID]; ok {
		m.ReplyCount += delta
		m.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MessageStore) ListBefore(_ context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	msgs := s.filter(func(m *models.Message) bool {
		if m.ChannelID != channelID || m.Deleted {
			return false
		}
		return before == 0 || m.ID < before
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return truncate(msgs, limit), nil
}

func (s *MessageStore) ListAfter(_ context.Context, channelID uuid.UUID, after int64, limit int) ([]models.Message, error) {
	msgs := s.filter(func(m *models.Message) bool {
		return m.ChannelID == channelID && !m.Deleted && m.ID > after
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return truncate(msgs, limit), nil
}

func (s *MessageStore) ListPinned(_ context.Context, channelID uuid.UUID) ([]models.Message, error) {
	msgs := s.filter(func(m *models.Message) bool {
		return m.ChannelID == channelID && m.Pinned && !m.Deleted
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return msgs, nil
}

func (s *MessageStore) ListReplies(_ context.Context, parentID int64, limit int) ([]models.Message, error) {
	msgs := s.filter(func(m *models.Message) bool {
		return m.ParentMessageID != nil && *m.ParentMessageID == parentID && !m.Deleted
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return truncate(msgs, limit), nil
}

func (s *MessageStore) Search(_ context.Context, channelID uuid.UUID, query string, limit int) ([]models.Message, error) {
	q := strings.ToLower(query)
	msgs := s.filter(func(m *models.Message) bool {
		return m.ChannelID == channelID && !m.Deleted &&
			strings.Contains(strings.ToLower(m.Content), q)
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return truncate(msgs, limit), nil
}

func (s *MessageStore) MaxID(_ context.Context, channelID uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var maxID int64
	for _, m := range s.db.messages {
		if m.ChannelID == channelID && m.ID > maxID {
			maxID = m.ID
		}
	}
	return maxID, nil
}

func (s *MessageStore) CountAfter(_ context.Context, channelID uuid.UUID, after int64) (int, error) {
	msgs := s.filter(func(m *models.Message) bool {
		return m.ChannelID == channelID && !m.Deleted && m.ID > after
	})
	return len(msgs), nil
}

func (s *MessageStore) ListAnnouncements(_ context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	s.db.mu.Lock()
	member := make(map[uuid.UUID]bool)
	for key := range s.db.participants {
		if key.userID == userID {
			member[key.channelID] = true
		}
	}
	s.db.mu.Unlock()

	msgs := s.filter(func(m *models.Message) bool {
		return m.Type == models.MessageAnnouncement && !m.Deleted && member[m.ChannelID]
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return truncate(msgs, limit), nil
}

func (s *MessageStore) filter(keep func(*models.Message) bool) []models.Message {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range s.db.messages {
		if keep(m) {
			out = append(out, *m)
		}
	}
	return out
}

// NotificationStore

type NotificationStore struct{ db *DB }

func (s *NotificationStore) CreateBatch(_ context.Context, channelID uuid.UUID, messageID int64, userIDs []uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, userID := range userIDs {
		s.db.nextNotificationID++
		s.db.notifications[s.db.nextNotificationID] = &models.Notification{
			ID:        s.db.nextNotificationID,
			UserID:    userID,
			ChannelID: channelID,
			MessageID: messageID,
			CreatedAt: time.Now(),
		}
	}
	return nil
}

func (s *NotificationStore) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Notification, 0)
	for _, n := range s.db.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return truncate(out, limit), nil
}

func (s *NotificationStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	count := 0
	for _, n := range s.db.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, notificationID int64, userID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	n, ok := s.db.notifications[notificationID]
	if !ok || n.UserID != userID || n.Read {
		return false, nil
	}
	now := time.Now()
	n.Read = true
	n.ReadAt = &now
	return true, nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := time.Now()
	for _, n := range s.db.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &now
		}
	}
	return nil
}

func (s *NotificationStore) MarkChannelRead(_ context.Context, channelID, userID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := time.Now()
	for _, n := range s.db.notifications {
		if n.ChannelID == channelID && n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &now
		}
	}
	return nil
}

func (s *NotificationStore) CountByMessage(_ context.Context, messageID int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	count := 0
	for _, n := range s.db.notifications {
		if n.MessageID == messageID {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var removed int64
	for id, n := range s.db.notifications {
		if n.CreatedAt.Before(cutoff) {
			delete(s.db.notifications, id)
			removed++
		}
	}
	return removed, nil
}

// UserStore

type UserStore struct{ db *DB }

func (s *UserStore) Create(_ context.Context, email, displayName, passwordHash string, role models.Role) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	s.db.users[u.ID] = u
	out := *u
	return &out, nil
}

func (s *UserStore) GetByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[userID]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, u := range s.db.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (s *UserStore) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.db.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func truncate[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
