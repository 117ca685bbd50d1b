package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/models"
	"github.com/cascadefinds/comms/internal/repository"
)

// ChannelService owns channel lifecycle, participant management, and
// read-state tracking.
type ChannelService struct {
	channels      repository.ChannelRepository
	participants  repository.ParticipantRepository
	messages      repository.MessageRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

func NewChannelService(
	channels repository.ChannelRepository,
	participants repository.ParticipantRepository,
	messages repository.MessageRepository,
	notifications repository.NotificationRepository,
	logger *zap.Logger,
) *ChannelService {
	return &ChannelService{
		channels:      channels,
		participants:  participants,
		messages:      messages,
		notifications: notifications,
		logger:        logger,
	}
}

type CreateChannelInput struct {
	Name        string
	Description string
	Type        models.ChannelType
	CreatedBy   uuid.UUID
	EventID     *int64
	ShopID      *int64
}

type UpdateChannelInput struct {
	Name        *string
	Description *string
}

// Create validates the input, generates a unique slug, inserts the channel,
// and auto-joins the creator as channel admin.
func (s *ChannelService) Create(ctx context.Context, in CreateChannelInput) (*models.Channel, error) {
	if in.Name == "" {
		return nil, apperr.Validation("channel name is required")
	}
	if in.Type == "" {
		in.Type = models.ChannelPublic
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid channel type %q", in.Type))
	}
	if in.Type == models.ChannelEvent && in.EventID == nil {
		return nil, apperr.Validation("event channels require an event id")
	}
	if in.Type == models.ChannelVendor && in.ShopID == nil {
		return nil, apperr.Validation("vendor channels require a shop id")
	}

	slug, err := s.uniqueSlug(ctx, slugify(in.Name))
	if err != nil {
		return nil, apperr.Internal("failed to create channel", err)
	}

	ch, err := s.channels.Create(ctx, &models.Channel{
		Name:        in.Name,
		Slug:        slug,
		Description: in.Description,
		Type:        in.Type,
		CreatedBy:   in.CreatedBy,
		EventID:     in.EventID,
		ShopID:      in.ShopID,
	})
	if err != nil {
		return nil, apperr.Internal("failed to create channel", err)
	}

	if _, err := s.AddParticipant(ctx, ch.ID, in.CreatedBy, models.ParticipantAdmin); err != nil {
		return nil, err
	}
	ch.ParticipantCount = 1

	s.logger.Info("channel created",
		zap.String("channel_id", ch.ID.String()),
		zap.String("slug", ch.Slug),
		zap.String("type", string(ch.Type)),
	)
	return ch, nil
}

// uniqueSlug appends -2, -3, ... until the slug is free. The unique index
// still backstops a race between two identically named creates.
func (s *ChannelService) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		exists, err := s.channels.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *ChannelService) Get(ctx context.Context, channelID uuid.UUID) (*models.Channel, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, apperr.Internal("failed to load channel", err)
	}
	if ch == nil {
		return nil, apperr.NotFound("channel not found")
	}
	return ch, nil
}

func (s *ChannelService) GetBySlug(ctx context.Context, slug string) (*models.Channel, error) {
	ch, err := s.channels.GetBySlug(ctx, slug)
	if err != nil {
		return nil, apperr.Internal("failed to load channel", err)
	}
	if ch == nil {
		return nil, apperr.NotFound("channel not found")
	}
	return ch, nil
}

// Update renames or re-describes a channel. Only the creator or a channel
// admin may do this.
func (s *ChannelService) Update(ctx context.Context, channelID, actorID uuid.UUID, in UpdateChannelInput) (*models.Channel, error) {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, ch, actorID); err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, apperr.Validation("channel name cannot be empty")
		}
		ch.Name = *in.Name
	}
	if in.Description != nil {
		ch.Description = *in.Description
	}

	if err := s.channels.Update(ctx, ch); err != nil {
		return nil, apperr.Internal("failed to update channel", err)
	}
	return ch, nil
}

// Archive soft-retires a channel; there is no hard delete. Idempotent.
func (s *ChannelService) Archive(ctx context.Context, channelID, actorID uuid.UUID) error {
	return s.setArchived(ctx, channelID, actorID, true)
}

func (s *ChannelService) Unarchive(ctx context.Context, channelID, actorID uuid.UUID) error {
	return s.setArchived(ctx, channelID, actorID, false)
}

func (s *ChannelService) setArchived(ctx context.Context, channelID, actorID uuid.UUID, archived bool) error {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return apperr.Internal("failed to load channel", err)
	}
	if ch == nil {
		return apperr.NotFound("channel not found")
	}
	if err := s.requireManage(ctx, ch, actorID); err != nil {
		return err
	}

	ch.Archived = archived
	if err := s.channels.Update(ctx, ch); err != nil {
		return apperr.Internal("failed to update channel", err)
	}
	return nil
}

// AddParticipant joins a user to a channel. Joining twice is a no-op that
// returns the existing membership; the participant counter moves only on a
// real insert (the store reports which happened).
func (s *ChannelService) AddParticipant(ctx context.Context, channelID, userID uuid.UUID, role models.ParticipantRole) (*models.Participant, error) {
	if role == "" {
		role = models.ParticipantMember
	}
	if !role.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid participant role %q", role))
	}

	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, apperr.Internal("failed to load channel", err)
	}
	if ch == nil {
		return nil, apperr.NotFound("channel not found")
	}

	inserted, err := s.participants.Add(ctx, &models.Participant{
		ChannelID:  channelID,
		UserID:     userID,
		Role:       role,
		Preference: models.NotifyAll,
	})
	if err != nil {
		return nil, apperr.Internal("failed to join channel", err)
	}

	if inserted {
		if err := s.channels.AddParticipantCount(ctx, channelID, 1); err != nil {
			return nil, apperr.Internal("failed to join channel", err)
		}
	}

	p, err := s.participants.Get(ctx, channelID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load participant", err)
	}
	if p == nil {
		// Inserted (or found) a moment ago; gone means a concurrent leave.
		return nil, apperr.NotFound("participant not found")
	}
	return p, nil
}

// RemoveParticipant leaves a channel. NotFound when the membership does
// not exist.
func (s *ChannelService) RemoveParticipant(ctx context.Context, channelID, userID uuid.UUID) error {
	removed, err := s.participants.Remove(ctx, channelID, userID)
	if err != nil {
		return apperr.Internal("failed to leave channel", err)
	}
	if !removed {
		return apperr.NotFound("participant not found")
	}
	if err := s.channels.AddParticipantCount(ctx, channelID, -1); err != nil {
		return apperr.Internal("failed to leave channel", err)
	}
	return nil
}

// SetParticipantRole promotes or demotes a member. Actor must be a channel
// admin or the channel creator.
func (s *ChannelService) SetParticipantRole(ctx context.Context, channelID, actorID, userID uuid.UUID, role models.ParticipantRole) error {
	if !role.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid participant role %q", role))
	}
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.requireManage(ctx, ch, actorID); err != nil {
		return err
	}

	p, err := s.participants.Get(ctx, channelID, userID)
	if err != nil {
		return apperr.Internal("failed to load participant", err)
	}
	if p == nil {
		return apperr.NotFound("participant not found")
	}

	if err := s.participants.SetRole(ctx, channelID, userID, role); err != nil {
		return apperr.Internal("failed to set role", err)
	}
	return nil
}

// MarkRead advances the caller's read cursor to the channel's highest
// message id and acknowledges the channel's notifications. Idempotent —
// the cursor is monotonic at the storage layer.
func (s *ChannelService) MarkRead(ctx context.Context, channelID, userID uuid.UUID) error {
	p, err := s.participants.Get(ctx, channelID, userID)
	if err != nil {
		return apperr.Internal("failed to load participant", err)
	}
	if p == nil {
		return apperr.NotFound("participant not found")
	}

	maxID, err := s.messages.MaxID(ctx, channelID)
	if err != nil {
		return apperr.Internal("failed to mark channel read", err)
	}
	if maxID > 0 {
		if err := s.participants.AdvanceLastRead(ctx, channelID, userID, maxID); err != nil {
			return apperr.Internal("failed to mark channel read", err)
		}
	}

	if err := s.notifications.MarkChannelRead(ctx, channelID, userID); err != nil {
		return apperr.Internal("failed to mark channel read", err)
	}
	return nil
}

func (s *ChannelService) ListParticipants(ctx context.Context, channelID uuid.UUID) ([]models.Participant, error) {
	if _, err := s.Get(ctx, channelID); err != nil {
		return nil, err
	}
	ps, err := s.participants.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, apperr.Internal("failed to list participants", err)
	}
	return ps, nil
}

// SetPreference updates a participant's notification preference and mute
// state for one channel.
func (s *ChannelService) SetPreference(ctx context.Context, channelID, userID uuid.UUID, pref models.NotificationPreference, muted bool) error {
	if !pref.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid notification preference %q", pref))
	}
	p, err := s.participants.Get(ctx, channelID, userID)
	if err != nil {
		return apperr.Internal("failed to load participant", err)
	}
	if p == nil {
		return apperr.NotFound("participant not found")
	}
	if err := s.participants.SetPreference(ctx, channelID, userID, pref, muted); err != nil {
		return apperr.Internal("failed to set preference", err)
	}
	return nil
}

func (s *ChannelService) GetParticipant(ctx context.Context, channelID, userID uuid.UUID) (*models.Participant, error) {
	p, err := s.participants.Get(ctx, channelID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load participant", err)
	}
	if p == nil {
		return nil, apperr.NotFound("participant not found")
	}
	return p, nil
}

// Query-only operations — pure reads, no side effects.

func (s *ChannelService) ListPublic(ctx context.Context, limit int) ([]models.Channel, error) {
	chs, err := s.channels.ListPublic(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to list channels", err)
	}
	return chs, nil
}

func (s *ChannelService) ListByEvent(ctx context.Context, eventID int64) ([]models.Channel, error) {
	chs, err := s.channels.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("failed to list channels", err)
	}
	return chs, nil
}

func (s *ChannelService) ListByShop(ctx context.Context, shopID int64) ([]models.Channel, error) {
	chs, err := s.channels.ListByShop(ctx, shopID)
	if err != nil {
		return nil, apperr.Internal("failed to list channels", err)
	}
	return chs, nil
}

func (s *ChannelService) Search(ctx context.Context, query string, limit int) ([]models.Channel, error) {
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	chs, err := s.channels.Search(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, apperr.Internal("failed to search channels", err)
	}
	return chs, nil
}

// CanAccess reports whether a user may read a channel: public channels are
// open to everyone, all other types require membership.
func (s *ChannelService) CanAccess(ctx context.Context, ch *models.Channel, userID uuid.UUID) (bool, error) {
	if ch.Type == models.ChannelPublic {
		return true, nil
	}
	ok, err := s.participants.IsParticipant(ctx, ch.ID, userID)
	if err != nil {
		return false, apperr.Internal("failed to check access", err)
	}
	return ok, nil
}

// requireManage allows the channel creator and channel admins.
func (s *ChannelService) requireManage(ctx context.Context, ch *models.Channel, actorID uuid.UUID) error {
	if ch.CreatedBy == actorID {
		return nil
	}
	p, err := s.participants.Get(ctx, ch.ID, actorID)
	if err != nil {
		return apperr.Internal("failed to check permissions", err)
	}
	if p == nil || p.Role != models.ParticipantAdmin {
		return apperr.Forbidden("channel admin access required")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}
