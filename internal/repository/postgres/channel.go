package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cascadefinds/comms/internal/models"
)

const channelColumns = `id, name, slug, description, type, created_by, event_id, shop_id,
	archived, participant_count, message_count, last_activity_at, created_at, updated_at`

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var ch models.Channel
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&ch.Slug,
		&ch.Description,
		&ch.Type,
		&ch.CreatedBy,
		&ch.EventID,
		&ch.ShopID,
		&ch.Archived,
		&ch.ParticipantCount,
		&ch.MessageCount,
		&ch.LastActivityAt,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChannelStore) Create(ctx context.Context, ch *models.Channel) (*models.Channel, error) {
	query := `
		INSERT INTO channels (id, name, slug, description, type, created_by, event_id, shop_id, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING ` + channelColumns

	created, err := scanChannel(s.pool.QueryRow(ctx, query,
		ch.Name, ch.Slug, ch.Description, ch.Type, ch.CreatedBy, ch.EventID, ch.ShopID))
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return created, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`

	ch, err := scanChannel(s.pool.QueryRow(ctx, query, channelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

func (s *ChannelStore) GetBySlug(ctx context.Context, slug string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE slug = $1`

	ch, err := scanChannel(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel by slug: %w", err)
	}
	return ch, nil
}

func (s *ChannelStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM channels WHERE slug = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (s *ChannelStore) Update(ctx context.Context, ch *models.Channel) error {
	query := `
		UPDATE channels
		SET name = $2, description = $3, archived = $4, updated_at = now()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, ch.ID, ch.Name, ch.Description, ch.Archived)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) ListPublic(ctx context.Context, limit int) ([]models.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE type = 'public' AND NOT archived
		ORDER BY last_activity_at DESC NULLS LAST, created_at DESC
		LIMIT $1`

	return s.list(ctx, query, limit)
}

func (s *ChannelStore) ListByEvent(ctx context.Context, eventID int64) ([]models.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE event_id = $1 AND NOT archived
		ORDER BY created_at DESC`

	return s.list(ctx, query, eventID)
}

func (s *ChannelStore) ListByShop(ctx context.Context, shopID int64) ([]models.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE shop_id = $1 AND NOT archived
		ORDER BY created_at DESC`

	return s.list(ctx, query, shopID)
}

func (s *ChannelStore) ListByType(ctx context.Context, typ models.ChannelType) ([]models.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE type = $1 AND NOT archived
		ORDER BY created_at DESC`

	return s.list(ctx, query, typ)
}

func (s *ChannelStore) Search(ctx context.Context, query string, limit int) ([]models.Channel, error) {
	sql := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE name ILIKE '%' || $1 || '%' AND NOT archived
		ORDER BY last_activity_at DESC NULLS LAST, created_at DESC
		LIMIT $2`

	return s.list(ctx, sql, query, limit)
}

// ListForUser joins memberships to channels and counts, per channel, the
// non-deleted messages past the caller's read cursor.
func (s *ChannelStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChannelWithUnread, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.description, c.type, c.created_by, c.event_id, c.shop_id,
			c.archived, c.participant_count, c.message_count, c.last_activity_at, c.created_at, c.updated_at,
			count(m.id) AS unread_count
		FROM channels c
		JOIN participants p ON p.channel_id = c.id AND p.user_id = $1
		LEFT JOIN messages m ON m.channel_id = c.id AND m.id > p.last_read_message_id AND NOT m.deleted
		WHERE NOT c.archived
		GROUP BY c.id
		ORDER BY c.last_activity_at DESC NULLS LAST, c.created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.ChannelWithUnread, 0)
	for rows.Next() {
		var ch models.ChannelWithUnread
		if err := rows.Scan(
			&ch.ID,
			&ch.Name,
			&ch.Slug,
			&ch.Description,
			&ch.Type,
			&ch.CreatedBy,
			&ch.EventID,
			&ch.ShopID,
			&ch.Archived,
			&ch.ParticipantCount,
			&ch.MessageCount,
			&ch.LastActivityAt,
			&ch.CreatedAt,
			&ch.UpdatedAt,
			&ch.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan user channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user channels: %w", err)
	}

	return channels, nil
}

// AddParticipantCount is a single-statement increment — concurrent joins
// and leaves cannot lose updates.
func (s *ChannelStore) AddParticipantCount(ctx context.Context, channelID uuid.UUID, delta int) error {
	query := `
		UPDATE channels
		SET participant_count = participant_count + $2, updated_at = now()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, channelID, delta)
	if err != nil {
		return fmt.Errorf("adjust participant count: %w", err)
	}
	return nil
}

// AddMessageCount is a single-statement increment. A positive delta means a
// new message, which also counts as channel activity.
func (s *ChannelStore) AddMessageCount(ctx context.Context, channelID uuid.UUID, delta int) error {
	var query string
	if delta > 0 {
		query = `
			UPDATE channels
			SET message_count = message_count + $2, last_activity_at = now(), updated_at = now()
			WHERE id = $1`
	} else {
		query = `
			UPDATE channels
			SET message_count = message_count + $2, updated_at = now()
			WHERE id = $1`
	}

	_, err := s.pool.Exec(ctx, query, channelID, delta)
	if err != nil {
		return fmt.Errorf("adjust message count: %w", err)
	}
	return nil
}

func (s *ChannelStore) list(ctx context.Context, query string, args ...any) ([]models.Channel, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}
