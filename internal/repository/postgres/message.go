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

const messageColumns = `id, channel_id, sender_id, content, type, parent_message_id,
	pinned, reply_count, reaction_count, deleted, created_at, updated_at`

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.ChannelID,
		&m.SenderID,
		&m.Content,
		&m.Type,
		&m.ParentMessageID,
		&m.Pinned,
		&m.ReplyCount,
		&m.ReactionCount,
		&m.Deleted,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MessageStore) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	// bigserial id: Postgres generates it, RETURNING gives it back.
	query := `
		INSERT INTO messages (channel_id, sender_id, content, type, parent_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING ` + messageColumns

	created, err := scanMessage(s.pool.QueryRow(ctx, query,
		msg.ChannelID, msg.SenderID, msg.Content, msg.Type, msg.ParentMessageID))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return created, nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	m, err := scanMessage(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, messageID int64, content string) error {
	query := `
		UPDATE messages
		SET content = $2, updated_at = now()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, messageID, content)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkDeleted(ctx context.Context, messageID int64) error {
	query := `
		UPDATE messages
		SET deleted = true, pinned = false, updated_at = now()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, messageID)
	if err != nil {
		return fmt.Errorf("mark message deleted: %w", err)
	}
	return nil
}

func (s *MessageStore) SetPinned(ctx context.Context, messageID int64, pinned bool) error {
	query := `
		UPDATE messages
		SET pinned = $2, updated_at = now()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, messageID, pinned)
	if err != nil {
		return fmt.Errorf("set message pinned: %w", err)
	}
	return nil
}

func (s *MessageStore) AddReplyCount(ctx context.Context, parentID int64, delta int) error {
	query := `
		UPDATE messages
		SET reply_count = reply_count + $2, updated_at = now()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, parentID, delta)
	if err != nil {
		return fmt.Errorf("adjust reply count: %w", err)
	}
	return nil
}

// ListBefore pages backward through history: before=0 means "from the
// newest", otherwise id < before. Ordering by id is the same order as time
// for a bigserial column.
func (s *MessageStore) ListBefore(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE channel_id = $1 AND id < $2 AND NOT deleted
			ORDER BY id DESC
			LIMIT $3`
		args = []any{channelID, before, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE channel_id = $1 AND NOT deleted
			ORDER BY id DESC
			LIMIT $2`
		args = []any{channelID, limit}
	}

	return s.list(ctx, query, args...)
}

// ListAfter pages forward from a cursor, oldest first — the catch-up
// direction for clients resuming from their read position.
func (s *MessageStore) ListAfter(ctx context.Context, channelID uuid.UUID, after int64, limit int) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND id > $2 AND NOT deleted
		ORDER BY id
		LIMIT $3`

	return s.list(ctx, query, channelID, after, limit)
}

func (s *MessageStore) ListPinned(ctx context.Context, channelID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND pinned AND NOT deleted
		ORDER BY id DESC`

	return s.list(ctx, query, channelID)
}

func (s *MessageStore) ListReplies(ctx context.Context, parentID int64, limit int) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE parent_message_id = $1 AND NOT deleted
		ORDER BY id
		LIMIT $2`

	return s.list(ctx, query, parentID, limit)
}

func (s *MessageStore) Search(ctx context.Context, channelID uuid.UUID, query string, limit int) ([]models.Message, error) {
	sql := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND content ILIKE '%' || $2 || '%' AND NOT deleted
		ORDER BY id DESC
		LIMIT $3`

	return s.list(ctx, sql, channelID, query, limit)
}

func (s *MessageStore) MaxID(ctx context.Context, channelID uuid.UUID) (int64, error) {
	query := `SELECT coalesce(max(id), 0) FROM messages WHERE channel_id = $1`

	var maxID int64
	if err := s.pool.QueryRow(ctx, query, channelID).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max message id: %w", err)
	}
	return maxID, nil
}

func (s *MessageStore) CountAfter(ctx context.Context, channelID uuid.UUID, after int64) (int, error) {
	query := `
		SELECT count(*)
		FROM messages
		WHERE channel_id = $1 AND id > $2 AND NOT deleted`

	var count int
	if err := s.pool.QueryRow(ctx, query, channelID, after).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

func (s *MessageStore) ListAnnouncements(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	query := `
		SELECT m.id, m.channel_id, m.sender_id, m.content, m.type, m.parent_message_id,
			m.pinned, m.reply_count, m.reaction_count, m.deleted, m.created_at, m.updated_at
		FROM messages m
		JOIN participants p ON p.channel_id = m.channel_id AND p.user_id = $1
		WHERE m.type = 'announcement' AND NOT m.deleted
		ORDER BY m.id DESC
		LIMIT $2`

	return s.list(ctx, query, userID, limit)
}

func (s *MessageStore) list(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
