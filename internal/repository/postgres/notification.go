package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cascadefinds/comms/internal/models"
)

type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// CreateBatch fans a message out to its recipients with one multi-row
// INSERT via unnest. A single statement is a single transaction: either
// every recipient gets a row or none do — a crash cannot leave a partial
// notification set.
func (s *NotificationStore) CreateBatch(ctx context.Context, channelID uuid.UUID, messageID int64, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO notifications (user_id, channel_id, message_id, created_at)
		SELECT u, $2, $3, now() FROM unnest($1::uuid[]) AS u`

	_, err := s.pool.Exec(ctx, query, userIDs, channelID, messageID)
	if err != nil {
		return fmt.Errorf("insert notification batch: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, channel_id, message_id, read, read_at, created_at
		FROM notifications
		WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += `
		ORDER BY id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.ChannelID,
			&n.MessageID,
			&n.Read,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read`

	var count int
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead is scoped to the owning user so one user cannot acknowledge
// another's notification by guessing ids.
func (s *NotificationStore) MarkRead(ctx context.Context, notificationID int64, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET read = true, read_at = now()
		WHERE id = $1 AND user_id = $2 AND NOT read`

	tag, err := s.pool.Exec(ctx, query, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET read = true, read_at = now()
		WHERE user_id = $1 AND NOT read`

	_, err := s.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *NotificationStore) MarkChannelRead(ctx context.Context, channelID, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET read = true, read_at = now()
		WHERE channel_id = $1 AND user_id = $2 AND NOT read`

	_, err := s.pool.Exec(ctx, query, channelID, userID)
	if err != nil {
		return fmt.Errorf("mark channel notifications read: %w", err)
	}
	return nil
}

func (s *NotificationStore) CountByMessage(ctx context.Context, messageID int64) (int, error) {
	query := `SELECT count(*) FROM notifications WHERE message_id = $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, messageID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count message notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE created_at < $1`

	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
