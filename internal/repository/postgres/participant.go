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

const participantColumns = `channel_id, user_id, role, last_read_message_id,
	notification_preference, muted, joined_at`

type ParticipantStore struct {
	pool *pgxpool.Pool
}

func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.ChannelID,
		&p.UserID,
		&p.Role,
		&p.LastReadMessageID,
		&p.Preference,
		&p.Muted,
		&p.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Add relies on the (channel_id, user_id) primary key for idempotent join:
// ON CONFLICT DO NOTHING turns a duplicate into a zero-row insert, and the
// returned bool tells the service whether participant_count should move.
func (s *ParticipantStore) Add(ctx context.Context, p *models.Participant) (bool, error) {
	query := `
		INSERT INTO participants (channel_id, user_id, role, notification_preference, muted, joined_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (channel_id, user_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, p.ChannelID, p.UserID, p.Role, p.Preference, p.Muted)
	if err != nil {
		return false, fmt.Errorf("add participant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ParticipantStore) Remove(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM participants
		WHERE channel_id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, channelID, userID)
	if err != nil {
		return false, fmt.Errorf("remove participant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ParticipantStore) Get(ctx context.Context, channelID, userID uuid.UUID) (*models.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE channel_id = $1 AND user_id = $2`

	p, err := scanParticipant(s.pool.QueryRow(ctx, query, channelID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) IsParticipant(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	// EXISTS stops at the first match — this runs before every send.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM participants
			WHERE channel_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, channelID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists, nil
}

func (s *ParticipantStore) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE channel_id = $1
		ORDER BY joined_at`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return participants, nil
}

func (s *ParticipantStore) SetRole(ctx context.Context, channelID, userID uuid.UUID, role models.ParticipantRole) error {
	query := `
		UPDATE participants
		SET role = $3
		WHERE channel_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, channelID, userID, role)
	if err != nil {
		return fmt.Errorf("set participant role: %w", err)
	}
	return nil
}

func (s *ParticipantStore) SetPreference(ctx context.Context, channelID, userID uuid.UUID, pref models.NotificationPreference, muted bool) error {
	query := `
		UPDATE participants
		SET notification_preference = $3, muted = $4
		WHERE channel_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, channelID, userID, pref, muted)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// AdvanceLastRead keeps the cursor monotonic: GREATEST means a stale
// mark-as-read from a lagging client can never move it backward.
func (s *ParticipantStore) AdvanceLastRead(ctx context.Context, channelID, userID uuid.UUID, messageID int64) error {
	query := `
		UPDATE participants
		SET last_read_message_id = GREATEST(last_read_message_id, $3)
		WHERE channel_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, channelID, userID, messageID)
	if err != nil {
		return fmt.Errorf("advance last read: %w", err)
	}
	return nil
}

func (s *ParticipantStore) CountByChannel(ctx context.Context, channelID uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM participants WHERE channel_id = $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, channelID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}
