package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/models"
)

func TestCreateChannelValidation(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)

	cases := []struct {
		name string
		in   CreateChannelInput
	}{
		{"empty name", CreateChannelInput{Type: models.ChannelPublic, CreatedBy: creator.ID}},
		{"bad type", CreateChannelInput{Name: "x", Type: "direct", CreatedBy: creator.ID}},
		{"event channel without event id", CreateChannelInput{Name: "x", Type: models.ChannelEvent, CreatedBy: creator.ID}},
		{"vendor channel without shop id", CreateChannelInput{Name: "x", Type: models.ChannelVendor, CreatedBy: creator.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.channels.Create(context.Background(), tc.in)
			require.Error(t, err)
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		})
	}
}

func TestCreateChannelAutoJoinsCreatorAsAdmin(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)

	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)

	assert.Equal(t, 1, ch.ParticipantCount)
	assert.Equal(t, "general", ch.Slug)

	p, err := e.channels.GetParticipant(context.Background(), ch.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantAdmin, p.Role)
}

func TestCreateChannelUniquifiesSlug(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)

	first := e.channel(t, creator.ID, "Book Club", models.ChannelPublic)
	second := e.channel(t, creator.ID, "Book Club", models.ChannelPublic)
	third := e.channel(t, creator.ID, "Book Club", models.ChannelPublic)

	assert.Equal(t, "book-club", first.Slug)
	assert.Equal(t, "book-club-2", second.Slug)
	assert.Equal(t, "book-club-3", third.Slug)
}

func TestJoinIsIdempotent(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)

	first, err := e.channels.AddParticipant(context.Background(), ch.ID, bob.ID, models.ParticipantMember)
	require.NoError(t, err)
	second, err := e.channels.AddParticipant(context.Background(), ch.ID, bob.ID, models.ParticipantMember)
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)

	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount, "second join must not bump the counter")
}

func TestParticipantCountTracksJoinLeave(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)

	users := make([]models.User, 3)
	for i, name := range []string{"Bob", "Carol", "Dave"} {
		users[i] = e.user(t, name, models.RoleMember)
		e.join(t, ch.ID, users[i].ID)
	}

	require.NoError(t, e.channels.RemoveParticipant(context.Background(), ch.ID, users[0].ID))

	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)

	live, err := e.db.Participants().CountByChannel(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, live, got.ParticipantCount)
	assert.Equal(t, 3, got.ParticipantCount)
}

func TestRemoveParticipantNotFound(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)

	err := e.channels.RemoveParticipant(context.Background(), ch.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
}

func TestMarkReadAdvancesCursorToNewestMessage(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)
	e.join(t, ch.ID, bob.ID)

	e.send(t, ch.ID, creator.ID, "one")
	last := e.send(t, ch.ID, creator.ID, "two")

	require.NoError(t, e.channels.MarkRead(context.Background(), ch.ID, bob.ID))

	p, err := e.channels.GetParticipant(context.Background(), ch.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, p.LastReadMessageID)

	// Idempotent: marking again keeps the cursor in place.
	require.NoError(t, e.channels.MarkRead(context.Background(), ch.ID, bob.ID))
	p, err = e.channels.GetParticipant(context.Background(), ch.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, p.LastReadMessageID)
}

func TestMarkReadRequiresMembership(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)
	outsider := e.user(t, "Eve", models.RoleMember)
	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)

	err := e.channels.MarkRead(context.Background(), ch.ID, outsider.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestArchiveRequiresManageRights(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)
	e.join(t, ch.ID, bob.ID)

	err := e.channels.Archive(context.Background(), ch.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	require.NoError(t, e.channels.Archive(context.Background(), ch.ID, creator.ID))
	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

func TestSetPreferenceValidatesValues(t *testing.T) {
	e := newEnv(t)
	creator := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, creator.ID, "General", models.ChannelPublic)

	err := e.channels.SetPreference(context.Background(), ch.ID, creator.ID, "sometimes", false)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	require.NoError(t, e.channels.SetPreference(context.Background(), ch.ID, creator.ID, models.NotifyMentions, true))
	p, err := e.channels.GetParticipant(context.Background(), ch.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotifyMentions, p.Preference)
	assert.True(t, p.Muted)
}
