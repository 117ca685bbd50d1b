package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadefinds/comms/internal/apperr"
	"github.com/cascadefinds/comms/internal/models"
)

func TestSendMessageBumpsCountersAndFansOut(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, admin.ID, "Support", models.ChannelPublic)
	e.join(t, ch.ID, bob.ID)

	e.send(t, ch.ID, bob.ID, "hello")

	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)
	require.NotNil(t, got.LastActivityAt)

	// One notification for the admin, none for the sender.
	adminUnread, err := e.db.Notifications().CountUnread(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, adminUnread)

	bobUnread, err := e.db.Notifications().CountUnread(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, bobUnread)
}

func TestSendAsNonParticipantForbiddenAndPersistsNothing(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	eve := e.user(t, "Eve", models.RoleMember)
	ch := e.channel(t, admin.ID, "Support", models.ChannelPublic)

	_, err := e.messages.Send(context.Background(), SendMessageInput{
		ChannelID: ch.ID,
		SenderID:  eve.ID,
		Content:   "let me in",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MessageCount)

	maxID, err := e.db.Messages().MaxID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Zero(t, maxID, "no message row may exist")
}

func TestSendToArchivedChannelForbidden(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, admin.ID, "Old", models.ChannelPublic)
	require.NoError(t, e.channels.Archive(context.Background(), ch.ID, admin.ID))

	_, err := e.messages.Send(context.Background(), SendMessageInput{
		ChannelID: ch.ID,
		SenderID:  admin.ID,
		Content:   "anyone here?",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestFanOutCreatesOneRowPerOtherParticipant(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)

	others := make([]models.User, 3)
	for i, name := range []string{"Bob", "Carol", "Dave"} {
		others[i] = e.user(t, name, models.RoleMember)
		e.join(t, ch.ID, others[i].ID)
	}

	msg := e.send(t, ch.ID, admin.ID, "meeting at noon")

	notified, err := e.db.Notifications().CountByMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, notified, "N participants minus the sender")
}

func TestFanOutZeroWhenSenderIsOnlyParticipant(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, admin.ID, "Solo", models.ChannelPublic)

	msg := e.send(t, ch.ID, admin.ID, "talking to myself")

	notified, err := e.db.Notifications().CountByMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Zero(t, notified)
}

func TestFanOutHonorsPreferences(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	muted := e.user(t, "Bob", models.RoleMember)
	mentionsOnly := e.user(t, "Carol Jones", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)
	e.join(t, ch.ID, muted.ID)
	e.join(t, ch.ID, mentionsOnly.ID)

	require.NoError(t, e.channels.SetPreference(context.Background(), ch.ID, muted.ID, models.NotifyAll, true))
	require.NoError(t, e.channels.SetPreference(context.Background(), ch.ID, mentionsOnly.ID, models.NotifyMentions, false))

	// No mention: only the admin (preference all, unmuted) is notified.
	msg := e.send(t, ch.ID, admin.ID, "plain update")
	notified, err := e.db.Notifications().CountByMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Zero(t, notified, "sender excluded, one muted, one mentions-only")

	// Mentioning the display name (spaces stripped) reaches Carol.
	msg = e.send(t, ch.ID, admin.ID, "ping @CarolJones please")
	carolUnread, err := e.db.Notifications().CountUnread(context.Background(), mentionsOnly.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, carolUnread)

	notified, err = e.db.Notifications().CountByMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
}

func TestAnnouncementChannelRestrictsSendersToAdmins(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, admin.ID, "News", models.ChannelAnnouncement)
	e.join(t, ch.ID, bob.ID)

	_, err := e.messages.Send(context.Background(), SendMessageInput{
		ChannelID: ch.ID,
		SenderID:  bob.ID,
		Content:   "can I post here?",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	e.send(t, ch.ID, admin.ID, "admins can")
}

func TestEditOnlyBySender(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)
	e.join(t, ch.ID, bob.ID)

	msg := e.send(t, ch.ID, bob.ID, "orignal")

	_, err := e.messages.Edit(context.Background(), msg.ID, admin.ID, "hijacked")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	unchanged, err := e.messages.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "orignal", unchanged.Content)

	edited, err := e.messages.Edit(context.Background(), msg.ID, bob.ID, "original")
	require.NoError(t, err)
	assert.Equal(t, "original", edited.Content)
}

func TestDeleteBySenderOrChannelAdmin(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	carol := e.user(t, "Carol", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)
	e.join(t, ch.ID, bob.ID)
	e.join(t, ch.ID, carol.ID)

	msg := e.send(t, ch.ID, bob.ID, "delete me")

	// A plain member who is not the sender cannot delete.
	err := e.messages.Delete(context.Background(), msg.ID, carol.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	// The channel admin can.
	require.NoError(t, e.messages.Delete(context.Background(), msg.ID, admin.ID))

	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MessageCount)

	_, err = e.messages.Get(context.Background(), msg.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestDeleteParentKeepsReplyConsistent(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)

	parent := e.send(t, ch.ID, admin.ID, "thread start")
	reply, err := e.messages.Send(context.Background(), SendMessageInput{
		ChannelID:       ch.ID,
		SenderID:        admin.ID,
		Content:         "thread reply",
		ParentMessageID: &parent.ID,
	})
	require.NoError(t, err)

	withReply, err := e.messages.Get(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, withReply.ReplyCount)

	// Deleting the reply decrements both the channel counter and the
	// parent's reply count; deleting the parent leaves the reply row alone.
	require.NoError(t, e.messages.Delete(context.Background(), reply.ID, admin.ID))

	got, err := e.channels.Get(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)

	afterDelete, err := e.messages.Get(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, afterDelete.ReplyCount)

	require.NoError(t, e.messages.Delete(context.Background(), parent.ID, admin.ID))
	stillThere, err := e.db.Messages().GetByID(context.Background(), reply.ID)
	require.NoError(t, err)
	require.NotNil(t, stillThere)
}

func TestReplyValidation(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	chA := e.channel(t, admin.ID, "A", models.ChannelPublic)
	chB := e.channel(t, admin.ID, "B", models.ChannelPublic)

	parent := e.send(t, chA.ID, admin.ID, "in channel A")

	// Parent must live in the same channel.
	_, err := e.messages.Send(context.Background(), SendMessageInput{
		ChannelID:       chB.ID,
		SenderID:        admin.ID,
		Content:         "cross-channel reply",
		ParentMessageID: &parent.ID,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	missing := int64(9999)
	_, err = e.messages.Send(context.Background(), SendMessageInput{
		ChannelID:       chA.ID,
		SenderID:        admin.ID,
		Content:         "reply to nothing",
		ParentMessageID: &missing,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestPinRequiresChannelAdmin(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)
	e.join(t, ch.ID, bob.ID)

	msg := e.send(t, ch.ID, bob.ID, "important")

	err := e.messages.Pin(context.Background(), msg.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	require.NoError(t, e.messages.Pin(context.Background(), msg.ID, admin.ID))

	pinned, err := e.messages.ListPinned(context.Background(), ch.ID, admin.ID)
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, msg.ID, pinned[0].ID)

	require.NoError(t, e.messages.Unpin(context.Background(), msg.ID, admin.ID))
	pinned, err = e.messages.ListPinned(context.Background(), ch.ID, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, pinned)
}

func TestCursorPagination(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)

	ids := make([]int64, 5)
	for i := range ids {
		ids[i] = e.send(t, ch.ID, admin.ID, "msg").ID
	}

	// before=0 means the newest page, newest first.
	page, err := e.messages.ListBefore(context.Background(), ch.ID, admin.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	older, err := e.messages.ListBefore(context.Background(), ch.ID, admin.ID, page[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 3)
	assert.Equal(t, ids[2], older[0].ID)

	// after walks forward, oldest first.
	newer, err := e.messages.ListAfter(context.Background(), ch.ID, admin.ID, ids[2], 10)
	require.NoError(t, err)
	require.Len(t, newer, 2)
	assert.Equal(t, ids[3], newer[0].ID)
}

func TestSearchSkipsDeletedMessages(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)

	keep := e.send(t, ch.ID, admin.ID, "the quarterly report is ready")
	gone := e.send(t, ch.ID, admin.ID, "old report draft")
	require.NoError(t, e.messages.Delete(context.Background(), gone.ID, admin.ID))

	found, err := e.messages.Search(context.Background(), ch.ID, admin.ID, "report", 50)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, keep.ID, found[0].ID)

	_, err = e.messages.Search(context.Background(), ch.ID, admin.ID, "", 50)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestUnreadCountFollowsCursor(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Alice", models.RoleMember)
	bob := e.user(t, "Bob", models.RoleMember)
	ch := e.channel(t, admin.ID, "General", models.ChannelPublic)
	e.join(t, ch.ID, bob.ID)

	for i := 0; i < 3; i++ {
		e.send(t, ch.ID, admin.ID, "update")
	}

	count, err := e.messages.UnreadCount(context.Background(), ch.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, e.channels.MarkRead(context.Background(), ch.ID, bob.ID))

	count, err = e.messages.UnreadCount(context.Background(), ch.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
