package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatapp/internal/domain/entity"
	"chatapp/internal/infrastructure/ratelimit"
	"chatapp/pkg/errors"
)

type testEnv struct {
	messages *fakeMessageRepo
	recent   *fakeRecentRepo
	receipts *fakeReceiptRepo
	users    *fakeUserRepo
	chat     *ChatUseCase
}

func newTestEnv(users ...*entity.User) *testEnv {
	env := &testEnv{
		messages: newFakeMessageRepo(),
		recent:   newFakeRecentRepo(),
		receipts: newFakeReceiptRepo(),
		users:    newFakeUserRepo(users...),
	}
	env.chat = NewChatUseCase(env.messages, env.recent, env.receipts, env.users, nil, ratelimit.NewRateLimiter())
	return env
}

func alice() *entity.User {
	return &entity.User{ID: "A", Name: "Alice", Email: "alice@example.com", AvatarURL: "https://cdn/a.png"}
}

func bob() *entity.User {
	return &entity.User{ID: "B", Name: "Bob", Email: "bob@example.com", AvatarURL: "https://cdn/b.png"}
}

func TestSendMessageFansOutToBothPartitions(t *testing.T) {
	env := newTestEnv(alice(), bob())

	resp, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)

	senderCopy := env.messages.get("A", "B", resp.ID)
	require.NotNil(t, senderCopy)
	assert.False(t, senderCopy.Unread)
	assert.Equal(t, "hi", senderCopy.Text)
	assert.Equal(t, "A", senderCopy.FromID)
	assert.Equal(t, "B", senderCopy.ToID)
	assert.Equal(t, "Alice", senderCopy.SenderName)
	assert.Equal(t, "Bob", senderCopy.RecipientName)

	recipientCopy := env.messages.get("B", "A", resp.ID)
	require.NotNil(t, recipientCopy)
	assert.True(t, recipientCopy.Unread)
	assert.Equal(t, "hi", recipientCopy.Text)
	// Display fields describe the other side from the recipient's view.
	assert.Equal(t, "Bob", recipientCopy.SenderName)
	assert.Equal(t, "Alice", recipientCopy.RecipientName)
	// Direction is preserved.
	assert.Equal(t, "A", recipientCopy.FromID)
	assert.Equal(t, "B", recipientCopy.ToID)
}

func TestSendMessageUpsertsBothInboxRows(t *testing.T) {
	env := newTestEnv(alice(), bob())

	resp, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	require.NoError(t, err)

	senderRow := env.recent.get("A", "B")
	require.NotNil(t, senderRow)
	assert.Equal(t, "hi", senderRow.LastText)
	assert.Equal(t, resp.ID, senderRow.LastMessageID)
	assert.Equal(t, "Bob", senderRow.PartnerName)
	assert.False(t, senderRow.Unread)

	recipientRow := env.recent.get("B", "A")
	require.NotNil(t, recipientRow)
	assert.Equal(t, "hi", recipientRow.LastText)
	assert.Equal(t, "Alice", recipientRow.PartnerName)
	assert.True(t, recipientRow.Unread)
}

func TestSendMessageReplacesInboxRowPerPartner(t *testing.T) {
	env := newTestEnv(alice(), bob())

	_, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "first"})
	require.NoError(t, err)
	_, err = env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "second"})
	require.NoError(t, err)

	entries, total, err := env.chat.ListRecentMessages(context.Background(), "B", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].LastText)
}

func TestSendMessageRequiresBothIDs(t *testing.T) {
	env := newTestEnv(alice())

	_, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "", Text: "hi"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = env.chat.SendMessage(context.Background(), "", SendMessageInput{RecipientID: "B", Text: "hi"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	// Nothing was written anywhere.
	assert.Nil(t, env.messages.get("A", "B", "any"))
	assert.Nil(t, env.recent.get("A", "B"))
}

func TestSendMessageRejectsSelfChat(t *testing.T) {
	env := newTestEnv(alice())

	_, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "A", Text: "hi"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestSendMessageRejectsUnknownRecipient(t *testing.T) {
	env := newTestEnv(alice())

	_, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "ghost", Text: "hi"})
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestSendMessageToleratesRecipientCopyFailure(t *testing.T) {
	env := newTestEnv(alice(), bob())
	env.messages.failStoresFor("B", "A")

	resp, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	require.NoError(t, err, "a failed sibling write must not fail the send")

	assert.NotNil(t, env.messages.get("A", "B", resp.ID))
	assert.Nil(t, env.messages.get("B", "A", resp.ID))
	// The inbox fan-out still ran.
	assert.NotNil(t, env.recent.get("B", "A"))
}

func TestSendMessageToleratesSenderInboxRowFailure(t *testing.T) {
	env := newTestEnv(alice(), bob())
	env.recent.failUpsertsFor("A")

	resp, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	require.NoError(t, err, "a failed sibling write must not fail the send")

	assert.NotNil(t, env.messages.get("A", "B", resp.ID))
	assert.NotNil(t, env.messages.get("B", "A", resp.ID))
	assert.Nil(t, env.recent.get("A", "B"))
	assert.NotNil(t, env.recent.get("B", "A"))
}

func TestSendMessageToleratesRecipientInboxRowFailure(t *testing.T) {
	env := newTestEnv(alice(), bob())
	env.recent.failUpsertsFor("B")

	resp, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	require.NoError(t, err, "a failed sibling write must not fail the send")

	assert.NotNil(t, env.messages.get("B", "A", resp.ID))
	assert.NotNil(t, env.recent.get("A", "B"))
	assert.Nil(t, env.recent.get("B", "A"))
}

func TestSendMessageFailsWhenSenderCopyFails(t *testing.T) {
	env := newTestEnv(alice(), bob())
	env.messages.failStoresFor("A", "B")

	_, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	assert.True(t, errors.Is(err, "INTERNAL_ERROR"))
}

func TestMarkConversationReadFlipsRowAndMessages(t *testing.T) {
	env := newTestEnv(alice(), bob())

	resp, err := env.chat.SendMessage(context.Background(), "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, env.chat.MarkConversationRead(context.Background(), "B", "A"))

	assert.False(t, env.messages.get("B", "A", resp.ID).Unread)
	assert.False(t, env.recent.get("B", "A").Unread)
}

func TestMarkConversationReadWithoutHistoryStoresNothing(t *testing.T) {
	env := newTestEnv(alice(), bob())

	require.NoError(t, env.chat.MarkConversationRead(context.Background(), "B", "A"))

	assert.Nil(t, env.recent.get("B", "A"), "marking read must not mint an inbox row")
	rows, total, err := env.chat.ListRecentMessages(context.Background(), "B", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, total)
}

func TestMarkMessageReadUnknownIDStoresNothing(t *testing.T) {
	env := newTestEnv(alice(), bob())

	require.NoError(t, env.chat.MarkMessageRead(context.Background(), "B", "A", "no-such-message"))

	assert.Nil(t, env.messages.get("B", "A", "no-such-message"), "marking read must not mint a message")
	messages, total, err := env.chat.ListMessages(context.Background(), "B", "A", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Zero(t, total)
}

func TestUpdateReadReceiptMergesPerParticipant(t *testing.T) {
	env := newTestEnv(alice(), bob())

	require.NoError(t, env.chat.UpdateReadReceipt(context.Background(), "A", "B", "m1"))
	require.NoError(t, env.chat.UpdateReadReceipt(context.Background(), "B", "A", "m2"))

	receipt, err := env.chat.GetReadReceipt(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "m1", receipt.LastReadBy("A"), "B's update must not clobber A's field")
	assert.Equal(t, "m2", receipt.LastReadBy("B"))
}

func TestUpdateReadReceiptIsThrottled(t *testing.T) {
	env := newTestEnv(alice(), bob())

	require.NoError(t, env.chat.UpdateReadReceipt(context.Background(), "A", "B", "m1"))
	// Second immediate write collapses silently.
	require.NoError(t, env.chat.UpdateReadReceipt(context.Background(), "A", "B", "m2"))

	receipt, err := env.chat.GetReadReceipt(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "m1", receipt.LastReadBy("A"))
}

func TestUpdateReadReceiptIgnoresEmptyMessageID(t *testing.T) {
	env := newTestEnv(alice(), bob())

	require.NoError(t, env.chat.UpdateReadReceipt(context.Background(), "A", "B", ""))

	receipt, err := env.chat.GetReadReceipt(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Empty(t, receipt.LastReadBy("A"))
}

// The end-to-end exchange: alice sends "hi", bob opens the conversation and
// reads it, and the shared receipt ends up pointing at that message for bob.
func TestSendAndReadEndToEnd(t *testing.T) {
	env := newTestEnv(alice(), bob())
	ctx := context.Background()

	keyAB, err := entity.ConversationKey("A", "B")
	require.NoError(t, err)
	keyBA, err := entity.ConversationKey("B", "A")
	require.NoError(t, err)
	assert.Equal(t, keyAB, keyBA)

	resp, err := env.chat.SendMessage(ctx, "A", SendMessageInput{RecipientID: "B", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, keyAB, resp.ConversationKey)

	bobMessages, _, err := env.chat.ListMessages(ctx, "B", "A", 0, 0)
	require.NoError(t, err)
	require.Len(t, bobMessages, 1)
	assert.Equal(t, "hi", bobMessages[0].Text)
	assert.True(t, bobMessages[0].Unread)

	aliceRow := env.recent.get("A", "B")
	bobRow := env.recent.get("B", "A")
	require.NotNil(t, aliceRow)
	require.NotNil(t, bobRow)
	assert.Equal(t, "hi", aliceRow.LastText)
	assert.Equal(t, "hi", bobRow.LastText)
	assert.Equal(t, aliceRow.CreatedAt, bobRow.CreatedAt)

	require.NoError(t, env.chat.MarkConversationRead(ctx, "B", "A"))
	require.NoError(t, env.chat.UpdateReadReceipt(ctx, "B", "A", resp.ID))

	receipt, err := env.chat.GetReadReceipt(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, resp.ID, receipt.LastReadBy("B"))
}
