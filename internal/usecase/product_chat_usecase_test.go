package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolink/internal/adapter/repository"
	"agrolink/internal/domain/entity"
	domainrepo "agrolink/internal/domain/repository"
	"agrolink/internal/infrastructure/presence"
	"agrolink/pkg/errors"
)

type productChatFixture struct {
	uc       *ProductChatUseCase
	hub      *hub
	registry *presence.MemoryRegistry
	chatRepo domainrepo.ChatRepository
	chat     *entity.ProductChat
}

func newProductChatFixture(t *testing.T) *productChatFixture {
	t.Helper()

	f := &productChatFixture{
		hub:      newHub(),
		registry: presence.NewMemoryRegistry(),
		chatRepo: repository.NewGormChatRepository(newTestDB(t)),
	}
	f.uc = NewProductChatUseCase(f.chatRepo, f.registry, f.hub, f.hub)

	f.chat = &entity.ProductChat{AdID: "ad-maize", ParticipantUserIDs: []string{"buyer", "seller"}}
	require.NoError(t, f.chatRepo.Create(context.Background(), f.chat))
	return f
}

func (f *productChatFixture) connect(t *testing.T, caller Caller) {
	t.Helper()
	require.NoError(t, f.registry.RegisterUser(context.Background(), caller.UserID(), caller.ConnID))
}

func (f *productChatFixture) unread(t *testing.T, userID string) int {
	t.Helper()
	p, err := f.chatRepo.GetParticipant(context.Background(), f.chat.ID, userID)
	require.NoError(t, err)
	return p.UnreadCount
}

func (f *productChatFixture) send(t *testing.T, from Caller, to string) {
	t.Helper()
	require.NoError(t, f.uc.NewMessage(context.Background(), from, NewMessageInput{
		ChatID:      f.chat.ID,
		Message:     json.RawMessage(`{"content":"Is the maize still available?"}`),
		RecipientID: to,
	}))
}

func TestNewMessage_BroadcastsToRoom(t *testing.T) {
	f := newProductChatFixture(t)
	buyer := userCaller("buyer", "conn-b")

	f.send(t, buyer, "seller")

	received := f.hub.findIn(ChatRoom(f.chat.ID), EventMessageReceived)
	require.Len(t, received, 1)
	assert.JSONEq(t, `{"content":"Is the maize still available?"}`, string(received[0].Payload.(json.RawMessage)))
}

func TestNewMessage_UnreadOnlyWhenRecipientAway(t *testing.T) {
	f := newProductChatFixture(t)
	buyer := userCaller("buyer", "conn-b")
	seller := userCaller("seller", "conn-s")

	// offline
	f.send(t, buyer, "seller")
	assert.Equal(t, 1, f.unread(t, "seller"))

	// online but not looking at the chat
	f.connect(t, seller)
	f.send(t, buyer, "seller")
	assert.Equal(t, 2, f.unread(t, "seller"))

	// in the room; joining also resets the counter
	require.NoError(t, f.uc.JoinChat(context.Background(), seller, f.chat.ID))
	assert.Equal(t, 0, f.unread(t, "seller"))
	f.send(t, buyer, "seller")
	assert.Equal(t, 0, f.unread(t, "seller"))
}

func TestNewMessage_LatestConnectionDecides(t *testing.T) {
	f := newProductChatFixture(t)
	buyer := userCaller("buyer", "conn-b")
	sellerTab1 := userCaller("seller", "conn-s1")
	sellerTab2 := userCaller("seller", "conn-s2")

	f.connect(t, sellerTab1)
	require.NoError(t, f.uc.JoinChat(context.Background(), sellerTab1, f.chat.ID))
	f.connect(t, sellerTab2)

	f.send(t, buyer, "seller")
	assert.Equal(t, 1, f.unread(t, "seller"), "the newest tab is not in the room")

	require.NoError(t, f.uc.JoinChat(context.Background(), sellerTab2, f.chat.ID))
	f.send(t, buyer, "seller")
	assert.Equal(t, 0, f.unread(t, "seller"))
}

func TestNewMessage_NoRecipientOrSelf(t *testing.T) {
	f := newProductChatFixture(t)
	buyer := userCaller("buyer", "conn-b")

	f.send(t, buyer, "")
	f.send(t, buyer, "buyer")

	assert.Equal(t, 0, f.unread(t, "buyer"))
	assert.Equal(t, 0, f.unread(t, "seller"))
	assert.Len(t, f.hub.find(EventMessageReceived), 2)
}

func TestJoinChat_MarksOtherSideRead(t *testing.T) {
	f := newProductChatFixture(t)
	ctx := context.Background()
	require.NoError(t, f.chatRepo.CreateMessage(ctx, &entity.Message{ChatID: f.chat.ID, SenderID: "buyer", Content: "hello"}))
	require.NoError(t, f.chatRepo.CreateMessage(ctx, &entity.Message{ChatID: f.chat.ID, SenderID: "seller", Content: "hi"}))

	require.NoError(t, f.uc.JoinChat(ctx, userCaller("seller", "conn-s"), f.chat.ID))

	messages, _, err := f.chatRepo.GetMessagesByChat(ctx, f.chat.ID, 10, 0)
	require.NoError(t, err)
	for _, m := range messages {
		assert.Equal(t, m.SenderID == "buyer", m.Read, m.Content)
	}

	stopped := f.hub.findIn(ChatRoom(f.chat.ID), EventTypingStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "conn-s", stopped[0].Except)
}

func TestJoinChat_RejectsNonParticipants(t *testing.T) {
	f := newProductChatFixture(t)
	ctx := context.Background()
	f.connect(t, userCaller("seller", "conn-s"))
	f.send(t, userCaller("buyer", "conn-b"), "seller")
	require.NoError(t, f.chatRepo.CreateMessage(ctx, &entity.Message{ChatID: f.chat.ID, SenderID: "buyer", Content: "hello"}))

	stranger := userCaller("stranger", "conn-x")
	err := f.uc.JoinChat(ctx, stranger, f.chat.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.False(t, f.hub.IsMember(ChatRoom(f.chat.ID), "conn-x"))

	messages, _, err := f.chatRepo.GetMessagesByChat(ctx, f.chat.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.False(t, messages[0].Read)
	assert.Equal(t, 1, f.unread(t, "seller"))

	err = f.uc.JoinChat(ctx, userCaller("buyer", "conn-b"), "missing")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	assert.Empty(t, f.hub.find(EventTypingStopped))
}

func TestTypingIndicators(t *testing.T) {
	f := newProductChatFixture(t)
	buyer := userCaller("buyer", "conn-b")
	ctx := context.Background()

	require.NoError(t, f.uc.TypingStarted(ctx, buyer, f.chat.ID))
	require.NoError(t, f.uc.TypingStopped(ctx, buyer, f.chat.ID))
	require.NoError(t, f.uc.LeaveChat(ctx, buyer, f.chat.ID))

	started := f.hub.find(EventTypingStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "conn-b", started[0].Except)
	assert.Equal(t, TypingPayload{ChatID: f.chat.ID, UserID: "buyer"}, started[0].Payload)

	// explicit stop plus the one implied by leaving
	assert.Len(t, f.hub.find(EventTypingStopped), 2)
	assert.False(t, f.hub.IsMember(ChatRoom(f.chat.ID), "conn-b"))
}
