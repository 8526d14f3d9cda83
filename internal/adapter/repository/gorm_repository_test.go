package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"agrolink/internal/domain/entity"
	"agrolink/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := OpenDatabase("sqlite", dsn, false)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createPendingChat(t *testing.T, db *gorm.DB, userID string) *entity.SupportChat {
	t.Helper()

	chat := &entity.SupportChat{UserID: userID, Status: entity.SupportStatusPending, Category: "general", Priority: 1}
	first := &entity.SupportMessage{Content: "help", SenderID: userID, SenderType: entity.SenderTypeUser}
	require.NoError(t, NewGormSupportChatRepository(db).Create(context.Background(), chat, first))
	return chat
}

func TestOpenDatabase_UnknownDriver(t *testing.T) {
	_, err := OpenDatabase("mysql", "", false)
	assert.Error(t, err)
}

func TestSupportChatRepository_CreateStoresChatWithFirstMessage(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSupportChatRepository(db)
	ctx := context.Background()

	chat := createPendingChat(t, db, "u1")
	assert.NotEmpty(t, chat.ID)
	assert.Len(t, chat.Messages, 1)

	stored, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SupportStatusPending, stored.Status)
	assert.Nil(t, stored.AgentID)

	messages, err := repo.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "help", messages[0].Content)
	assert.Equal(t, chat.ID, messages[0].ChatID)
}

func TestSupportChatRepository_GetByIDNotFound(t *testing.T) {
	repo := NewGormSupportChatRepository(newTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	assert.Equal(t, "Support chat not found", errors.ClientMessage(err, "fallback"))
}

func TestSupportChatRepository_AssignIsConditional(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSupportChatRepository(db)
	ctx := context.Background()
	chat := createPendingChat(t, db, "u1")

	ok, err := repo.Assign(ctx, chat.ID, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	// the owner may re-claim
	ok, err = repo.Assign(ctx, chat.ID, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Assign(ctx, chat.ID, "a2")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SupportStatusActive, stored.Status)
	assert.Equal(t, "a1", stored.AssignedAgent())
}

func TestSupportChatRepository_ConcurrentAssignHasOneWinner(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSupportChatRepository(db)
	chat := createPendingChat(t, db, "u1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	for i := 0; i < 8; i++ {
		agentID := fmt.Sprintf("agent-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Assign(context.Background(), chat.ID, agentID)
			if err == nil && ok {
				mu.Lock()
				wins = append(wins, agentID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, wins, 1)
	stored, err := repo.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, wins[0], stored.AssignedAgent())
}

func TestSupportChatRepository_CloseOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSupportChatRepository(db)
	ctx := context.Background()
	chat := createPendingChat(t, db, "u1")

	closed, err := repo.Close(ctx, chat.ID, &entity.SupportMessage{Content: "Chat closed by user", SenderID: "u1", SenderType: entity.SenderTypeUser, Read: true})
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.Close(ctx, chat.ID, &entity.SupportMessage{Content: "again", SenderID: "u1", SenderType: entity.SenderTypeUser})
	require.NoError(t, err)
	assert.False(t, closed)

	messages, err := repo.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2, "the rejected close must not leave a message behind")
	assert.Equal(t, "Chat closed by user", messages[1].Content)
}

func TestSupportChatRepository_AppendMessage(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSupportChatRepository(db)
	ctx := context.Background()
	chat := createPendingChat(t, db, "u1")

	require.NoError(t, repo.AppendMessage(ctx, &entity.SupportMessage{ChatID: chat.ID, Content: "more", SenderID: "u1", SenderType: entity.SenderTypeUser}))

	_, err := repo.Close(ctx, chat.ID, &entity.SupportMessage{Content: "bye", SenderID: "u1", SenderType: entity.SenderTypeUser})
	require.NoError(t, err)

	err = repo.AppendMessage(ctx, &entity.SupportMessage{ChatID: chat.ID, Content: "late", SenderID: "u1", SenderType: entity.SenderTypeUser})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "PRECONDITION_FAILED"))

	err = repo.AppendMessage(ctx, &entity.SupportMessage{ChatID: "missing", Content: "x", SenderID: "u1", SenderType: entity.SenderTypeUser})
	assert.True(t, errors.Is(err, "NOT_FOUND"))

	messages, err := repo.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func TestSupportChatRepository_MarkMessagesRead(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSupportChatRepository(db)
	ctx := context.Background()
	chat := createPendingChat(t, db, "u1")
	require.NoError(t, repo.AppendMessage(ctx, &entity.SupportMessage{ChatID: chat.ID, Content: "hi", SenderID: "a1", SenderType: entity.SenderTypeAgent}))

	require.NoError(t, repo.MarkMessagesRead(ctx, chat.ID, entity.SenderTypeAgent))

	messages, err := repo.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	for _, m := range messages {
		assert.Equal(t, m.SenderType == entity.SenderTypeAgent, m.Read, m.Content)
	}
}

func TestChatRepository_UnreadBookkeeping(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormChatRepository(db)
	ctx := context.Background()

	chat := &entity.ProductChat{AdID: "ad1", ParticipantUserIDs: []string{"buyer", "seller"}}
	require.NoError(t, repo.Create(ctx, chat))
	require.NoError(t, repo.CreateMessage(ctx, &entity.Message{ChatID: chat.ID, SenderID: "seller", Content: "still available"}))
	require.NoError(t, repo.CreateMessage(ctx, &entity.Message{ChatID: chat.ID, SenderID: "buyer", Content: "yes?"}))

	require.NoError(t, repo.IncrementUnread(ctx, chat.ID, "buyer"))
	require.NoError(t, repo.IncrementUnread(ctx, chat.ID, "buyer"))

	p, err := repo.GetParticipant(ctx, chat.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 2, p.UnreadCount)

	require.NoError(t, repo.MarkChatRead(ctx, chat.ID, "buyer"))

	p, err = repo.GetParticipant(ctx, chat.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 0, p.UnreadCount)

	messages, total, err := repo.GetMessagesByChat(ctx, chat.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, m := range messages {
		assert.Equal(t, m.SenderID == "seller", m.Read, "only the other side's messages are marked read")
	}

	stored, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"buyer", "seller"}, stored.ParticipantUserIDs)
}

func TestAgentRepository_OnlineAndCounter(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormAgentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SetOnline(ctx, "a1", true))
	agent, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, agent.IsOnline)

	require.NoError(t, repo.AdjustActiveChats(ctx, "a1", 1))
	require.NoError(t, repo.AdjustActiveChats(ctx, "a1", 1))
	require.NoError(t, repo.AdjustActiveChats(ctx, "a1", -1))
	agent, err = repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, agent.ActiveChats)

	require.NoError(t, repo.AdjustActiveChats(ctx, "a1", -5))
	agent, err = repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, agent.ActiveChats)

	require.NoError(t, repo.SetOnline(ctx, "a1", false))
	agent, err = repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, agent.IsOnline)
	assert.Equal(t, 0, agent.ActiveChats)

	_, err = repo.GetByID(ctx, "nobody")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestNotificationRepository_MarkReadIsOwnerScoped(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormNotificationRepository(db)
	ctx := context.Background()

	mine := &entity.Notification{UserID: "u1", Type: entity.NotificationTypeSupport, Message: "mine", Time: "just now"}
	theirs := &entity.Notification{UserID: "u2", Type: entity.NotificationTypeSupport, Message: "theirs", Time: "just now"}
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, theirs))

	updated, err := repo.MarkRead(ctx, "u1", []string{mine.ID, theirs.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	count, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	count, err = repo.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	list, total, err := repo.ListByUser(ctx, "u2", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)

	updated, err = repo.MarkRead(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
