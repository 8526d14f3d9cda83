package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolink/internal/adapter/repository"
	"agrolink/internal/domain/entity"
	"agrolink/pkg/errors"
)

func newNotificationFixture(t *testing.T) (*NotificationUseCase, *hub) {
	t.Helper()
	h := newHub()
	return NewNotificationUseCase(repository.NewGormNotificationRepository(newTestDB(t)), h), h
}

func TestSendRealTimeNotification(t *testing.T) {
	uc, h := newNotificationFixture(t)
	ctx := context.Background()

	n, err := uc.SendRealTimeNotification(ctx, "u1", entity.NotificationTypeSystem, "Scheduled maintenance", "")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)
	assert.Equal(t, DefaultNotificationTime, n.Time)

	pushed := h.findIn(UserRoom("u1"), EventNotificationReceived)
	require.Len(t, pushed, 1)
	assert.Equal(t, n, pushed[0].Payload)

	count, err := uc.GetUnreadNotificationCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCreateNotification_DoesNotPush(t *testing.T) {
	uc, h := newNotificationFixture(t)

	_, err := uc.CreateNotification(context.Background(), "u1", entity.NotificationTypeMessage, "queued", "2 hours ago")
	require.NoError(t, err)
	assert.Empty(t, h.find(EventNotificationReceived))

	list, total, err := uc.ListNotifications(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "2 hours ago", list[0].Time)
}

func TestSendNotification_StaffOnly(t *testing.T) {
	uc, _ := newNotificationFixture(t)
	ctx := context.Background()
	input := SendNotificationInput{UserID: "u2", Type: entity.NotificationTypeSystem, Message: "hi"}

	_, err := uc.SendNotification(ctx, userCaller("u1", "c1"), input)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = uc.SendNotification(ctx, agentCaller("a1", "c2", ""), input)
	assert.NoError(t, err)

	_, err = uc.SendNotification(ctx, adminCaller("admin1", "c3"), input)
	assert.NoError(t, err)
}

func TestBroadcast_AdminOnly(t *testing.T) {
	uc, h := newNotificationFixture(t)
	ctx := context.Background()
	input := BroadcastNotificationInput{UserIDs: []string{"u1", "u2", "u3"}, Type: entity.NotificationTypeSystem, Message: "Market opens at 6am"}

	_, err := uc.Broadcast(ctx, agentCaller("a1", "c1", ""), input)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	sent, err := uc.Broadcast(ctx, adminCaller("admin1", "c2"), input)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Len(t, h.find(EventNotificationReceived), 3)
}

func TestMarkNotificationsAsRead_ScopedToOwner(t *testing.T) {
	uc, _ := newNotificationFixture(t)
	ctx := context.Background()

	mine, err := uc.CreateNotification(ctx, "u1", entity.NotificationTypeSystem, "mine", "")
	require.NoError(t, err)
	theirs, err := uc.CreateNotification(ctx, "u2", entity.NotificationTypeSystem, "theirs", "")
	require.NoError(t, err)

	updated, err := uc.MarkNotificationsAsRead(ctx, "u1", []string{mine.ID, theirs.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	count, err := uc.GetUnreadNotificationCount(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDomainNotificationHelpers(t *testing.T) {
	uc, _ := newNotificationFixture(t)
	ctx := context.Background()

	n, err := uc.NotifyAdApproved(ctx, "u1", "Fresh cassava")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationTypeAd, n.Type)
	assert.Contains(t, n.Message, "Fresh cassava")

	n, err = uc.NotifyPromotionExpiry(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Contains(t, n.Message, "3 days")

	n, err = uc.NotifyPaymentFailed(ctx, "u1", "Boost")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationTypePaymentFailed, n.Type)

	n, err = uc.NotifyPaymentSucceeded(ctx, "u1", "Boost")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationTypePayment, n.Type)
}
