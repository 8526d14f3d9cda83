package usecase

import (
	"context"
	stderrors "errors"
	"fmt"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
	"agrolink/pkg/metrics"
)

// DefaultNotificationTime labels notifications created without an explicit time.
const DefaultNotificationTime = "just now"

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	publisher        Publisher
}

func NewNotificationUseCase(notificationRepo repository.NotificationRepository, publisher Publisher) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		publisher:        publisher,
	}
}

// CreateNotification persists an unread notification without pushing it.
func (uc *NotificationUseCase) CreateNotification(ctx context.Context, userID, notificationType, message, timeLabel string) (*entity.Notification, error) {
	if timeLabel == "" {
		timeLabel = DefaultNotificationTime
	}

	notification := &entity.Notification{
		UserID:  userID,
		Type:    notificationType,
		Message: message,
		Time:    timeLabel,
		Read:    false,
	}
	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		logger.Error("CreateNotification Error: user %s: %v", userID, err)
		return nil, err
	}

	metrics.RecordNotification(notificationType)
	return notification, nil
}

// SendRealTimeNotification persists the notification and then pushes it to
// the user's personal room. The push is dropped when the user is offline;
// the stored record stays available through ListNotifications.
func (uc *NotificationUseCase) SendRealTimeNotification(ctx context.Context, userID, notificationType, message, timeLabel string) (*entity.Notification, error) {
	notification, err := uc.CreateNotification(ctx, userID, notificationType, message, timeLabel)
	if err != nil {
		return nil, err
	}

	uc.publisher.Publish(UserRoom(userID), EventNotificationReceived, notification)
	return notification, nil
}

// BroadcastNotification applies the single-user path once per id. A failure
// for one user does not undo deliveries already made to others; the failures
// are returned joined.
func (uc *NotificationUseCase) BroadcastNotification(ctx context.Context, userIDs []string, notificationType, message string) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, userID := range userIDs {
		if _, err := uc.SendRealTimeNotification(ctx, userID, notificationType, message, ""); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		sent++
	}
	return sent, stderrors.Join(errs...)
}

// MarkNotificationsAsRead is scoped to userID: ids owned by anyone else are
// silently ignored.
func (uc *NotificationUseCase) MarkNotificationsAsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	updated, err := uc.notificationRepo.MarkRead(ctx, userID, ids)
	if err != nil {
		logger.Error("MarkNotificationsAsRead Error: user %s: %v", userID, err)
		return 0, err
	}
	return updated, nil
}

func (uc *NotificationUseCase) GetUnreadNotificationCount(ctx context.Context, userID string) (int64, error) {
	return uc.notificationRepo.CountUnread(ctx, userID)
}

func (uc *NotificationUseCase) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, int64, error) {
	return uc.notificationRepo.ListByUser(ctx, userID, limit, offset)
}

type SendNotificationInput struct {
	UserID  string
	Type    string
	Message string
	Time    string
}

// SendNotification handles a notification pushed by a connected agent or admin.
func (uc *NotificationUseCase) SendNotification(ctx context.Context, caller Caller, input SendNotificationInput) (*entity.Notification, error) {
	if !caller.Identity.IsStaff() {
		return nil, errors.Forbidden("Unauthorized: Only agents and admins can send notifications", nil)
	}
	return uc.SendRealTimeNotification(ctx, input.UserID, input.Type, input.Message, input.Time)
}

type BroadcastNotificationInput struct {
	UserIDs []string
	Type    string
	Message string
}

func (uc *NotificationUseCase) Broadcast(ctx context.Context, caller Caller, input BroadcastNotificationInput) (int, error) {
	if !caller.Identity.IsAdmin() {
		return 0, errors.Forbidden("Unauthorized: Only admins can broadcast notifications", nil)
	}

	sent, err := uc.BroadcastNotification(ctx, input.UserIDs, input.Type, input.Message)
	if err != nil {
		logger.Warn("Broadcast: %d of %d notifications sent: %v", sent, len(input.UserIDs), err)
	}
	return sent, nil
}

func (uc *NotificationUseCase) NotifyAdApproved(ctx context.Context, userID, adTitle string) (*entity.Notification, error) {
	return uc.SendRealTimeNotification(ctx, userID, entity.NotificationTypeAd,
		fmt.Sprintf("🎉 Your ad '%s' has been approved!", adTitle), "")
}

func (uc *NotificationUseCase) NotifyPromotionExpiry(ctx context.Context, userID string, daysLeft int) (*entity.Notification, error) {
	return uc.SendRealTimeNotification(ctx, userID, entity.NotificationTypePromotion,
		fmt.Sprintf("⏳ Your featured ad boost expires in %d days!", daysLeft), "")
}

func (uc *NotificationUseCase) NotifyPaymentSucceeded(ctx context.Context, userID, item string) (*entity.Notification, error) {
	return uc.SendRealTimeNotification(ctx, userID, entity.NotificationTypePayment,
		fmt.Sprintf("✅ Payment for %s was successful.", item), "")
}

func (uc *NotificationUseCase) NotifyPaymentFailed(ctx context.Context, userID, item string) (*entity.Notification, error) {
	return uc.SendRealTimeNotification(ctx, userID, entity.NotificationTypePaymentFailed,
		fmt.Sprintf("⚠️ Your payment for '%s' failed.", item), "")
}
