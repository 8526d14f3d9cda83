package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
)

type gormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	notification.CreatedAt = time.Now().UTC()

	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return errors.Internal("Failed to create notification", err)
	}
	return nil
}

func (r *gormNotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, errors.Internal("Failed to count notifications", err)
	}

	var notifications []*entity.Notification
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, errors.Internal("Failed to list notifications", err)
	}
	return notifications, total, nil
}

func (r *gormNotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("read", true)
	if result.Error != nil {
		return 0, errors.Internal("Failed to mark notifications as read", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("user_id = ?", userID).
		Where(clause.Eq{Column: clause.Column{Name: "read"}, Value: false}).
		Count(&count).Error
	if err != nil {
		return 0, errors.Internal("Failed to count unread notifications", err)
	}
	return count, nil
}
