package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
)

var errAlreadyClosed = stderrors.New("support chat already closed")

type gormSupportChatRepository struct {
	db *gorm.DB
}

func NewGormSupportChatRepository(db *gorm.DB) repository.SupportChatRepository {
	return &gormSupportChatRepository{db: db}
}

func (r *gormSupportChatRepository) Create(ctx context.Context, chat *entity.SupportChat, first *entity.SupportMessage) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	if first.ID == "" {
		first.ID = uuid.New().String()
	}
	first.ChatID = chat.ID
	first.CreatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(chat).Error; err != nil {
			return err
		}
		return tx.Create(first).Error
	})
	if err != nil {
		return errors.Internal("Failed to create support chat", err)
	}
	chat.Messages = []entity.SupportMessage{*first}
	return nil
}

func (r *gormSupportChatRepository) GetByID(ctx context.Context, id string) (*entity.SupportChat, error) {
	var chat entity.SupportChat
	if err := r.db.WithContext(ctx).First(&chat, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Support chat", err)
		}
		return nil, errors.Internal("Failed to get support chat", err)
	}
	return &chat, nil
}

func (r *gormSupportChatRepository) GetMessages(ctx context.Context, chatID string) ([]*entity.SupportMessage, error) {
	var messages []*entity.SupportMessage
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC").Find(&messages).Error
	if err != nil {
		return nil, errors.Internal("Failed to get support messages", err)
	}
	return messages, nil
}

func (r *gormSupportChatRepository) AppendMessage(ctx context.Context, message *entity.SupportMessage) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.SupportChat{}).
			Where("id = ? AND status <> ?", message.ChatID, entity.SupportStatusClosed).
			Update("updated_at", message.CreatedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&entity.SupportChat{}).Where("id = ?", message.ChatID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return errors.NotFound("Support chat", nil)
			}
			return errors.PreconditionFailed("Cannot send messages to a closed chat")
		}
		return tx.Create(message).Error
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return appErr
		}
		return errors.Internal("Failed to save message", err)
	}
	return nil
}

func (r *gormSupportChatRepository) Assign(ctx context.Context, chatID, agentID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.SupportChat{}).
		Where("id = ? AND (status = ? OR (status = ? AND agent_id = ?))",
			chatID, entity.SupportStatusPending, entity.SupportStatusActive, agentID).
		Updates(map[string]interface{}{
			"agent_id":   agentID,
			"status":     entity.SupportStatusActive,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Internal("Failed to assign support chat", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *gormSupportChatRepository) Close(ctx context.Context, chatID string, closing *entity.SupportMessage) (bool, error) {
	if closing.ID == "" {
		closing.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	closing.ChatID = chatID
	closing.CreatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(closing).Error; err != nil {
			return err
		}
		result := tx.Model(&entity.SupportChat{}).
			Where("id = ? AND status <> ?", chatID, entity.SupportStatusClosed).
			Updates(map[string]interface{}{
				"status":     entity.SupportStatusClosed,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errAlreadyClosed
		}
		return nil
	})
	if stderrors.Is(err, errAlreadyClosed) {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal("Failed to close support chat", err)
	}
	return true, nil
}

func (r *gormSupportChatRepository) MarkMessagesRead(ctx context.Context, chatID string, senderType entity.SenderType) error {
	err := r.db.WithContext(ctx).Model(&entity.SupportMessage{}).
		Where("chat_id = ? AND sender_type = ?", chatID, senderType).
		Where(clause.Eq{Column: clause.Column{Name: "read"}, Value: false}).
		Update("read", true).Error
	if err != nil {
		return errors.Internal("Failed to mark support messages as read", err)
	}
	return nil
}
