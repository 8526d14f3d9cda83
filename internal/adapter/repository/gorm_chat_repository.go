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

type gormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) repository.ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) Create(ctx context.Context, chat *entity.ProductChat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(chat).Error; err != nil {
			return err
		}
		for _, userID := range chat.ParticipantUserIDs {
			participant := entity.ChatParticipant{ChatID: chat.ID, UserID: userID}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Internal("Failed to create chat", err)
	}
	return nil
}

func (r *gormChatRepository) GetByID(ctx context.Context, id string) (*entity.ProductChat, error) {
	var chat entity.ProductChat
	err := r.db.WithContext(ctx).Preload("Participants").First(&chat, "id = ?", id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	chat.ParticipantUserIDs = make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		chat.ParticipantUserIDs = append(chat.ParticipantUserIDs, p.UserID)
	}
	return &chat, nil
}

func (r *gormChatRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&entity.ProductChat{}).
			Where("id = ?", message.ChatID).
			Update("updated_at", message.CreatedAt).Error
	})
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *gormChatRepository) GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&entity.Message{}).Where("chat_id = ?", chatID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Internal("Failed to count messages for chat", err)
	}

	var messages []*entity.Message
	query = r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, 0, errors.Internal("Failed to get messages", err)
	}
	return messages, total, nil
}

func (r *gormChatRepository) MarkChatRead(ctx context.Context, chatID, userID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.Message{}).
			Where("chat_id = ? AND sender_id <> ?", chatID, userID).
			Where(clause.Eq{Column: clause.Column{Name: "read"}, Value: false}).
			Update("read", true).Error
		if err != nil {
			return err
		}
		return tx.Model(&entity.ChatParticipant{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Update("unread_count", 0).Error
	})
	if err != nil {
		return errors.Internal("Failed to mark messages as read", err)
	}
	return nil
}

func (r *gormChatRepository) IncrementUnread(ctx context.Context, chatID, userID string) error {
	err := r.db.WithContext(ctx).Model(&entity.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
	if err != nil {
		return errors.Internal("Failed to increment unread count", err)
	}
	return nil
}

func (r *gormChatRepository) GetParticipant(ctx context.Context, chatID, userID string) (*entity.ChatParticipant, error) {
	var participant entity.ChatParticipant
	err := r.db.WithContext(ctx).First(&participant, "chat_id = ? AND user_id = ?", chatID, userID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Chat participant", err)
		}
		return nil, errors.Internal("Failed to get chat participant", err)
	}
	return &participant, nil
}
