package repository

import (
	"context"

	"agrolink/internal/domain/entity"
)

// ChatRepository stores product chats. Chats and their messages are written
// by the marketplace's request/response API; the realtime core only reads
// them and maintains read flags and unread counters.
type ChatRepository interface {
	Create(ctx context.Context, chat *entity.ProductChat) error
	GetByID(ctx context.Context, id string) (*entity.ProductChat, error)
	CreateMessage(ctx context.Context, message *entity.Message) error
	GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)

	// MarkChatRead flags every message in the chat not sent by userID as read
	// and resets that participant's unread count to zero.
	MarkChatRead(ctx context.Context, chatID, userID string) error
	IncrementUnread(ctx context.Context, chatID, userID string) error
	GetParticipant(ctx context.Context, chatID, userID string) (*entity.ChatParticipant, error)
}
