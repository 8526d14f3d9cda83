package repository

import (
	"context"

	"agrolink/internal/domain/entity"
)

type SupportChatRepository interface {
	// Create stores a pending chat together with its first message.
	Create(ctx context.Context, chat *entity.SupportChat, first *entity.SupportMessage) error
	GetByID(ctx context.Context, id string) (*entity.SupportChat, error)
	GetMessages(ctx context.Context, chatID string) ([]*entity.SupportMessage, error)

	// AppendMessage stores message and bumps the chat's updatedAt, but only
	// while the chat is not closed. A closed chat yields PRECONDITION_FAILED.
	AppendMessage(ctx context.Context, message *entity.SupportMessage) error

	// Assign sets agentID and status=active where the chat is pending or is
	// already active under the same agent. It reports false when no row
	// matched, leaving the chat untouched.
	Assign(ctx context.Context, chatID, agentID string) (bool, error)

	// Close stores the closing message and flips status to closed in one unit,
	// guarded by status != closed. It reports false when the chat was
	// already closed.
	Close(ctx context.Context, chatID string, closing *entity.SupportMessage) (bool, error)

	// MarkMessagesRead flags unread messages of the given sender type as read.
	MarkMessagesRead(ctx context.Context, chatID string, senderType entity.SenderType) error
}

type AgentRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Agent, error)
	// SetOnline upserts the agent record and stamps lastActive.
	SetOnline(ctx context.Context, agentID string, online bool) error
	// AdjustActiveChats adds delta to the agent's counter, never going below zero.
	AdjustActiveChats(ctx context.Context, agentID string, delta int) error
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, int64, error)
	// MarkRead only touches rows owned by userID and returns how many changed.
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}
