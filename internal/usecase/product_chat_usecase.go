package usecase

import (
	"context"
	"encoding/json"

	"agrolink/internal/domain/repository"
	"agrolink/internal/infrastructure/presence"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
)

type ProductChatUseCase struct {
	chatRepo  repository.ChatRepository
	registry  presence.Registry
	rooms     RoomMembership
	publisher Publisher
}

func NewProductChatUseCase(
	chatRepo repository.ChatRepository,
	registry presence.Registry,
	rooms RoomMembership,
	publisher Publisher,
) *ProductChatUseCase {
	return &ProductChatUseCase{
		chatRepo:  chatRepo,
		registry:  registry,
		rooms:     rooms,
		publisher: publisher,
	}
}

// JoinChat subscribes a participant to the chat room, marks the other side's
// messages read and resets the caller's unread count. Joining again simply
// re-applies the read marking.
func (uc *ProductChatUseCase) JoinChat(ctx context.Context, caller Caller, chatID string) error {
	if _, err := uc.chatRepo.GetByID(ctx, chatID); err != nil {
		return err
	}
	if _, err := uc.chatRepo.GetParticipant(ctx, chatID, caller.UserID()); err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return errors.Forbidden("You are not a participant in this chat", err)
		}
		return err
	}

	room := ChatRoom(chatID)
	uc.rooms.Join(caller.ConnID, room)

	if err := uc.chatRepo.MarkChatRead(ctx, chatID, caller.UserID()); err != nil {
		logger.Error("JoinChat Error: chat %s user %s: %v", chatID, caller.UserID(), err)
		return err
	}

	uc.publisher.PublishExcept(room, caller.ConnID, EventTypingStopped, TypingPayload{ChatID: chatID, UserID: caller.UserID()})
	return nil
}

// LeaveChat drops the membership and clears any typing indicator the caller
// may have left behind.
func (uc *ProductChatUseCase) LeaveChat(_ context.Context, caller Caller, chatID string) error {
	room := ChatRoom(chatID)
	uc.rooms.Leave(caller.ConnID, room)
	uc.publisher.PublishExcept(room, caller.ConnID, EventTypingStopped, TypingPayload{ChatID: chatID, UserID: caller.UserID()})
	return nil
}

func (uc *ProductChatUseCase) TypingStarted(_ context.Context, caller Caller, chatID string) error {
	uc.publisher.PublishExcept(ChatRoom(chatID), caller.ConnID, EventTypingStarted, TypingPayload{ChatID: chatID, UserID: caller.UserID()})
	return nil
}

func (uc *ProductChatUseCase) TypingStopped(_ context.Context, caller Caller, chatID string) error {
	uc.publisher.PublishExcept(ChatRoom(chatID), caller.ConnID, EventTypingStopped, TypingPayload{ChatID: chatID, UserID: caller.UserID()})
	return nil
}

type NewMessageInput struct {
	ChatID      string
	Message     json.RawMessage
	RecipientID string
}

// NewMessage announces a message the marketplace API has already stored.
// When the recipient's current connection is not in the room their unread
// count goes up by one, however many tabs they have open.
func (uc *ProductChatUseCase) NewMessage(ctx context.Context, caller Caller, input NewMessageInput) error {
	room := ChatRoom(input.ChatID)
	uc.publisher.Publish(room, EventMessageReceived, input.Message)

	if input.RecipientID == "" || input.RecipientID == caller.UserID() {
		return nil
	}

	connID, online, err := uc.registry.UserConnection(ctx, input.RecipientID)
	if err != nil {
		logger.Warn("NewMessage: presence lookup for %s failed: %v", input.RecipientID, err)
	}
	if online && uc.rooms.IsMember(room, connID) {
		return nil
	}

	if err := uc.chatRepo.IncrementUnread(ctx, input.ChatID, input.RecipientID); err != nil {
		logger.Error("NewMessage Error: unread increment for %s in chat %s: %v", input.RecipientID, input.ChatID, err)
		return err
	}
	return nil
}
