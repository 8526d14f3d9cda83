package repository

import (
	"context"
	stderrors "errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
)

type firestoreSupportChatRepository struct {
	client *firestore.Client
}

func NewFirestoreSupportChatRepository(client *firestore.Client) repository.SupportChatRepository {
	return &firestoreSupportChatRepository{client: client}
}

func (r *firestoreSupportChatRepository) chats() *firestore.CollectionRef {
	return r.client.Collection("supportChats")
}

func (r *firestoreSupportChatRepository) Create(ctx context.Context, chat *entity.SupportChat, first *entity.SupportMessage) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	if first.ID == "" {
		first.ID = uuid.New().String()
	}
	first.ChatID = chat.ID
	first.CreatedAt = now

	chatRef := r.chats().Doc(chat.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(chatRef, chat); err != nil {
			return err
		}
		return tx.Create(chatRef.Collection("messages").Doc(first.ID), first)
	})
	if err != nil {
		return errors.Internal("Failed to create support chat", err)
	}
	chat.Messages = []entity.SupportMessage{*first}
	return nil
}

func (r *firestoreSupportChatRepository) GetByID(ctx context.Context, id string) (*entity.SupportChat, error) {
	doc, err := r.chats().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Support chat", err)
		}
		return nil, errors.Internal("Failed to get support chat", err)
	}
	return decodeSupportChat(doc)
}

func (r *firestoreSupportChatRepository) GetMessages(ctx context.Context, chatID string) ([]*entity.SupportMessage, error) {
	iter := r.chats().Doc(chatID).Collection("messages").OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var messages []*entity.SupportMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate support messages", err)
		}
		var message entity.SupportMessage
		if err := doc.DataTo(&message); err != nil {
			return nil, errors.Internal("Failed to parse support message", err)
		}
		messages = append(messages, &message)
	}
	return messages, nil
}

func (r *firestoreSupportChatRepository) AppendMessage(ctx context.Context, message *entity.SupportMessage) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()

	chatRef := r.chats().Doc(message.ChatID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(chatRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Support chat", err)
			}
			return err
		}
		chat, err := decodeSupportChat(doc)
		if err != nil {
			return err
		}
		if chat.Status == entity.SupportStatusClosed {
			return errors.PreconditionFailed("Cannot send messages to a closed chat")
		}
		if err := tx.Create(chatRef.Collection("messages").Doc(message.ID), message); err != nil {
			return err
		}
		return tx.Update(chatRef, []firestore.Update{{Path: "updatedAt", Value: message.CreatedAt}})
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

func (r *firestoreSupportChatRepository) Assign(ctx context.Context, chatID, agentID string) (bool, error) {
	chatRef := r.chats().Doc(chatID)
	assigned := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		assigned = false
		doc, err := tx.Get(chatRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		chat, err := decodeSupportChat(doc)
		if err != nil {
			return err
		}
		if chat.Status != entity.SupportStatusPending &&
			!(chat.Status == entity.SupportStatusActive && chat.IsAssignedTo(agentID)) {
			return nil
		}
		assigned = true
		return tx.Update(chatRef, []firestore.Update{
			{Path: "agentId", Value: agentID},
			{Path: "status", Value: entity.SupportStatusActive},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	if err != nil {
		return false, errors.Internal("Failed to assign support chat", err)
	}
	return assigned, nil
}

func (r *firestoreSupportChatRepository) Close(ctx context.Context, chatID string, closing *entity.SupportMessage) (bool, error) {
	if closing.ID == "" {
		closing.ID = uuid.New().String()
	}
	now := time.Now()
	closing.ChatID = chatID
	closing.CreatedAt = now

	chatRef := r.chats().Doc(chatID)
	closed := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		closed = false
		doc, err := tx.Get(chatRef)
		if err != nil {
			return err
		}
		chat, err := decodeSupportChat(doc)
		if err != nil {
			return err
		}
		if chat.Status == entity.SupportStatusClosed {
			return nil
		}
		if err := tx.Create(chatRef.Collection("messages").Doc(closing.ID), closing); err != nil {
			return err
		}
		closed = true
		return tx.Update(chatRef, []firestore.Update{
			{Path: "status", Value: entity.SupportStatusClosed},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return false, errors.Internal("Failed to close support chat", err)
	}
	return closed, nil
}

func (r *firestoreSupportChatRepository) MarkMessagesRead(ctx context.Context, chatID string, senderType entity.SenderType) error {
	iter := r.chats().Doc(chatID).Collection("messages").
		Where("senderType", "==", string(senderType)).
		Where("read", "==", false).
		Documents(ctx)
	defer iter.Stop()

	writer := r.client.BulkWriter(ctx)
	defer writer.End()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return errors.Internal("Failed to iterate support messages", err)
		}
		if _, err := writer.Update(doc.Ref, []firestore.Update{{Path: "read", Value: true}}); err != nil {
			return errors.Internal("Failed to mark support message as read", err)
		}
	}
}

func decodeSupportChat(doc *firestore.DocumentSnapshot) (*entity.SupportChat, error) {
	var chat entity.SupportChat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse support chat data", err)
	}
	return &chat, nil
}
