package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) chats() *firestore.CollectionRef {
	return r.client.Collection("chats")
}

func (r *firestoreChatRepository) Create(ctx context.Context, chat *entity.ProductChat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	chatRef := r.chats().Doc(chat.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(chatRef, chat); err != nil {
			return err
		}
		for _, userID := range chat.ParticipantUserIDs {
			participant := entity.ChatParticipant{ChatID: chat.ID, UserID: userID}
			if err := tx.Set(chatRef.Collection("participants").Doc(userID), participant); err != nil {
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

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.ProductChat, error) {
	doc, err := r.chats().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	var chat entity.ProductChat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}
	return &chat, nil
}

func (r *firestoreChatRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()

	chatRef := r.chats().Doc(message.ChatID)
	if _, err := chatRef.Collection("messages").Doc(message.ID).Set(ctx, message); err != nil {
		return errors.Internal("Failed to create message", err)
	}
	if _, err := chatRef.Update(ctx, []firestore.Update{{Path: "updatedAt", Value: message.CreatedAt}}); err != nil {
		logger.Warn("CreateMessage: failed to bump updatedAt for chat %s: %v", message.ChatID, err)
	}
	return nil
}

func (r *firestoreChatRepository) GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.chats().Doc(chatID).Collection("messages").OrderBy("createdAt", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages for chat", err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreChatRepository) MarkChatRead(ctx context.Context, chatID, userID string) error {
	chatRef := r.chats().Doc(chatID)
	iter := chatRef.Collection("messages").Where("read", "==", false).Documents(ctx)
	defer iter.Stop()

	writer := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			writer.End()
			return errors.Internal("Failed to iterate unread messages", err)
		}
		if sender, _ := doc.DataAt("senderId"); sender == userID {
			continue
		}
		if _, err := writer.Update(doc.Ref, []firestore.Update{{Path: "read", Value: true}}); err != nil {
			writer.End()
			return errors.Internal("Failed to mark message as read", err)
		}
	}
	writer.End()

	_, err := chatRef.Collection("participants").Doc(userID).Update(ctx, []firestore.Update{{Path: "unreadCount", Value: 0}})
	if err != nil && status.Code(err) != codes.NotFound {
		return errors.Internal("Failed to reset unread count", err)
	}
	return nil
}

func (r *firestoreChatRepository) IncrementUnread(ctx context.Context, chatID, userID string) error {
	_, err := r.chats().Doc(chatID).Collection("participants").Doc(userID).
		Update(ctx, []firestore.Update{{Path: "unreadCount", Value: firestore.Increment(1)}})
	if err != nil && status.Code(err) != codes.NotFound {
		return errors.Internal("Failed to increment unread count", err)
	}
	return nil
}

func (r *firestoreChatRepository) GetParticipant(ctx context.Context, chatID, userID string) (*entity.ChatParticipant, error) {
	doc, err := r.chats().Doc(chatID).Collection("participants").Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat participant", err)
		}
		return nil, errors.Internal("Failed to get chat participant", err)
	}

	var participant entity.ChatParticipant
	if err := doc.DataTo(&participant); err != nil {
		return nil, errors.Internal("Failed to parse participant data", err)
	}
	return &participant, nil
}
