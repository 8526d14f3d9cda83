package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
)

type firestoreAgentRepository struct {
	client *firestore.Client
}

func NewFirestoreAgentRepository(client *firestore.Client) repository.AgentRepository {
	return &firestoreAgentRepository{client: client}
}

func (r *firestoreAgentRepository) GetByID(ctx context.Context, id string) (*entity.Agent, error) {
	doc, err := r.client.Collection("agents").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Agent", err)
		}
		return nil, errors.Internal("Failed to get agent", err)
	}

	var agent entity.Agent
	if err := doc.DataTo(&agent); err != nil {
		return nil, errors.Internal("Failed to parse agent data", err)
	}
	return &agent, nil
}

func (r *firestoreAgentRepository) SetOnline(ctx context.Context, agentID string, online bool) error {
	_, err := r.client.Collection("agents").Doc(agentID).Set(ctx, map[string]interface{}{
		"id":         agentID,
		"isOnline":   online,
		"lastActive": time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update agent status", err)
	}
	return nil
}

func (r *firestoreAgentRepository) AdjustActiveChats(ctx context.Context, agentID string, delta int) error {
	ref := r.client.Collection("agents").Doc(agentID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		var agent entity.Agent
		if err := doc.DataTo(&agent); err != nil {
			return err
		}
		next := agent.ActiveChats + delta
		if next < 0 {
			next = 0
		}
		return tx.Update(ref, []firestore.Update{{Path: "activeChats", Value: next}})
	})
	if err != nil {
		return errors.Internal("Failed to update agent chat count", err)
	}
	return nil
}
