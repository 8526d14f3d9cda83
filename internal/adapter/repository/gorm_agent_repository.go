package repository

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
)

type gormAgentRepository struct {
	db *gorm.DB
}

func NewGormAgentRepository(db *gorm.DB) repository.AgentRepository {
	return &gormAgentRepository{db: db}
}

func (r *gormAgentRepository) GetByID(ctx context.Context, id string) (*entity.Agent, error) {
	var agent entity.Agent
	if err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Agent", err)
		}
		return nil, errors.Internal("Failed to get agent", err)
	}
	return &agent, nil
}

func (r *gormAgentRepository) SetOnline(ctx context.Context, agentID string, online bool) error {
	agent := entity.Agent{
		ID:         agentID,
		IsOnline:   online,
		LastActive: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_active"}),
	}).Create(&agent).Error
	if err != nil {
		return errors.Internal("Failed to update agent status", err)
	}
	return nil
}

func (r *gormAgentRepository) AdjustActiveChats(ctx context.Context, agentID string, delta int) error {
	err := r.db.WithContext(ctx).Model(&entity.Agent{}).
		Where("id = ?", agentID).
		UpdateColumn("active_chats",
			gorm.Expr("CASE WHEN active_chats + ? < 0 THEN 0 ELSE active_chats + ? END", delta, delta)).Error
	if err != nil {
		return errors.Internal("Failed to update agent chat count", err)
	}
	return nil
}
