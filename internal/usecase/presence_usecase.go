package usecase

import (
	"context"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/internal/infrastructure/presence"
	"agrolink/pkg/logger"
)

type PresenceUseCase struct {
	registry    presence.Registry
	agentRepo   repository.AgentRepository
	rooms       RoomMembership
	publisher   Publisher
	activeChats *ActiveChatTracker
	journal     Journal
}

func NewPresenceUseCase(
	registry presence.Registry,
	agentRepo repository.AgentRepository,
	rooms RoomMembership,
	publisher Publisher,
	activeChats *ActiveChatTracker,
	journal Journal,
) *PresenceUseCase {
	return &PresenceUseCase{
		registry:    registry,
		agentRepo:   agentRepo,
		rooms:       rooms,
		publisher:   publisher,
		activeChats: activeChats,
		journal:     journal,
	}
}

// Connect runs once a handshake succeeded: the connection joins its personal
// rooms and the identity is registered as reachable.
func (uc *PresenceUseCase) Connect(ctx context.Context, caller Caller) error {
	for _, room := range PersonalRooms(caller.Identity) {
		uc.rooms.Join(caller.ConnID, room)
	}

	switch caller.Identity.Role {
	case entity.RoleAgent:
		return uc.registerAgent(ctx, caller)
	case entity.RoleAdmin:
		return nil
	default:
		return uc.registry.RegisterUser(ctx, caller.UserID(), caller.ConnID)
	}
}

func (uc *PresenceUseCase) registerAgent(ctx context.Context, caller Caller) error {
	agentID := caller.UserID()
	if err := uc.registry.RegisterAgent(ctx, agentID, caller.ConnID); err != nil {
		return err
	}

	if err := uc.agentRepo.SetOnline(ctx, agentID, true); err != nil {
		logger.Error("Connect Error: failed to mark agent %s online: %v", agentID, err)
	}
	uc.publisher.Publish(RoomAdmins, EventAgentStatusChange, AgentStatusPayload{AgentID: agentID, IsOnline: true})
	uc.journal.Record(ctx, "agent_online", "", agentID, nil)
	return nil
}

// Disconnect unregisters the connection. An agent whose last connection
// closed is marked offline and every chat it staffs is reported to admins;
// nothing is reassigned automatically.
func (uc *PresenceUseCase) Disconnect(ctx context.Context, caller Caller) error {
	last, err := uc.registry.Unregister(ctx, caller.Identity, caller.ConnID)
	if err != nil {
		return err
	}
	if !caller.Identity.IsAgent() || !last {
		return nil
	}

	agentID := caller.UserID()
	if err := uc.agentRepo.SetOnline(ctx, agentID, false); err != nil {
		logger.Error("Disconnect Error: failed to mark agent %s offline: %v", agentID, err)
	}
	uc.publisher.Publish(RoomAdmins, EventAgentStatusChange, AgentStatusPayload{AgentID: agentID, IsOnline: false})

	for _, chatID := range uc.activeChats.ChatsOf(agentID) {
		uc.publisher.Publish(RoomAdmins, EventAgentDisconnectedFromChat, AgentChatPayload{ChatID: chatID, AgentID: agentID})
	}
	uc.journal.Record(ctx, "agent_offline", "", agentID, nil)
	return nil
}

// Touch keeps the caller's presence entry alive.
func (uc *PresenceUseCase) Touch(ctx context.Context, caller Caller) {
	if err := uc.registry.Touch(ctx, caller.Identity, caller.ConnID); err != nil {
		logger.Warn("Touch: presence refresh for %s failed: %v", caller.UserID(), err)
	}
}

func (uc *PresenceUseCase) IsUserReachable(ctx context.Context, userID string) (bool, error) {
	return uc.registry.IsUserReachable(ctx, userID)
}

func (uc *PresenceUseCase) OnlineAgents(ctx context.Context) ([]string, error) {
	return uc.registry.OnlineAgents(ctx)
}

func (uc *PresenceUseCase) GetAgent(ctx context.Context, agentID string) (*entity.Agent, error) {
	return uc.agentRepo.GetByID(ctx, agentID)
}
