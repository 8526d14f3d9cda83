package usecase

import (
	"context"
	"fmt"
	"time"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/internal/infrastructure/presence"
	"agrolink/internal/infrastructure/ratelimit"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
	"agrolink/pkg/metrics"
	"agrolink/pkg/utils"
)

const (
	DefaultSupportCategory = "general"
	DefaultSupportPriority = 1
	DefaultSupportContent  = "I need help with my account"

	// notificationPreviewLength is how much of a message a notification quotes.
	notificationPreviewLength = 30
)

const (
	msgNoAgentsEvent        = "No support agents are currently available. Please try again later or submit a support ticket."
	msgNoAgentsNotification = "No support agents are currently available. Please try again later."
	msgRequestReceived      = "Your support request has been received. An agent will assist you shortly."
)

type SupportChatUseCase struct {
	supportRepo   repository.SupportChatRepository
	agentRepo     repository.AgentRepository
	registry      presence.Registry
	rooms         RoomMembership
	publisher     Publisher
	notifications *NotificationUseCase
	activeChats   *ActiveChatTracker
	limiter       *ratelimit.RateLimiter
	journal       Journal
}

func NewSupportChatUseCase(
	supportRepo repository.SupportChatRepository,
	agentRepo repository.AgentRepository,
	registry presence.Registry,
	rooms RoomMembership,
	publisher Publisher,
	notifications *NotificationUseCase,
	activeChats *ActiveChatTracker,
	limiter *ratelimit.RateLimiter,
	journal Journal,
) *SupportChatUseCase {
	return &SupportChatUseCase{
		supportRepo:   supportRepo,
		agentRepo:     agentRepo,
		registry:      registry,
		rooms:         rooms,
		publisher:     publisher,
		notifications: notifications,
		activeChats:   activeChats,
		limiter:       limiter,
		journal:       journal,
	}
}

type SupportMessageInput struct {
	ChatID      string
	Content     string
	Category    string
	Priority    int
	RecipientID string
}

// SubmitMessage opens a new support chat when no chat id is given and
// continues an existing one otherwise.
func (uc *SupportChatUseCase) SubmitMessage(ctx context.Context, caller Caller, input SupportMessageInput) error {
	if input.ChatID == "" {
		return uc.openChat(ctx, caller, input)
	}
	return uc.continueChat(ctx, caller, input)
}

func (uc *SupportChatUseCase) openChat(ctx context.Context, caller Caller, input SupportMessageInput) error {
	draft, _, err := Transition(nil, SupportEvent{Kind: SupportEventCreate, Actor: caller.Identity})
	if err != nil {
		return err
	}

	if uc.limiter != nil {
		if ok, _ := uc.limiter.Allow(caller.UserID(), ratelimit.ActionSupportRequest); !ok {
			return errors.TooManyRequests("Too many support requests. Please wait before trying again")
		}
	}

	available, err := uc.registry.AnyAgentOnline(ctx)
	if err != nil {
		return err
	}
	if !available {
		uc.publisher.Emit(caller.ConnID, EventNoAgentsAvailable, NoAgentsPayload{Message: msgNoAgentsEvent})
		if _, err := uc.notifications.SendRealTimeNotification(ctx, caller.UserID(), entity.NotificationTypeSupport, msgNoAgentsNotification, ""); err != nil {
			logger.Warn("SubmitMessage: no-agents notification for %s failed: %v", caller.UserID(), err)
		}
		metrics.RecordTransition("no_agents")
		uc.journal.Record(ctx, "no_agents", "", caller.UserID(), nil)
		return nil
	}

	draft.Category = input.Category
	if draft.Category == "" {
		draft.Category = DefaultSupportCategory
	}
	draft.Priority = input.Priority
	if draft.Priority == 0 {
		draft.Priority = DefaultSupportPriority
	}
	content := input.Content
	if content == "" {
		content = DefaultSupportContent
	}

	first := &entity.SupportMessage{
		Content:    content,
		SenderID:   caller.UserID(),
		SenderType: entity.SenderTypeUser,
	}
	if err := uc.supportRepo.Create(ctx, draft, first); err != nil {
		logger.Error("SubmitMessage Error: creating support chat for %s: %v", caller.UserID(), err)
		return err
	}

	uc.rooms.Join(caller.ConnID, SupportRoom(draft.ID))
	uc.publisher.Emit(caller.ConnID, EventSupportChatCreated, draft)

	request := NewSupportRequestPayload{
		UserID:    caller.UserID(),
		Message:   content,
		Timestamp: draft.CreatedAt.Format(time.RFC3339),
	}
	uc.publisher.Publish(RoomAgents, EventNewSupportRequest, request)
	uc.publisher.Publish(RoomAdmins, EventNewSupportRequest, request)
	uc.publisher.Publish(RoomAgents, EventNewSupportChat, draft)

	if _, err := uc.notifications.SendRealTimeNotification(ctx, caller.UserID(), entity.NotificationTypeSupport, msgRequestReceived, ""); err != nil {
		logger.Warn("SubmitMessage: receipt notification for %s failed: %v", caller.UserID(), err)
	}

	metrics.RecordTransition("create")
	uc.journal.Record(ctx, "created", draft.ID, caller.UserID(), draft)
	return nil
}

func (uc *SupportChatUseCase) continueChat(ctx context.Context, caller Caller, input SupportMessageInput) error {
	if input.Content == "" {
		return errors.BadRequest("Message content is required", nil)
	}

	chat, err := uc.supportRepo.GetByID(ctx, input.ChatID)
	if err != nil {
		return err
	}

	next, effects, err := Transition(chat, SupportEvent{Kind: SupportEventMessage, Actor: caller.Identity})
	if err != nil {
		return err
	}

	if HasEffect(effects, EffectAssign) {
		if err := uc.assign(ctx, caller, next, effects); err != nil {
			return err
		}
		metrics.RecordTransition("implicit_accept")
	}

	message := &entity.SupportMessage{
		ChatID:     next.ID,
		Content:    input.Content,
		SenderID:   caller.UserID(),
		SenderType: entity.SenderTypeFor(caller.Identity.Role),
	}
	if err := uc.supportRepo.AppendMessage(ctx, message); err != nil {
		logger.Error("SubmitMessage Error: appending to support chat %s: %v", next.ID, err)
		return err
	}

	payload := SupportMessagePayload{
		ChatID:     next.ID,
		Message:    message,
		SenderID:   caller.UserID(),
		SenderType: string(message.SenderType),
	}
	preview := utils.Truncate(input.Content, notificationPreviewLength)

	if input.RecipientID != "" {
		recipientRoom := UserRoom(input.RecipientID)
		if caller.Identity.Role == entity.RoleUser {
			recipientRoom = AgentRoom(input.RecipientID)
		}
		uc.publisher.Publish(recipientRoom, EventSupportMessage, payload)
		uc.notify(ctx, input.RecipientID, "New message in support chat: "+preview)
	} else {
		uc.publisher.Publish(SupportRoom(next.ID), EventSupportMessage, payload)
		switch {
		case caller.Identity.Role == entity.RoleUser && next.AgentID != nil:
			uc.notify(ctx, next.AssignedAgent(), "New message from user: "+preview)
		case caller.Identity.IsAgent():
			uc.notify(ctx, next.UserID, "New message from agent: "+preview)
		}
	}

	if HasEffect(effects, EffectAnnounceAssignment) {
		uc.announceAssignment(next, caller.UserID())
	}

	uc.journal.Record(ctx, "message", next.ID, caller.UserID(), message)
	return nil
}

// AcceptChat lets an agent claim a pending chat, or re-claim one it already
// owns. The claim is a conditional update, so of two agents racing for the
// same chat exactly one wins.
func (uc *SupportChatUseCase) AcceptChat(ctx context.Context, caller Caller, chatID string) error {
	chat, err := uc.supportRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}

	next, effects, err := Transition(chat, SupportEvent{Kind: SupportEventAccept, Actor: caller.Identity})
	if err != nil {
		return err
	}

	if err := uc.assign(ctx, caller, next, effects); err != nil {
		return err
	}
	uc.rooms.Join(caller.ConnID, SupportRoom(chatID))

	agentName := displayName(caller.Identity)
	welcome := &entity.SupportMessage{
		ChatID:     chatID,
		Content:    fmt.Sprintf("Hello! I'm %s, and I'll be assisting you today. How can I help?", agentName),
		SenderID:   caller.UserID(),
		SenderType: entity.SenderTypeAgent,
	}
	if err := uc.supportRepo.AppendMessage(ctx, welcome); err != nil {
		logger.Error("AcceptChat Error: welcome message for chat %s: %v", chatID, err)
		return err
	}
	if HasEffect(effects, EffectAnnounceAssignment) {
		uc.announceAssignment(next, caller.UserID())
	}

	uc.publisher.Publish(UserRoom(next.UserID), EventAgentAccepted, AgentAcceptedPayload{
		ChatID:    chatID,
		AgentID:   caller.UserID(),
		AgentName: agentName,
		Message:   welcome,
	})
	uc.publisher.Publish(SupportRoom(chatID), EventSupportMessage, SupportMessagePayload{
		ChatID:     chatID,
		Message:    welcome,
		SenderID:   caller.UserID(),
		SenderType: string(entity.SenderTypeAgent),
	})
	uc.notify(ctx, next.UserID, fmt.Sprintf("Agent %s has accepted your support request", agentName))

	metrics.RecordTransition("accept")
	uc.journal.Record(ctx, "accepted", chatID, caller.UserID(), nil)
	return nil
}

// assign realizes the claim effects shared by explicit and message-implied
// acceptance.
func (uc *SupportChatUseCase) assign(ctx context.Context, caller Caller, next *entity.SupportChat, effects []Effect) error {
	agentID := caller.UserID()

	ok, err := uc.supportRepo.Assign(ctx, next.ID, agentID)
	if err != nil {
		logger.Error("Assign Error: chat %s agent %s: %v", next.ID, agentID, err)
		return err
	}
	if !ok {
		return errors.Conflict("This chat is already assigned to another agent")
	}

	for _, effect := range effects {
		switch effect.Kind {
		case EffectTrack:
			uc.activeChats.Track(next.ID, agentID)
		case EffectAdjustActiveChats:
			uc.adjustActiveChats(ctx, agentID, effect.Delta)
		}
	}
	return nil
}

func (uc *SupportChatUseCase) announceAssignment(chat *entity.SupportChat, agentID string) {
	uc.publisher.Publish(RoomAdmins, EventSupportChatAssigned, SupportChatAssignedPayload{
		ChatID:  chat.ID,
		AgentID: agentID,
		UserID:  chat.UserID,
	})
}

// CloseChat terminates a chat. The closing message is stored in the same
// unit as the status flip, so it is the last message the chat ever gets.
func (uc *SupportChatUseCase) CloseChat(ctx context.Context, caller Caller, chatID, reason string) error {
	chat, err := uc.supportRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}

	_, effects, err := Transition(chat, SupportEvent{Kind: SupportEventClose, Actor: caller.Identity})
	if err != nil {
		return err
	}

	role := string(caller.Identity.Role)
	content := "Chat closed by " + role
	if reason != "" {
		content += ": " + reason
	}
	closing := &entity.SupportMessage{
		ChatID:     chatID,
		Content:    content,
		SenderID:   caller.UserID(),
		SenderType: entity.SenderTypeFor(caller.Identity.Role),
		Read:       true,
	}

	closed, err := uc.supportRepo.Close(ctx, chatID, closing)
	if err != nil {
		logger.Error("CloseChat Error: chat %s: %v", chatID, err)
		return err
	}
	if !closed {
		return errors.PreconditionFailed("This chat is already closed")
	}

	uc.publisher.Publish(SupportRoom(chatID), EventSupportChatClosed, SupportChatClosedPayload{
		ChatID:       chatID,
		ClosedBy:     caller.UserID(),
		ClosedByRole: role,
		Reason:       reason,
		Message:      closing,
	})

	for _, effect := range effects {
		switch effect.Kind {
		case EffectAdjustActiveChats:
			uc.adjustActiveChats(ctx, caller.UserID(), effect.Delta)
		case EffectUntrack:
			uc.activeChats.Untrack(chatID, "")
		}
	}

	suffix := ""
	if reason != "" {
		suffix = ": " + reason
	}
	switch {
	case caller.Identity.IsStaff():
		uc.notify(ctx, chat.UserID, "Your support chat has been closed"+suffix)
	case chat.AgentID != nil:
		uc.notify(ctx, chat.AssignedAgent(), "Support chat closed by user"+suffix)
	}

	uc.publisher.Publish(RoomAdmins, EventSupportChatClosed, SupportChatClosedPayload{
		ChatID:       chatID,
		ClosedBy:     caller.UserID(),
		ClosedByRole: role,
		Reason:       reason,
	})

	metrics.RecordTransition("close")
	uc.journal.Record(ctx, "closed", chatID, caller.UserID(), closing)
	return nil
}

// JoinSupportChat subscribes the chat's user or a staff member to the chat
// room and marks the other side's messages read. The assigned agent joining
// an active chat tracks it again, e.g. after a reconnect.
func (uc *SupportChatUseCase) JoinSupportChat(ctx context.Context, caller Caller, chatID string) error {
	chat, err := uc.supportRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !caller.Identity.IsStaff() && chat.UserID != caller.UserID() {
		return errors.Forbidden("You do not have permission to join this chat", nil)
	}

	uc.rooms.Join(caller.ConnID, SupportRoom(chatID))

	if err := uc.supportRepo.MarkMessagesRead(ctx, chatID, counterpartOf(caller.Identity.Role)); err != nil {
		logger.Warn("JoinSupportChat: marking chat %s read failed: %v", chatID, err)
	}

	if caller.Identity.IsAgent() && chat.Status == entity.SupportStatusActive && chat.IsAssignedTo(caller.UserID()) {
		uc.activeChats.Track(chatID, caller.UserID())
	}
	return nil
}

func (uc *SupportChatUseCase) LeaveSupportChat(_ context.Context, caller Caller, chatID string) error {
	uc.rooms.Leave(caller.ConnID, SupportRoom(chatID))
	if caller.Identity.IsAgent() {
		uc.activeChats.Untrack(chatID, caller.UserID())
	}
	return nil
}

func (uc *SupportChatUseCase) notify(ctx context.Context, userID, message string) {
	if _, err := uc.notifications.SendRealTimeNotification(ctx, userID, entity.NotificationTypeSupport, message, ""); err != nil {
		logger.Warn("Support notification for %s failed: %v", userID, err)
	}
}

func (uc *SupportChatUseCase) adjustActiveChats(ctx context.Context, agentID string, delta int) {
	if err := uc.agentRepo.AdjustActiveChats(ctx, agentID, delta); err != nil {
		logger.Error("AdjustActiveChats Error: agent %s delta %d: %v", agentID, delta, err)
	}
}

// counterpartOf is the sender type whose messages a reader with role marks
// read. Anyone who is not a plain user reads the user's side.
func counterpartOf(role entity.Role) entity.SenderType {
	if role == entity.RoleUser {
		return entity.SenderTypeAgent
	}
	return entity.SenderTypeUser
}

func displayName(identity entity.Identity) string {
	if identity.Name != "" {
		return identity.Name
	}
	return "Support Agent"
}
