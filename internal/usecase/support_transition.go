package usecase

import (
	"agrolink/internal/domain/entity"
	"agrolink/pkg/errors"
)

type SupportEventKind string

const (
	SupportEventCreate  SupportEventKind = "create"
	SupportEventAccept  SupportEventKind = "accept"
	SupportEventMessage SupportEventKind = "message"
	SupportEventClose   SupportEventKind = "close"
)

// SupportEvent is one input to the support chat state machine.
type SupportEvent struct {
	Kind  SupportEventKind
	Actor entity.Identity
}

type EffectKind string

const (
	// EffectCreate persists the new pending chat with its first message.
	EffectCreate EffectKind = "create"
	// EffectAssign claims the chat for the actor with a conditional update.
	EffectAssign EffectKind = "assign"
	// EffectAdjustActiveChats moves the actor's activeChats counter by Delta.
	EffectAdjustActiveChats EffectKind = "adjust_active_chats"
	EffectTrack             EffectKind = "track"
	EffectUntrack           EffectKind = "untrack"
	// EffectAnnounceAssignment tells admins who now staffs the chat. It follows
	// the stored welcome or message.
	EffectAnnounceAssignment EffectKind = "announce_assignment"
	// EffectWelcome persists and delivers the agent's greeting.
	EffectWelcome EffectKind = "welcome"
	EffectAppend  EffectKind = "append"
	// EffectClose persists the closing message and flips the status.
	EffectClose EffectKind = "close"
	// EffectNotifyCounterparty pushes a notification to the other side.
	EffectNotifyCounterparty EffectKind = "notify_counterparty"
)

type Effect struct {
	Kind  EffectKind
	Delta int
}

// Transition computes the next state of chat under event together with the
// side effects needed to realize it. chat is nil only for SupportEventCreate.
// It never mutates chat, and it rejects any event that would move status
// backwards or touch a closed chat.
func Transition(chat *entity.SupportChat, event SupportEvent) (*entity.SupportChat, []Effect, error) {
	if event.Kind == SupportEventCreate {
		return transitionCreate(chat, event.Actor)
	}
	if chat == nil {
		return nil, nil, errors.NotFound("Support chat", nil)
	}

	next := *chat
	next.Messages = nil

	var (
		effects []Effect
		err     error
	)
	switch event.Kind {
	case SupportEventAccept:
		effects, err = transitionAccept(&next, event.Actor)
	case SupportEventMessage:
		effects, err = transitionMessage(&next, event.Actor)
	case SupportEventClose:
		effects, err = transitionClose(&next, event.Actor)
	default:
		return nil, nil, errors.BadRequest("Unknown support chat event", nil)
	}
	if err != nil {
		return nil, nil, err
	}

	if next.Status.Rank() < chat.Status.Rank() {
		return nil, nil, errors.PreconditionFailed("Support chat status cannot move backwards")
	}
	return &next, effects, nil
}

func transitionCreate(chat *entity.SupportChat, actor entity.Identity) (*entity.SupportChat, []Effect, error) {
	if chat != nil {
		return nil, nil, errors.Conflict("Support chat already exists")
	}
	if actor.IsStaff() {
		return nil, nil, errors.BadRequest("chatId is required", nil)
	}

	next := &entity.SupportChat{
		UserID: actor.UserID,
		Status: entity.SupportStatusPending,
	}
	return next, []Effect{{Kind: EffectCreate}}, nil
}

// claim moves a pending chat to active under agentID. Both the explicit
// accept and the message-implied accept go through here. announce reports
// whether admins should hear about the assignment once the triggering
// message is stored.
func claim(next *entity.SupportChat, agentID string) (effects []Effect, announce bool) {
	wasPending := next.Status == entity.SupportStatusPending

	owner := agentID
	next.AgentID = &owner
	next.Status = entity.SupportStatusActive

	effects = []Effect{{Kind: EffectAssign}, {Kind: EffectTrack}}
	if wasPending {
		effects = append(effects, Effect{Kind: EffectAdjustActiveChats, Delta: 1})
	}
	return effects, wasPending
}

func transitionAccept(next *entity.SupportChat, actor entity.Identity) ([]Effect, error) {
	if !actor.IsAgent() {
		return nil, errors.Forbidden("Only agents can accept support chats", nil)
	}

	switch next.Status {
	case entity.SupportStatusClosed:
		return nil, errors.PreconditionFailed("This chat is already closed")
	case entity.SupportStatusActive:
		if !next.IsAssignedTo(actor.UserID) {
			return nil, errors.Conflict("This chat is already assigned to another agent")
		}
	}

	effects, announce := claim(next, actor.UserID)
	effects = append(effects, Effect{Kind: EffectWelcome})
	if announce {
		effects = append(effects, Effect{Kind: EffectAnnounceAssignment})
	}
	return append(effects, Effect{Kind: EffectNotifyCounterparty}), nil
}

func transitionMessage(next *entity.SupportChat, actor entity.Identity) ([]Effect, error) {
	if next.Status == entity.SupportStatusClosed {
		return nil, errors.PreconditionFailed("Cannot send messages to a closed chat")
	}
	if !actor.IsStaff() && actor.UserID != next.UserID {
		return nil, errors.Forbidden("You do not have permission to send messages in this chat", nil)
	}

	var (
		effects  []Effect
		announce bool
	)
	if next.Status == entity.SupportStatusPending && actor.IsAgent() {
		effects, announce = claim(next, actor.UserID)
	}
	effects = append(effects, Effect{Kind: EffectAppend})
	if announce {
		effects = append(effects, Effect{Kind: EffectAnnounceAssignment})
	}
	return append(effects, Effect{Kind: EffectNotifyCounterparty}), nil
}

func transitionClose(next *entity.SupportChat, actor entity.Identity) ([]Effect, error) {
	if !actor.IsAdmin() && actor.UserID != next.UserID && !next.IsAssignedTo(actor.UserID) {
		return nil, errors.Forbidden("You do not have permission to close this chat", nil)
	}
	if next.Status == entity.SupportStatusClosed {
		return nil, errors.PreconditionFailed("This chat is already closed")
	}

	effects := []Effect{{Kind: EffectClose}}
	if actor.IsAgent() && next.IsAssignedTo(actor.UserID) {
		effects = append(effects, Effect{Kind: EffectAdjustActiveChats, Delta: -1})
	}
	next.Status = entity.SupportStatusClosed

	return append(effects, Effect{Kind: EffectUntrack}, Effect{Kind: EffectNotifyCounterparty}), nil
}

// HasEffect reports whether kind appears in effects.
func HasEffect(effects []Effect, kind EffectKind) bool {
	for _, e := range effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
