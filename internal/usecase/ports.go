package usecase

import (
	"context"

	"agrolink/internal/domain/entity"
)

// Publisher fans events out to rooms and single connections. Delivery is
// best effort: only connections joined at publish time receive anything.
type Publisher interface {
	Publish(room, event string, payload interface{})
	PublishExcept(room, exceptConnID, event string, payload interface{})
	Emit(connID, event string, payload interface{})
}

// RoomMembership is the join/leave primitive every chat-specific room
// operation is built on.
type RoomMembership interface {
	Join(connID, room string)
	Leave(connID, room string)
	IsMember(room, connID string) bool
}

// Journal receives lifecycle entries for audit consumers.
type Journal interface {
	Record(ctx context.Context, kind, chatID, actorID string, payload interface{})
}

// Caller is the connection an inbound event arrived on.
type Caller struct {
	ConnID   string
	Identity entity.Identity
}

func (c Caller) UserID() string { return c.Identity.UserID }
