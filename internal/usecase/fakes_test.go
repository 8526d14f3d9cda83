package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"agrolink/internal/adapter/repository"
	"agrolink/internal/domain/entity"
)

type published struct {
	Room    string
	Except  string
	ConnID  string
	Event   string
	Payload interface{}
}

// hub is an in-memory Publisher and RoomMembership that records every event.
type hub struct {
	mu     sync.Mutex
	rooms  map[string]map[string]bool
	events []published
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[string]bool)}
}

func (h *hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][connID] = true
}

func (h *hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], connID)
}

func (h *hub) IsMember(room, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[room][connID]
}

func (h *hub) Publish(room, event string, payload interface{}) {
	h.record(published{Room: room, Event: event, Payload: payload})
}

func (h *hub) PublishExcept(room, exceptConnID, event string, payload interface{}) {
	h.record(published{Room: room, Except: exceptConnID, Event: event, Payload: payload})
}

func (h *hub) Emit(connID, event string, payload interface{}) {
	h.record(published{ConnID: connID, Event: event, Payload: payload})
}

func (h *hub) record(p published) {
	h.mu.Lock()
	h.events = append(h.events, p)
	h.mu.Unlock()
}

// find returns the events named event, in publish order.
func (h *hub) find(event string) []published {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []published
	for _, p := range h.events {
		if p.Event == event {
			out = append(out, p)
		}
	}
	return out
}

func (h *hub) findIn(room, event string) []published {
	var out []published
	for _, p := range h.find(event) {
		if p.Room == room {
			out = append(out, p)
		}
	}
	return out
}

func (h *hub) reset() {
	h.mu.Lock()
	h.events = nil
	h.mu.Unlock()
}

type journalEntry struct {
	Kind    string
	ChatID  string
	ActorID string
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []journalEntry
}

func (j *recordingJournal) Record(_ context.Context, kind, chatID, actorID string, _ interface{}) {
	j.mu.Lock()
	j.entries = append(j.entries, journalEntry{Kind: kind, ChatID: chatID, ActorID: actorID})
	j.mu.Unlock()
}

func (j *recordingJournal) kinds() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	kinds := make([]string, 0, len(j.entries))
	for _, e := range j.entries {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := repository.OpenDatabase("sqlite", dsn, false)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func userCaller(userID, connID string) Caller {
	return Caller{ConnID: connID, Identity: entity.Identity{UserID: userID, Role: entity.RoleUser}}
}

func agentCaller(agentID, connID, name string) Caller {
	return Caller{ConnID: connID, Identity: entity.Identity{UserID: agentID, Role: entity.RoleAgent, Name: name}}
}

func adminCaller(adminID, connID string) Caller {
	return Caller{ConnID: connID, Identity: entity.Identity{UserID: adminID, Role: entity.RoleAdmin}}
}
