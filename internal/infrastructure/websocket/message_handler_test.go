package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolink/internal/adapter/repository"
	"agrolink/internal/domain/entity"
	"agrolink/internal/infrastructure/journal"
	"agrolink/internal/infrastructure/presence"
	"agrolink/internal/infrastructure/ratelimit"
	"agrolink/internal/usecase"
)

type dispatcherFixture struct {
	manager    *Manager
	dispatcher *Dispatcher
}

func newDispatcherFixture(t *testing.T, limiter *ratelimit.RateLimiter) *dispatcherFixture {
	t.Helper()
	return newDispatcherFixtureOn(t, limiter, presence.NewMemoryRegistry())
}

func newDispatcherFixtureOn(t *testing.T, limiter *ratelimit.RateLimiter, registry presence.Registry) *dispatcherFixture {
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

	manager := NewManager()
	agents := repository.NewGormAgentRepository(db)
	tracker := usecase.NewActiveChatTracker()

	notifications := usecase.NewNotificationUseCase(repository.NewGormNotificationRepository(db), manager)
	presenceUC := usecase.NewPresenceUseCase(registry, agents, manager, manager, tracker, journal.Noop{})
	productChats := usecase.NewProductChatUseCase(repository.NewGormChatRepository(db), registry, manager, manager)
	support := usecase.NewSupportChatUseCase(
		repository.NewGormSupportChatRepository(db), agents, registry, manager, manager, notifications, tracker, nil, journal.Noop{},
	)

	return &dispatcherFixture{
		manager:    manager,
		dispatcher: NewDispatcher(manager, presenceUC, productChats, support, notifications, limiter),
	}
}

func (f *dispatcherFixture) connect(t *testing.T, userID string, role entity.Role) *Client {
	t.Helper()
	c := detachedClient(f.manager, userID, role)
	require.NoError(t, f.dispatcher.HandleConnect(context.Background(), c))
	return c
}

func (f *dispatcherFixture) send(c *Client, event string, data interface{}) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(WSMessage{Event: event, Data: raw})
	f.dispatcher.HandleClientMessage(context.Background(), c, frame)
}

func errorsOf(messages []WSMessage) []string {
	var out []string
	for _, m := range messages {
		if m.Event != usecase.EventError {
			continue
		}
		var payload usecase.ErrorPayload
		if err := json.Unmarshal(m.Data, &payload); err == nil {
			out = append(out, payload.Message)
		}
	}
	return out
}

func TestDispatcher_MalformedAndUnknownFrames(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	c := f.connect(t, "u1", entity.RoleUser)

	f.dispatcher.HandleClientMessage(context.Background(), c, []byte("{not json"))
	f.send(c, "teleport", nil)

	assert.Equal(t, []string{"Invalid message format", "Unknown event type"}, errorsOf(drain(c)))
}

func TestDispatcher_PingPong(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	c := f.connect(t, "u1", entity.RoleUser)

	f.send(c, EventPing, nil)
	assert.Equal(t, []string{EventPong}, eventsOf(drain(c)))
}

func TestDispatcher_ValidationErrorsStayScoped(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	sender := f.connect(t, "u1", entity.RoleUser)
	other := f.connect(t, "u2", entity.RoleUser)

	f.send(sender, EventCloseSupportChat, map[string]string{"reason": "bye"})
	f.dispatcher.HandleClientMessage(context.Background(), sender, []byte(`{"event":"join_chat"}`))

	assert.Equal(t, []string{"chatid is required", "Missing event data"}, errorsOf(drain(sender)))
	assert.Empty(t, drain(other))
}

func TestDispatcher_SupportLifecycle(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	agent := f.connect(t, "a1", entity.RoleAgent)
	user := f.connect(t, "u1", entity.RoleUser)
	drain(agent)

	f.send(user, EventSupportMessage, map[string]interface{}{"message": map[string]string{"content": "My order never arrived"}})

	var created *entity.SupportChat
	for _, m := range drain(user) {
		if m.Event == usecase.EventSupportChatCreated {
			require.NoError(t, json.Unmarshal(m.Data, &created))
		}
	}
	require.NotNil(t, created)
	assert.Contains(t, eventsOf(drain(agent)), usecase.EventNewSupportRequest)

	f.send(agent, EventAcceptSupportChat, created.ID)
	assert.Contains(t, eventsOf(drain(user)), usecase.EventAgentAccepted)

	f.send(user, EventCloseSupportChat, map[string]string{"chatId": created.ID})
	assert.Contains(t, eventsOf(drain(agent)), usecase.EventSupportChatClosed)

	f.send(user, EventSupportMessage, map[string]string{"chatId": created.ID, "content": "hello?"})
	assert.Equal(t, []string{"Cannot send messages to a closed chat"}, errorsOf(drain(user)))
}

func TestDispatcher_NotificationPermissions(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	user := f.connect(t, "u1", entity.RoleUser)
	admin := f.connect(t, "admin1", entity.RoleAdmin)

	f.send(user, EventSendNotification, map[string]string{"userId": "u1", "type": "system", "message": "x"})
	assert.Equal(t, []string{"Unauthorized: Only agents and admins can send notifications"}, errorsOf(drain(user)))

	f.send(admin, EventBroadcastNotification, map[string]interface{}{"userIds": []string{"u1"}, "type": "system", "message": "Rain expected"})
	assert.Contains(t, eventsOf(drain(user)), usecase.EventNotificationReceived)
	assert.Empty(t, errorsOf(drain(admin)))
}

func TestDispatcher_ThrottlesChattyConnections(t *testing.T) {
	f := newDispatcherFixture(t, ratelimit.NewRateLimiter(2, time.Hour))
	c := f.connect(t, "u1", entity.RoleUser)

	for i := 0; i < 3; i++ {
		f.send(c, EventTypingStarted, "c1")
	}
	assert.Equal(t, []string{"Too many requests. Please slow down"}, errorsOf(drain(c)))
}

func TestDispatcher_DisconnectMarksAgentOffline(t *testing.T) {
	f := newDispatcherFixture(t, nil)
	admin := f.connect(t, "admin1", entity.RoleAdmin)
	agent := f.connect(t, "a1", entity.RoleAgent)
	drain(admin)

	f.manager.Remove(agent)
	f.dispatcher.HandleDisconnect(context.Background(), agent)

	var statuses []usecase.AgentStatusPayload
	for _, m := range drain(admin) {
		if m.Event == usecase.EventAgentStatusChange {
			var p usecase.AgentStatusPayload
			require.NoError(t, json.Unmarshal(m.Data, &p))
			statuses = append(statuses, p)
		}
	}
	assert.Equal(t, []usecase.AgentStatusPayload{{AgentID: "a1", IsOnline: false}}, statuses)
}
