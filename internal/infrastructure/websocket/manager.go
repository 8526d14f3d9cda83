package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"agrolink/pkg/logger"
	"agrolink/pkg/metrics"
)

// WSMessage is the envelope every frame travels in, in both directions.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Manager owns every live connection and the rooms they are joined to. It is
// the only place room membership is mutated.
type Manager struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	mutex   sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

func (m *Manager) Register(client *Client) {
	m.mutex.Lock()
	m.clients[client.ID] = client
	m.mutex.Unlock()

	metrics.ConnectionOpened(string(client.Identity.Role))
	logger.Debug("WebSocket: client %s registered for %s", client.ID, client.Identity.UserID)
}

// Remove drops the client from every room and closes its send channel.
func (m *Manager) Remove(client *Client) {
	m.mutex.Lock()
	if _, ok := m.clients[client.ID]; !ok {
		m.mutex.Unlock()
		return
	}
	delete(m.clients, client.ID)
	for room := range client.rooms {
		m.leaveLocked(client, room)
	}
	client.closeSend()
	m.mutex.Unlock()

	metrics.ConnectionClosed(string(client.Identity.Role))
	logger.Debug("WebSocket: client %s removed", client.ID)
}

// Join is idempotent; unknown connections are ignored.
func (m *Manager) Join(connID, room string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	client, ok := m.clients[connID]
	if !ok {
		return
	}
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		m.rooms[room] = members
	}
	members[connID] = client
	client.rooms[room] = struct{}{}
}

func (m *Manager) Leave(connID, room string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if client, ok := m.clients[connID]; ok {
		m.leaveLocked(client, room)
	}
}

func (m *Manager) leaveLocked(client *Client, room string) {
	delete(client.rooms, room)
	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(m.rooms, room)
	}
}

func (m *Manager) IsMember(room, connID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.rooms[room][connID]
	return ok
}

// RoomSize returns how many connections are currently joined to room.
func (m *Manager) RoomSize(room string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms[room])
}

func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// Publish delivers event to every connection joined to room right now.
func (m *Manager) Publish(room, event string, payload interface{}) {
	m.PublishExcept(room, "", event, payload)
}

func (m *Manager) PublishExcept(room, exceptConnID, event string, payload interface{}) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for connID, client := range m.rooms[room] {
		if connID == exceptConnID {
			continue
		}
		client.enqueue(frame)
	}
}

// Emit delivers event to a single connection.
func (m *Manager) Emit(connID, event string, payload interface{}) {
	frame, ok := encode(event, payload)
	if !ok {
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if client, found := m.clients[connID]; found {
		client.enqueue(frame)
	}
}

// CloseAll sends a close frame to every client; used on shutdown.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mutex.RUnlock()

	deadline := time.Now().Add(writeWait)
	for _, client := range clients {
		client.closeConn(deadline)
	}
}

func encode(event string, payload interface{}) ([]byte, bool) {
	frame, err := json.Marshal(outboundMessage{Event: event, Data: payload})
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s event: %v", event, err)
		return nil, false
	}
	return frame, true
}
