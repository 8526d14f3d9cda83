// Package presence tracks which identities have a live connection.
package presence

import (
	"context"
	"sort"
	"sync"

	"agrolink/internal/domain/entity"
)

// Registry maps identities to their live connections. Every connection is
// remembered, but lookups answer with the most recently registered one.
type Registry interface {
	RegisterUser(ctx context.Context, userID, connID string) error
	RegisterAgent(ctx context.Context, agentID, connID string) error
	// Unregister drops connID and reports whether the identity has no live
	// connection left.
	Unregister(ctx context.Context, identity entity.Identity, connID string) (bool, error)
	IsUserReachable(ctx context.Context, userID string) (bool, error)
	UserConnection(ctx context.Context, userID string) (string, bool, error)
	AgentConnection(ctx context.Context, agentID string) (string, bool, error)
	OnlineAgents(ctx context.Context) ([]string, error)
	AnyAgentOnline(ctx context.Context) (bool, error)
	// Touch extends the liveness of a connection in registries that expire.
	Touch(ctx context.Context, identity entity.Identity, connID string) error
}

type kind int

const (
	kindUser kind = iota
	kindAgent
)

func kindOf(role entity.Role) (kind, bool) {
	switch role {
	case entity.RoleUser:
		return kindUser, true
	case entity.RoleAgent:
		return kindAgent, true
	}
	return 0, false
}

// MemoryRegistry is the single-process registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns [2]map[string][]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		conns: [2]map[string][]string{
			make(map[string][]string),
			make(map[string][]string),
		},
	}
}

func (r *MemoryRegistry) register(k kind, id, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := removeConn(r.conns[k][id], connID)
	r.conns[k][id] = append(list, connID)
}

func (r *MemoryRegistry) RegisterUser(_ context.Context, userID, connID string) error {
	r.register(kindUser, userID, connID)
	return nil
}

func (r *MemoryRegistry) RegisterAgent(_ context.Context, agentID, connID string) error {
	r.register(kindAgent, agentID, connID)
	return nil
}

func (r *MemoryRegistry) Unregister(_ context.Context, identity entity.Identity, connID string) (bool, error) {
	k, ok := kindOf(identity.Role)
	if !ok {
		return true, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := removeConn(r.conns[k][identity.UserID], connID)
	if len(list) == 0 {
		delete(r.conns[k], identity.UserID)
		return true, nil
	}
	r.conns[k][identity.UserID] = list
	return false, nil
}

func (r *MemoryRegistry) latest(k kind, id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.conns[k][id]
	if len(list) == 0 {
		return "", false
	}
	return list[len(list)-1], true
}

func (r *MemoryRegistry) IsUserReachable(_ context.Context, userID string) (bool, error) {
	_, ok := r.latest(kindUser, userID)
	return ok, nil
}

func (r *MemoryRegistry) UserConnection(_ context.Context, userID string) (string, bool, error) {
	connID, ok := r.latest(kindUser, userID)
	return connID, ok, nil
}

func (r *MemoryRegistry) AgentConnection(_ context.Context, agentID string) (string, bool, error) {
	connID, ok := r.latest(kindAgent, agentID)
	return connID, ok, nil
}

func (r *MemoryRegistry) OnlineAgents(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]string, 0, len(r.conns[kindAgent]))
	for id := range r.conns[kindAgent] {
		agents = append(agents, id)
	}
	sort.Strings(agents)
	return agents, nil
}

func (r *MemoryRegistry) AnyAgentOnline(_ context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[kindAgent]) > 0, nil
}

func (r *MemoryRegistry) Touch(context.Context, entity.Identity, string) error {
	return nil
}

func removeConn(list []string, connID string) []string {
	out := list[:0:0]
	for _, c := range list {
		if c != connID {
			out = append(out, c)
		}
	}
	return out
}
