package usecase

import (
	"sort"
	"sync"
)

// ActiveChatTracker remembers which agent currently staffs each support chat
// so an agent's disconnect can be reported per chat.
type ActiveChatTracker struct {
	mu     sync.RWMutex
	owners map[string]string
}

func NewActiveChatTracker() *ActiveChatTracker {
	return &ActiveChatTracker{owners: make(map[string]string)}
}

func (t *ActiveChatTracker) Track(chatID, agentID string) {
	t.mu.Lock()
	t.owners[chatID] = agentID
	t.mu.Unlock()
}

// Untrack forgets chatID. It is a no-op when ownerID is non-empty and does
// not match the tracked owner.
func (t *ActiveChatTracker) Untrack(chatID, ownerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.owners[chatID]; ok && (ownerID == "" || current == ownerID) {
		delete(t.owners, chatID)
	}
}

func (t *ActiveChatTracker) Owner(chatID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	agentID, ok := t.owners[chatID]
	return agentID, ok
}

// ChatsOf returns the chats agentID owns, sorted.
func (t *ActiveChatTracker) ChatsOf(agentID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var chats []string
	for chatID, owner := range t.owners {
		if owner == agentID {
			chats = append(chats, chatID)
		}
	}
	sort.Strings(chats)
	return chats
}
