package usecase

import "agrolink/internal/domain/entity"

const (
	RoomAgents = "agents"
	RoomAdmins = "admins"
)

func ChatRoom(chatID string) string    { return "chat_" + chatID }
func SupportRoom(chatID string) string { return "support_" + chatID }
func UserRoom(userID string) string    { return "user_" + userID }
func AgentRoom(agentID string) string  { return "agent_" + agentID }

// PersonalRooms lists the rooms an identity joins on connect.
func PersonalRooms(identity entity.Identity) []string {
	rooms := []string{UserRoom(identity.UserID)}
	switch identity.Role {
	case entity.RoleAgent:
		rooms = append(rooms, RoomAgents, AgentRoom(identity.UserID))
	case entity.RoleAdmin:
		rooms = append(rooms, RoomAdmins)
	}
	return rooms
}
