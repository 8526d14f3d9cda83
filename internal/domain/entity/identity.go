package entity

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// ParseRole accepts the handshake role string. Empty means user.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "", RoleUser:
		return RoleUser, true
	case RoleAgent:
		return RoleAgent, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Identity is what a verified handshake yields.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
}

func (i Identity) IsAgent() bool { return i.Role == RoleAgent }
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
func (i Identity) IsStaff() bool { return i.Role == RoleAgent || i.Role == RoleAdmin }
