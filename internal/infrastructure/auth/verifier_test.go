package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolink/internal/domain/entity"
	"agrolink/pkg/errors"
)

const testSecret = "test-secret"

func issue(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := NewHMACVerifier(testSecret).IssueToken(userID, "Tester", role, time.Hour)
	require.NoError(t, err)
	return token
}

func TestHMACVerifier_RoundTrip(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	token, err := v.IssueToken("u1", "Amina", "agent", time.Hour)
	require.NoError(t, err)

	claims, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Claims{UserID: "u1", Name: "Amina", Role: "agent"}, claims)
}

func TestHMACVerifier_Rejects(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	expired, err := v.IssueToken("u1", "", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), expired)
	assert.Error(t, err)

	foreign, err := NewHMACVerifier("other-secret").IssueToken("u1", "", "", time.Hour)
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), foreign)
	assert.Error(t, err)

	_, err = v.VerifyToken(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}

func TestIdentityVerifier_Verify(t *testing.T) {
	tests := []struct {
		name     string
		trust    bool
		token    string
		declared string
		want     entity.Identity
		errMsg   string
	}{
		{
			name:  "no role anywhere means user",
			token: issue(t, "u1", ""),
			want:  entity.Identity{UserID: "u1", Role: entity.RoleUser, Name: "Tester"},
		},
		{
			name:     "token role wins over declared role",
			token:    issue(t, "a1", "agent"),
			declared: "admin",
			want:     entity.Identity{UserID: "a1", Role: entity.RoleAgent, Name: "Tester"},
		},
		{
			name:     "declared role ignored when not trusted",
			token:    issue(t, "u1", ""),
			declared: "admin",
			want:     entity.Identity{UserID: "u1", Role: entity.RoleUser, Name: "Tester"},
		},
		{
			name:     "declared role used when trusted",
			trust:    true,
			token:    issue(t, "a1", ""),
			declared: "agent",
			want:     entity.Identity{UserID: "a1", Role: entity.RoleAgent, Name: "Tester"},
		},
		{
			name:   "missing token",
			errMsg: "Authentication error: No token provided",
		},
		{
			name:   "bad token",
			token:  "garbage",
			errMsg: "Authentication error: Invalid token",
		},
		{
			name:     "unknown declared role",
			token:    issue(t, "u1", ""),
			declared: "superuser",
			errMsg:   "Authentication error: Invalid role",
		},
		{
			name:   "unknown token role",
			token:  issue(t, "u1", "root"),
			errMsg: "Authentication error: Invalid role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewIdentityVerifier(NewHMACVerifier(testSecret), tt.trust)

			identity, err := verifier.Verify(context.Background(), tt.token, tt.declared)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, "UNAUTHORIZED"))
				assert.Equal(t, tt.errMsg, errors.ClientMessage(err, ""))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, identity)
		})
	}
}
