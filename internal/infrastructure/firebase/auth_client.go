package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"

	agroauth "agrolink/internal/infrastructure/auth"
)

// FirebaseAuthClient verifies Firebase ID tokens. The display name and the
// optional "role" custom claim are read from the token.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (*agroauth.Claims, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	claims := &agroauth.Claims{UserID: result.UID}
	if name, ok := result.Claims["name"].(string); ok {
		claims.Name = name
	}
	if role, ok := result.Claims["role"].(string); ok {
		claims.Role = role
	}
	return claims, nil
}

// TestConnection checks that the Auth backend answers.
func (f *FirebaseAuthClient) TestConnection(ctx context.Context) error {
	_, err := f.client.Users(ctx, "").Next()
	if err != nil && err != iterator.Done {
		return err
	}
	return nil
}
