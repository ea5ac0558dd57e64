package auth

import (
	"context"
	"fmt"
	"log/slog"

	fbauth "firebase.google.com/go/v4/auth"

	"subgen/internal/domain"
)

// FirebaseVerifier verifies Firebase ID tokens.
type FirebaseVerifier struct {
	client *fbauth.Client
	logger *slog.Logger
}

func NewFirebaseVerifier(client *fbauth.Client, logger *slog.Logger) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, logger: logger}
}

// Verify maps provider-side failures onto the credential error taxonomy.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, domain.ErrInvalidCredential
	}

	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		v.logger.Warn("token verification failed", "error", err)
		switch {
		case fbauth.IsIDTokenExpired(err):
			return Identity{}, fmt.Errorf("%w: %v", domain.ErrExpiredCredential, err)
		case fbauth.IsIDTokenRevoked(err):
			return Identity{}, fmt.Errorf("%w: %v", domain.ErrRevokedCredential, err)
		case fbauth.IsUserDisabled(err):
			return Identity{}, fmt.Errorf("%w: %v", domain.ErrDisabledAccount, err)
		default:
			return Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
		}
	}

	ident := Identity{UID: decoded.UID}
	if email, ok := decoded.Claims["email"].(string); ok {
		ident.Email = email
	}
	if name, ok := decoded.Claims["name"].(string); ok {
		ident.DisplayName = name
	}
	return ident, nil
}
