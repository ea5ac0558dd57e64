// Package auth resolves opaque bearer credentials to internal identities.
package auth

import "context"

// Identity is the subject a verified credential maps to.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// TokenVerifier checks a bearer credential against the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
