package auth

import (
	"context"

	"subgen/internal/domain"
)

// StaticVerifier resolves tokens from a fixed table. Test helper.
type StaticVerifier map[string]Identity

func (v StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	ident, ok := v[token]
	if !ok {
		return Identity{}, domain.ErrInvalidCredential
	}
	return ident, nil
}
