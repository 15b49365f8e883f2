package auth

import (
	"fmt"

	"support-relay/contract"
	"support-relay/domain"
)

var _ contract.IdentityVerifier = (*TokenVerifier)(nil)

// TokenVerifier resolves a presented session token to a verified identity.
// The relay core consumes it strictly before an identify event is built, so
// credential checking never happens inside the relay's state boundary.
type TokenVerifier struct {
	tokens *TokenManager
}

func NewTokenVerifier(tokens *TokenManager) *TokenVerifier {
	return &TokenVerifier{tokens: tokens}
}

func (v *TokenVerifier) Verify(token string) (domain.Identity, error) {
	claims, err := v.tokens.Validate(token)
	if err != nil {
		return domain.Identity{}, err
	}

	identity := domain.Identity{
		UserID: claims.UserID,
		Role:   domain.Role(claims.Role),
	}
	if identity.UserID == "" || !identity.Role.Valid() {
		return domain.Identity{}, fmt.Errorf("token carries no usable identity")
	}
	return identity, nil
}
