package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
	"github.com/viralforge/identity-service/internal/ports"
)

func (s *Service) issueTokens(account domain.Account, role domain.Role) (issuedTokens, error) {
	now := s.nowFn()
	access, err := s.tokenSigner.Sign(ports.AccessClaims{
		AccountID: account.ID,
		Name:      account.FullName,
		Email:     account.Email,
		Role:      role.Name,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(accessTokenTTL),
	})
	if err != nil {
		return issuedTokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.refreshTokens.Generate()
	if err != nil {
		return issuedTokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return issuedTokens{access: access, refresh: refresh}, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry of an access token.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (ports.AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ports.AccessClaims{}, fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	claims, err := s.tokenSigner.ParseAndValidate(token)
	if err != nil {
		appLogger().WarnContext(ctx, "access token rejected",
			"operation", "validate_access_token",
			"outcome", "failure",
			"error", err.Error(),
		)
		return ports.AccessClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return claims, nil
}
