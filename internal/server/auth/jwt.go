// Package auth issues and verifies the HS256 access tokens that scope a
// caller to a set of tenants.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// PersonalPrefix starts the storage namespace of personal-mode data. Tenant
// ids may not start with it, so personal rows never share a namespace with
// tenant rows.
const PersonalPrefix = "personal:"

// PersonalNamespace is the storage tenant for subject's personal data.
func PersonalNamespace(subject string) string {
	return PersonalPrefix + subject
}

// Claims carries the standard claims plus the tenants the bearer may read
// and write. Personal-mode calls act on PersonalNamespace(subject).
type Claims struct {
	jwt.RegisteredClaims
	TenantIDs []string `json:"tenants,omitempty"`
}

// GenerateToken signs a token for subject valid for validityDuration.
func GenerateToken(subject string, tenantIDs []string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", common.ErrValidation)
	}
	for _, t := range tenantIDs {
		if t == "" || strings.HasPrefix(t, PersonalPrefix) {
			return "", fmt.Errorf("%w: invalid tenant id %q", common.ErrValidation, t)
		}
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		TenantIDs: tenantIDs,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its claims. Expired tokens fail
// with common.ErrTokenExpired, anything else unusable with common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Tenant resolves the tenant a request acts on. An empty requested tenant is
// personal mode and maps to the subject's personal namespace. Any other
// tenant must be listed in the claims.
func (c *Claims) Tenant(requested string) (string, error) {
	if requested == "" {
		return PersonalNamespace(c.Subject), nil
	}
	if strings.HasPrefix(requested, PersonalPrefix) || !slices.Contains(c.TenantIDs, requested) {
		return "", fmt.Errorf("%w: %s", common.ErrTenantDenied, requested)
	}
	return requested, nil
}
