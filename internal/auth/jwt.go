package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminTokenExpiry = 12 * time.Hour

var (
	ErrInvalidJWT = errors.New("invalid JWT token")
	ErrExpiredJWT = errors.New("JWT token expired")

	ErrProviderRequired = errors.New("superuser deve especificar provider_id")
	ErrNoTenant         = errors.New("usuário sem provedor associado")
	ErrForeignTenant    = errors.New("você só pode enviar mensagens para seu provedor")
)

// AdminClaims identify a panel user. TenantID is zero for users bound to no
// provider.
type AdminClaims struct {
	Username  string `json:"username"`
	TenantID  int64  `json:"tenant_id,omitempty"`
	Superuser bool   `json:"superuser,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies admin tokens with HS256.
type JWTService struct {
	secret []byte
	now    func() time.Time
}

func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret), now: time.Now}
}

func (s *JWTService) Sign(username string, tenantID int64, superuser bool) (string, error) {
	now := s.now()
	claims := &AdminClaims{
		Username:  username,
		TenantID:  tenantID,
		Superuser: superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) Verify(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredJWT
		}
		return nil, ErrInvalidJWT
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidJWT
	}
	return claims, nil
}

// TargetTenant decides which tenant an admin action applies to. Superusers
// must name one; everyone else is pinned to their own.
func (c *AdminClaims) TargetTenant(requested *int64) (int64, error) {
	if c.Superuser {
		if requested == nil || *requested == 0 {
			return 0, ErrProviderRequired
		}
		return *requested, nil
	}
	if c.TenantID == 0 {
		return 0, ErrNoTenant
	}
	if requested != nil && *requested != 0 && *requested != c.TenantID {
		return 0, ErrForeignTenant
	}
	return c.TenantID, nil
}
