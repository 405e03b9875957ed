package siwe

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// TokenLifetime defines how long issued subscription tokens are valid.
const TokenLifetime = 24 * time.Hour

var (
	// ErrTokenExpired is returned when the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned when the token is invalid for any reason.
	ErrInvalidToken = errors.New("invalid token")
)

// SubscriptionClaims are the JWT claims carried by a token issued after a
// successful signature verification.
type SubscriptionClaims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"wallet_address"`
	Subscribed    bool   `json:"subscribed"`
}

// TokenService issues and validates subscription bearer tokens.
type TokenService struct {
	secret string
}

// NewTokenService creates a token service signing with the given secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: secret}
}

// Issue mints a token binding the wallet to an active subscription.
func (t *TokenService) Issue(wallet string) (string, error) {
	now := time.Now()

	claims := SubscriptionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		WalletAddress: wallet,
		Subscribed:    true,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.secret))
}

// Validate parses and verifies a token, returning its claims.
func (t *TokenService) Validate(tokenString string) (*SubscriptionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SubscriptionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(t.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SubscriptionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
