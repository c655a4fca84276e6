package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

// MintGuestCartToken signs a token naming an anonymous cart. The token
// expires after ttl; an expired token simply stops resolving to its cart.
func MintGuestCartToken(cfg config.JWTConfig, ttl time.Duration, now time.Time, cartID int64) (string, error) {
	if err := validateSigningConfig(cfg); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("guest token ttl must be positive")
	}
	if cartID <= 0 {
		return "", fmt.Errorf("invalid cart id %d", cartID)
	}

	claims := GuestCartClaims{
		CartID: cartID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(cartID, 10),
			Audience:  jwt.ClaimStrings{audienceGuestCart},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return sign(cfg, claims)
}

// ParseGuestCartToken validates a guest token and returns the cart id it names.
func ParseGuestCartToken(cfg config.JWTConfig, tokenString string) (int64, error) {
	claims := &GuestCartClaims{}
	if err := parse(cfg, tokenString, claims, audienceGuestCart); err != nil {
		return 0, err
	}
	if claims.CartID <= 0 {
		return 0, fmt.Errorf("guest token missing cart id")
	}
	return claims.CartID, nil
}
