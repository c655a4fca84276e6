package auth

import "github.com/golang-jwt/jwt/v5"

const (
	audienceAccess    = "access"
	audienceGuestCart = "guest_cart"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID int64
	Name   string
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to signed-in shoppers.
type AccessTokenClaims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GuestCartClaims binds an anonymous visitor to their cart row.
type GuestCartClaims struct {
	CartID int64 `json:"cart_id"`
	jwt.RegisteredClaims
}
