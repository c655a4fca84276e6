package auth

import (
	"github.com/angelmondragon/wardrobe-backend/internal/cart"
	"github.com/angelmondragon/wardrobe-backend/internal/users"
)

// LoginRequest accepts either the email or the username as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	GuestToken string `json:"-"`
}

// RegisterRequest carries the sign-up form.
type RegisterRequest struct {
	Name       string `json:"name" validate:"required,max=64"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	GuestToken string `json:"-"`
}

// RefreshRequest pairs the (possibly expired) access token with its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful sign-in.
type LoginResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	User         *users.UserDTO    `json:"user"`
	Merge        *cart.MergeResult `json:"merge,omitempty"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
