package models

import "github.com/golang-jwt/jwt/v4"

// Identity is what the authentication collaborator hands to the client: a
// stable opaque id and a display name. Nothing else about the session is used.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Nickname returns the display name, falling back to UnknownNickname.
func (i Identity) Nickname() string {
	if i.DisplayName == "" {
		return UnknownNickname
	}
	return i.DisplayName
}

// UserMetadata is the free-form metadata the auth backend stores per user.
type UserMetadata struct {
	Nickname string `json:"nickname,omitempty"`
}

// JwtCustomClaims are the claims of an access token issued by the auth backend.
// The subject is the user id.
type JwtCustomClaims struct {
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *JwtCustomClaims) Identity() Identity {
	return Identity{ID: c.Subject, DisplayName: c.UserMetadata.Nickname}
}
