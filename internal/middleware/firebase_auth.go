package middleware

import (
	"context"
	"fmt"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// IDTokenVerifier is satisfied by *auth.Client.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

var firebaseUIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://firebase.google.com/auth/uid"))

// FirebaseUserID maps a Firebase uid onto the UUID keyspace of the profile
// and follow tables. The mapping is stable.
func FirebaseUserID(uid string) string {
	return uuid.NewSHA1(firebaseUIDNamespace, []byte(uid)).String()
}

// FirebaseAuthMiddleware verifies Firebase ID tokens. FirebaseUserID(uid)
// becomes the identity id and the "name" claim its display name.
func FirebaseAuthMiddleware(verifier IDTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			token, err := verifier.VerifyIDToken(c.Request().Context(), idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("Invalid or expired ID token: %v", err))
			}

			name, _ := token.Claims["name"].(string)
			setIdentity(c, models.Identity{ID: FirebaseUserID(token.UID), DisplayName: name})
			return next(c)
		}
	}
}
