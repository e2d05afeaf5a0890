package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/identity"
	"github.com/anonto42/nano-feed/backend/internal/logging"
)

// UIDKey is the echo context key holding the verified Firebase UID.
const UIDKey = "firebaseUID"

// TokenVerifier is satisfied by *auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware creates an Echo middleware to verify Firebase ID tokens.
// Websocket upgrades may pass the token as the "token" query parameter since
// browsers cannot set headers on them.
func FirebaseAuthMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			req := c.Request()
			token, err := verifier.VerifyIDToken(req.Context(), idToken)
			if err != nil {
				logging.Debug().Err(err).Str("path", req.URL.Path).Msg("id token rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			c.Set(UIDKey, token.UID)
			c.SetRequest(req.WithContext(identity.WithUID(req.Context(), token.UID)))
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if t := c.QueryParam("token"); t != "" && c.IsWebSocket() {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
	}
	return strings.TrimSpace(token), nil
}

// UID returns the verified caller of the request.
func UID(c echo.Context) string {
	uid, _ := c.Get(UIDKey).(string)
	return uid
}
