package middleware

import (
	"errors"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/security"
)

// ErrMissingToken is returned when a protected route is called without a valid Bearer access token.
var ErrMissingToken = apperr.New(apperr.KindUnauthorized, "Missing or invalid authorization")

// AccessValidator verifies access tokens. Implemented by *security.TokenProvider.
type AccessValidator interface {
	ValidateAccess(token string) (*security.AccessClaims, error)
}

// claimsKey is the echo context key the validated claims are stored under.
const claimsKey = "user"

// JWT returns a middleware that requires a Bearer access token and puts the caller's Identity on the request
// context. Refresh tokens are rejected because they are signed with a different key.
func JWT(v AccessValidator) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(_ echo.Context, auth string) (interface{}, error) {
			claims, err := v.ValidateAccess(strings.TrimSpace(auth))
			if err != nil {
				return nil, err
			}
			if claims.Subject == "" {
				return nil, security.ErrInvalidToken
			}
			return claims, nil
		},
		SuccessHandler: func(c echo.Context) {
			claims, ok := c.Get(claimsKey).(*security.AccessClaims)
			if !ok {
				return
			}
			ctx := WithIdentity(c.Request().Context(), Identity{
				UserID: claims.Subject,
				Email:  claims.Email,
				Roles:  claims.Roles,
			})
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			var extractErr *echojwt.TokenExtractionError
			if errors.As(err, &extractErr) {
				return ErrMissingToken
			}
			return apperr.Wrap(apperr.KindUnauthorized, "Invalid or expired token", err)
		},
	})
}
