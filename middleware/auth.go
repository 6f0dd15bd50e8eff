package middleware

import (
	"context"
	"net/http"
	"strings"

	"spice-taste/handlers/auth"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// TokenVerifier is the part of auth.TokenService the gate needs.
type TokenVerifier interface {
	Verify(token string) (*auth.AppClaims, error)
}

// AuthJWT rejects requests without an Authorization header (401) or whose bearer
// token does not verify (403). On success the claims are stored in the request context.
// It proves the caller holds some issued token; it does not tie the token to a resource owner.
func AuthJWT(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"message": "Unauthorized access"})
				return
			}

			var tokenString string
			parts := strings.Fields(authHeader)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = parts[1]
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Warn("Rejected bearer token")
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, map[string]string{"message": "Forbidden access"})
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EmailFromContext returns the email of the verified caller, if the gate ran.
func EmailFromContext(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.AppClaims)
	if !ok || claims == nil {
		return "", false
	}
	return claims.Email, true
}
