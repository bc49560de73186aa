package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// UserIDContextKey holds the authenticated user id.
const UserIDContextKey = contextKey("userID")

// UserFromContext returns the user id set by BearerAuth.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDContextKey).(string)
	return id, ok && id != ""
}

// APIKeyAuth guards machine-to-machine endpoints with the x-api-key header.
// An empty key rejects every request.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("x-api-key")
			if key == "" || provided == "" ||
				subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerAuth validates an HS256 user token signed with secret and puts its
// subject into the request context.
func BearerAuth(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				unauthorized(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				unauthorized(w, r)
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, r)
				return
			}

			userID, err := claims.GetSubject()
			if err != nil || userID == "" {
				unauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
