// Package server exposes the assistant HTTP API.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

// UserIDContextKey carries the authenticated user id through the request.
const UserIDContextKey contextKey = "user_id"

// JWTMiddleware validates Bearer tokens issued by the host platform.
// This service never issues tokens itself.
type JWTMiddleware struct {
	secretKey []byte
	logger    *zap.Logger
}

// NewJWTMiddleware creates the auth middleware. An empty secret gets a
// development default and a warning.
func NewJWTMiddleware(secret string, logger *zap.Logger) *JWTMiddleware {
	if secret == "" {
		secret = "default-dev-secret-change-in-production-32chars"
		logger.Warn("Using default JWT secret - set JWT_SECRET in production")
	}
	return &JWTMiddleware{
		secretKey: []byte(secret),
		logger:    logger,
	}
}

// Middleware wraps an http.Handler with JWT validation. Public paths are
// explicitly allowlisted; everything else requires a valid token.
func (m *JWTMiddleware) Middleware(next http.Handler) http.Handler {
	publicPaths := map[string]bool{
		"/api/health": true,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			if publicPaths[r.URL.Path] {
				ctx := context.WithValue(r.Context(), UserIDContextKey, "anonymous")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secretKey, nil
		})
		if err != nil || !token.Valid {
			m.logger.Warn("Invalid JWT token", zap.Error(err))
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}
		userID, _ := claims["sub"].(string)
		if userID == "" {
			http.Error(w, "Token missing user identifier", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the authenticated user id from a request context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDContextKey).(string); ok {
		return id
	}
	return "anonymous"
}
