package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Context key for user data
type contextKey string

const userContextKey contextKey = "user"

// JWTClaims are the claims issued by the identity service. The session
// owner is user_id, falling back to sub.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// AuthUser represents the authenticated user in request context
type AuthUser struct {
	ID string
}

// withAuth is middleware that requires valid JWT authentication. Browsers
// cannot set headers on a WebSocket handshake, so the token may also come
// in the "token" query parameter.
//
// With no JWT secret configured authentication is disabled and every
// request runs as an anonymous user with an empty ID.
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.cfg.JWTSecret == "" {
			ctx := context.WithValue(req.Context(), userContextKey, &AuthUser{})
			next.ServeHTTP(w, req.WithContext(ctx))
			return
		}

		tokenString, ok := bearerToken(req)
		if !ok {
			http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
			return
		}
		if tokenString == "" {
			http.Error(w, `{"error": "invalid authorization format"}`, http.StatusUnauthorized)
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(r.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok {
			http.Error(w, `{"error": "invalid token claims"}`, http.StatusUnauthorized)
			return
		}
		userID := claims.UserID
		if userID == "" {
			userID = claims.Subject
		}
		if userID == "" {
			http.Error(w, `{"error": "token has no subject"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(req.Context(), userContextKey, &AuthUser{ID: userID})
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>" or
// the token query parameter. ok is false when neither is present; an
// empty token with ok true means the header was malformed.
func bearerToken(req *http.Request) (string, bool) {
	if authHeader := req.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", true
		}
		return parts[1], true
	}
	if t := req.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}

// getAuthUser extracts the authenticated user from context
func getAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(userContextKey).(*AuthUser)
	return user
}

// ownerID is the session owner for the request; empty when anonymous.
func ownerID(req *http.Request) string {
	if user := getAuthUser(req.Context()); user != nil {
		return user.ID
	}
	return ""
}
