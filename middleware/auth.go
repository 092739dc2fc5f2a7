package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/aishort/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// authFailure describes why a bearer header was rejected.
type authFailure struct {
	code    int
	message string
}

func authenticate(ctx *gin.Context, secret string) (*utils.Claims, *authFailure) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, &authFailure{40101, "authorization header missing"}
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, &authFailure{40102, "invalid authorization header format"}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, &authFailure{40103, "empty bearer token"}
	}

	claims, err := utils.ParseToken(secret, tokenString)
	if err != nil {
		return nil, &authFailure{40105, "invalid token"}
	}
	return claims, nil
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, fail := authenticate(ctx, secret)
		if fail != nil {
			utils.Error(ctx, http.StatusUnauthorized, fail.code, fail.message)
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// AuthOptional records the caller's identity when a bearer token is sent and
// lets anonymous requests through. A malformed or invalid token is still rejected.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			ctx.Next()
			return
		}
		claims, fail := authenticate(ctx, secret)
		if fail != nil {
			utils.Error(ctx, http.StatusUnauthorized, fail.code, fail.message)
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// AdminRequired must run after AuthRequired and admits only configured admins.
func AdminRequired(isAdmin func(username string) bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !isAdmin(ctx.GetString(ContextUsernameKey)) {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin privileges required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx *gin.Context) string {
	return ctx.GetString(ContextUserIDKey)
}

// Username returns the authenticated username, or "".
func Username(ctx *gin.Context) string {
	return ctx.GetString(ContextUsernameKey)
}
