package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/interfaces/http/response"
	"lexmatch.backend/pkg/jwt"
	"lexmatch.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for user ID
	UserIDKey = "userId"
	// UserRoleKey is the context key for user role
	UserRoleKey = "userRole"
)

// TokenValidator verifies bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware verifies the bearer token and stores the caller identity
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			logger.Warn(ctx, "authorization header missing", zap.String("path", c.Request.URL.Path))
			response.Abort(c, domainerrors.Unauthenticated("Authorization header is required"))
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			logger.Warn(ctx, "invalid authorization format", zap.String("path", c.Request.URL.Path))
			response.Abort(c, domainerrors.Unauthenticated("Invalid authorization format. Use: Bearer <token>"))
			return
		}

		claims, err := validator.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			logger.Warn(ctx, "token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.Abort(c, domainerrors.Unauthenticated("Token has expired"))
				return
			}
			response.Abort(c, domainerrors.Unauthenticated("Invalid token"))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, claims.Role)

		c.Next()
	}
}

// GetUserID gets the user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(UserIDKey)
	return userID, userID != ""
}

// GetUserRole gets the user role from context
func GetUserRole(c *gin.Context) (string, bool) {
	role := c.GetString(UserRoleKey)
	return role, role != ""
}

// RequireRole creates a middleware that requires one of the given roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := GetUserRole(c)
		if !exists {
			response.Abort(c, domainerrors.Unauthenticated("User role not found"))
			return
		}

		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}

		response.Abort(c, domainerrors.Unauthorized("Insufficient permissions"))
	}
}

// RequireAdmin creates a middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(jwt.RoleAdmin)
}
