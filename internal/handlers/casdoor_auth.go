package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/config"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
)

// tokenParser is the part of the Casdoor client the middleware needs
type tokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	parser   tokenParser
	userRepo repositories.UserRepository
	logger   utils.Logger
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)

	return newCasdoorAuthMiddleware(client, userRepo, logger)
}

func newCasdoorAuthMiddleware(parser tokenParser, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		parser:   parser,
		userRepo: userRepo,
		logger:   logger,
	}
}

// AuthMiddleware returns a Gin middleware function for Casdoor authentication
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Authorization header missing",
			})
			return
		}

		// "Bearer <token>"
		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid authorization header format",
			})
			return
		}

		claims, err := cam.parser.ParseJwtToken(tokenParts[1])
		if err != nil {
			utils.GetLogger(c, cam.logger).Warn("Rejected bearer token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid token",
			})
			return
		}

		user, err := cam.extractUserFromClaims(c.Request.Context(), claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Failed to extract user info",
				Details: err.Error(),
			})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "User account is disabled",
			})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)

		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role. Admins pass every check.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Forbidden",
				Details: err.Error(),
			})
			return
		}

		if role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, requiredRole := range requiredRoles {
			if role == requiredRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "Insufficient permissions",
			Details: fmt.Sprintf("required role: %v", requiredRoles),
		})
	}
}

// extractUserFromClaims prefers the directory record and falls back to the
// token when the directory is unreachable
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	if claims.Id == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	user, err := cam.userRepo.GetByID(ctx, claims.Id)
	if err != nil {
		cam.logger.Warn("User lookup failed, using token claims",
			"user_id", claims.Id,
			"error", err)
		return createUserFromClaims(claims), nil
	}

	// Token role is authoritative for admins promoted after the cache filled
	if tokenRole := roleFromClaims(claims); tokenRole == models.RoleAdmin && user.Role != models.RoleAdmin {
		elevated := *user
		elevated.Role = tokenRole
		return &elevated, nil
	}
	return user, nil
}

func createUserFromClaims(claims *casdoorsdk.Claims) *models.User {
	now := time.Now()
	user := &models.User{
		ID:        claims.Id,
		FullName:  claims.User.DisplayName,
		Email:     claims.User.Email,
		Role:      roleFromClaims(claims),
		IsActive:  !claims.User.IsForbidden,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if claims.User.Avatar != "" {
		avatar := claims.User.Avatar
		user.AvatarURL = &avatar
	}
	if user.FullName == "" {
		user.FullName = claims.User.Name
	}
	return user
}

func roleFromClaims(claims *casdoorsdk.Claims) models.UserRole {
	if claims.User.IsAdmin {
		return models.RoleAdmin
	}
	switch strings.ToLower(claims.User.Type) {
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}

// GetUserFromContext extracts user from Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return userModel, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get("user_role")
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
