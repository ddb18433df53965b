package casdoor

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// userLookup is the subset of the Casdoor client used here
type userLookup interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
}

type UserCasdoor struct {
	client userLookup
	cache  *cache.CacheHelper
}

func NewUserCasdoor(config CasdoorConfig, cacheManager *cache.CacheManager) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
	return newUserCasdoor(client, cacheManager)
}

func newUserCasdoor(client userLookup, cacheManager *cache.CacheManager) *UserCasdoor {
	u := &UserCasdoor{client: client, cache: cache.NewCacheHelper(nil, cache.UserCacheConfig.Prefix)}
	if cacheManager != nil {
		u.cache = cacheManager.User
	}
	return u
}

// ===== CONVERSION METHODS =====

// convertCasdoorUserToModel converts Casdoor user to internal model. Student
// profile fields live in Casdoor custom properties.
func convertCasdoorUserToModel(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	var createdAt, updatedAt time.Time
	if casdoorUser.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}

	user := &models.User{
		ID:         casdoorUser.Id,
		FullName:   casdoorUser.DisplayName,
		Email:      casdoorUser.Email,
		Role:       convertCasdoorRolesToModel(casdoorUser),
		Department: getPropertyOrDefault(casdoorUser.Properties, "department", ""),
		IsActive:   !casdoorUser.IsForbidden,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if casdoorUser.Avatar != "" {
		avatar := casdoorUser.Avatar
		user.AvatarURL = &avatar
	}
	if sid := getPropertyOrDefault(casdoorUser.Properties, "studentId", ""); sid != "" {
		user.StudentID = &sid
	}
	if sem, err := strconv.Atoi(getPropertyOrDefault(casdoorUser.Properties, "semester", "")); err == nil {
		user.Semester = sem
	}
	if user.FullName == "" {
		user.FullName = casdoorUser.Name
	}
	return user
}

// convertCasdoorRolesToModel collapses Casdoor roles into the single role the
// service understands. Admin wins over everything else.
func convertCasdoorRolesToModel(casdoorUser *casdoorsdk.User) models.UserRole {
	if casdoorUser.IsAdmin {
		return models.RoleAdmin
	}
	roles := make([]models.UserRole, 0, len(casdoorUser.Roles))
	for _, casdoorRole := range casdoorUser.Roles {
		roles = append(roles, mapSingleCasdoorRoleToUserRole(casdoorRole.Name))
	}
	if slices.Contains(roles, models.RoleAdmin) {
		return models.RoleAdmin
	}
	return models.RoleStudent
}

func mapSingleCasdoorRoleToUserRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}

func getPropertyOrDefault(properties map[string]string, key, defaultValue string) string {
	if value, exists := properties[key]; exists {
		return value
	}
	return defaultValue
}

// ===== READ OPERATIONS =====

// GetByID retrieves a user by ID
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := u.cache.CacheOrExecute(ctx, fmt.Sprintf("id:%s", id), &user, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		casdoorUser, err := u.client.GetUserByUserId(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
		}
		if casdoorUser == nil {
			return nil, fmt.Errorf("%w: %s", repositories.ErrUserNotFound, id)
		}
		return convertCasdoorUserToModel(casdoorUser), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs retrieves multiple users, skipping the ones that cannot be found
func (u *UserCasdoor) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := u.GetByID(ctx, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// HasRole checks if a user has a specific role
func (u *UserCasdoor) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return role == user.Role, nil
}
