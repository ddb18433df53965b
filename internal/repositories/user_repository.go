package repositories

import (
	"context"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

// UserRepository reads identities owned by the identity provider. This
// service never writes users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
