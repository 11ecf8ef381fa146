package repository

import (
	"context"
	"time"

	"enterprise-api/backend/internal/rbac/domain"
)

// Repository defines persistence for roles, permissions and their assignments.
// Role reads return the role with its permissions loaded.
type Repository interface {
	ListRoles(ctx context.Context) ([]*domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	CreateRole(ctx context.Context, r *domain.Role) error
	UpdateRole(ctx context.Context, r *domain.Role) error
	DeleteRole(ctx context.Context, id string) error

	ListPermissions(ctx context.Context) ([]*domain.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*domain.Permission, error)
	CreatePermission(ctx context.Context, p *domain.Permission) error
	AssignPermission(ctx context.Context, roleID, permissionID string, at time.Time) error
	RemovePermission(ctx context.Context, roleID, permissionID string) error

	// ListRolesForUser returns the roles assigned to userID with their permissions.
	ListRolesForUser(ctx context.Context, userID string) ([]*domain.Role, error)
	AssignRole(ctx context.Context, userID, roleID string, at time.Time) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}
