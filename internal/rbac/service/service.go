package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/rbac/repository"
)

// Sentinel errors for the role service.
var (
	ErrRoleNotFound       = apperr.New(apperr.KindNotFound, "Role not found")
	ErrPermissionNotFound = apperr.New(apperr.KindBadRequest, "Permission not found")
	ErrSystemRole         = apperr.New(apperr.KindBadRequest, "System roles cannot be modified or deleted")
	ErrRoleNameTaken      = apperr.New(apperr.KindConflict, "Role with this name already exists")
)

// CreateRoleInput is the payload for CreateRole.
type CreateRoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// UpdateRoleInput is the payload for UpdateRole. Nil fields are left unchanged.
type UpdateRoleInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// RoleService manages roles and permission grants.
type RoleService struct {
	repo repository.Repository
	now  func() time.Time
}

// NewRoleService returns a RoleService backed by repo.
func NewRoleService(repo repository.Repository) *RoleService {
	return &RoleService{repo: repo, now: time.Now}
}

// ListRoles returns every role with its permissions.
func (s *RoleService) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []*domain.Role{}
	}
	return roles, nil
}

// GetRole returns the role or ErrRoleNotFound.
func (s *RoleService) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	r, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrRoleNotFound
	}
	return r, nil
}

// CreateRole creates a custom role and grants the named permissions. Custom roles are never system roles.
func (s *RoleService) CreateRole(ctx context.Context, in CreateRoleInput) (*domain.Role, error) {
	now := s.now().UTC()
	role := &domain.Role{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := role.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	}
	if existing, err := s.repo.GetRoleByName(ctx, role.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrRoleNameTaken
	}

	perms := make([]*domain.Permission, 0, len(in.Permissions))
	for _, name := range in.Permissions {
		p, err := s.repo.GetPermissionByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, apperr.Newf(apperr.KindBadRequest, "Permission %q not found", name)
		}
		perms = append(perms, p)
	}

	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	for _, p := range perms {
		if err := s.repo.AssignPermission(ctx, role.ID, p.ID, now); err != nil {
			return nil, err
		}
	}
	return s.GetRole(ctx, role.ID)
}

// UpdateRole renames or re-describes a custom role.
func (s *RoleService) UpdateRole(ctx context.Context, id string, in UpdateRoleInput) (*domain.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem && in.Name != nil && strings.TrimSpace(*in.Name) != role.Name {
		return nil, ErrSystemRole
	}
	if in.Name != nil {
		role.Name = *in.Name
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}
	if err := role.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	}
	role.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole deletes a custom role. System roles are protected.
func (s *RoleService) DeleteRole(ctx context.Context, id string) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	return s.repo.DeleteRole(ctx, id)
}

// AssignPermission grants the named permission to the role and returns the updated role.
func (s *RoleService) AssignPermission(ctx context.Context, roleID, permissionName string) (*domain.Role, error) {
	if _, _, ok := domain.ParsePermissionName(permissionName); !ok {
		return nil, apperr.New(apperr.KindBadRequest, "Permission must be in resource:action form")
	}
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPermissionByName(ctx, permissionName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPermissionNotFound
	}
	if err := s.repo.AssignPermission(ctx, roleID, p.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.GetRole(ctx, roleID)
}

// RemovePermission revokes the named permission from the role.
func (s *RoleService) RemovePermission(ctx context.Context, roleID, permissionName string) (*domain.Role, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPermissionByName(ctx, permissionName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPermissionNotFound
	}
	if err := s.repo.RemovePermission(ctx, roleID, p.ID); err != nil {
		return nil, err
	}
	return s.GetRole(ctx, roleID)
}

// ListPermissions returns every permission.
func (s *RoleService) ListPermissions(ctx context.Context) ([]*domain.Permission, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []*domain.Permission{}
	}
	return perms, nil
}

// AssignRoleByName grants the named role to userID.
func (s *RoleService) AssignRoleByName(ctx context.Context, userID, roleName string) error {
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return apperr.Newf(apperr.KindBadRequest, "Role %q not found", roleName)
	}
	return s.repo.AssignRole(ctx, userID, role.ID, s.now().UTC())
}

// RolesForUser returns the roles assigned to userID with permissions loaded.
func (s *RoleService) RolesForUser(ctx context.Context, userID string) ([]*domain.Role, error) {
	return s.repo.ListRolesForUser(ctx, userID)
}
