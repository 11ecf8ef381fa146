package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/apperr"
	rbacdomain "enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/security"
	userdomain "enterprise-api/backend/internal/user/domain"
)

// Permissions is the full catalogue. The admin role holds all of them.
var Permissions = []string{
	"users:read", "users:create", "users:update", "users:delete",
	"roles:read", "roles:create", "roles:update", "roles:delete",
	"notifications:read", "notifications:create",
	"files:read", "files:create", "files:delete",
}

// userPermissions are granted to the default "user" role.
var userPermissions = []string{"files:read", "files:create"}

type sampleUser struct {
	email, password, firstName, lastName, role string
}

var sampleUsers = []sampleUser{
	{email: "admin@example.com", password: "Admin123!", firstName: "Admin", lastName: "User", role: rbacdomain.RoleAdmin},
	{email: "user@example.com", password: "User123!", firstName: "Regular", lastName: "User", role: rbacdomain.RoleUser},
}

// RoleStore is the subset of the rbac repository used by the seeder.
type RoleStore interface {
	GetRoleByName(ctx context.Context, name string) (*rbacdomain.Role, error)
	CreateRole(ctx context.Context, r *rbacdomain.Role) error
	GetPermissionByName(ctx context.Context, name string) (*rbacdomain.Permission, error)
	CreatePermission(ctx context.Context, p *rbacdomain.Permission) error
	AssignPermission(ctx context.Context, roleID, permissionID string, at time.Time) error
	AssignRole(ctx context.Context, userID, roleID string, at time.Time) error
}

// UserStore is the subset of the user repository used by the seeder.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// Seeder writes the baseline data.
type Seeder struct {
	Roles  RoleStore
	Users  UserStore
	Hasher *security.Hasher
	Log    logrus.FieldLogger
	Now    func() time.Time
}

// Run seeds permissions, then roles with their grants, then the sample users.
func (s *Seeder) Run(ctx context.Context) error {
	now := s.Now().UTC()
	perms := make(map[string]string, len(Permissions))
	for _, name := range Permissions {
		id, err := s.permission(ctx, name, now)
		if err != nil {
			return err
		}
		perms[name] = id
	}

	roles := map[string]string{}
	for name, grants := range map[string][]string{
		rbacdomain.RoleAdmin: Permissions,
		rbacdomain.RoleUser:  userPermissions,
	} {
		id, err := s.role(ctx, name, now)
		if err != nil {
			return err
		}
		for _, p := range grants {
			err := s.Roles.AssignPermission(ctx, id, perms[p], now)
			if err != nil && !errors.Is(err, apperr.Conflict) {
				return fmt.Errorf("grant %s to %s: %w", p, name, err)
			}
		}
		roles[name] = id
	}

	for _, u := range sampleUsers {
		if err := s.user(ctx, u, roles[u.role], now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) permission(ctx context.Context, name string, now time.Time) (string, error) {
	existing, err := s.Roles.GetPermissionByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get permission %s: %w", name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}
	resource, action, _ := rbacdomain.ParsePermissionName(name)
	p := &rbacdomain.Permission{
		ID:          uuid.New().String(),
		Name:        name,
		Description: fmt.Sprintf("%s %s", action, resource),
		Resource:    resource,
		Action:      action,
		CreatedAt:   now,
	}
	if err := s.Roles.CreatePermission(ctx, p); err != nil {
		return "", fmt.Errorf("create permission %s: %w", name, err)
	}
	s.Log.WithField("permission", name).Info("seeded permission")
	return p.ID, nil
}

func (s *Seeder) role(ctx context.Context, name string, now time.Time) (string, error) {
	existing, err := s.Roles.GetRoleByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get role %s: %w", name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}
	r := &rbacdomain.Role{
		ID:          uuid.New().String(),
		Name:        name,
		Description: "System role " + name,
		IsSystem:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Roles.CreateRole(ctx, r); err != nil {
		return "", fmt.Errorf("create role %s: %w", name, err)
	}
	s.Log.WithField("role", name).Info("seeded role")
	return r.ID, nil
}

func (s *Seeder) user(ctx context.Context, su sampleUser, roleID string, now time.Time) error {
	existing, err := s.Users.GetByEmail(ctx, su.email)
	if err != nil {
		return fmt.Errorf("get user %s: %w", su.email, err)
	}
	var userID string
	if existing != nil {
		userID = existing.ID
	} else {
		hash, err := s.Hasher.Hash(su.password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u := &userdomain.User{
			ID:              uuid.New().String(),
			Email:           su.email,
			PasswordHash:    hash,
			FirstName:       su.firstName,
			LastName:        su.lastName,
			IsActive:        true,
			IsEmailVerified: true,
			EmailVerifiedAt: &now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", su.email, err)
		}
		userID = u.ID
		s.Log.WithField("email", su.email).Info("seeded user")
	}
	if err := s.Roles.AssignRole(ctx, userID, roleID, now); err != nil {
		return fmt.Errorf("assign %s to %s: %w", su.role, su.email, err)
	}
	return nil
}
