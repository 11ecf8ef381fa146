// Package rbac holds the authorization checks called at the start of protected operations.
package rbac

import (
	"context"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/server/middleware"
)

// ErrInsufficientPermissions is returned when the caller lacks a required permission.
var ErrInsufficientPermissions = apperr.New(apperr.KindForbidden, "Insufficient permissions")

// ErrAuthenticationRequired is returned when no identity is present on the context.
var ErrAuthenticationRequired = apperr.New(apperr.KindUnauthorized, "Authentication required")

// RoleLoader returns a user's roles with permissions loaded.
type RoleLoader interface {
	ListRolesForUser(ctx context.Context, userID string) ([]*domain.Role, error)
}

// PermissionSet flattens the role→permission graph into a set of "resource:action" names.
func PermissionSet(roles []*domain.Role) map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range roles {
		if r == nil {
			continue
		}
		for _, p := range r.Permissions {
			name := p.Name
			if name == "" {
				name = domain.PermissionName(p.Resource, p.Action)
			}
			set[name] = struct{}{}
		}
	}
	return set
}

// Check passes only if every required permission is in granted. No wildcard or hierarchy matching.
func Check(granted map[string]struct{}, required ...string) error {
	for _, p := range required {
		if _, ok := granted[p]; !ok {
			return ErrInsufficientPermissions
		}
	}
	return nil
}

// RequirePermissions ensures the caller is authenticated and holds every required permission.
// Permissions are resolved from storage on each call, so revoked grants take effect immediately.
// Returns the caller's user id on success.
func RequirePermissions(ctx context.Context, loader RoleLoader, required ...string) (string, error) {
	userID, err := RequireAuthenticated(ctx)
	if err != nil {
		return "", err
	}
	roles, err := loader.ListRolesForUser(ctx, userID)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to resolve permissions", err)
	}
	if err := Check(PermissionSet(roles), required...); err != nil {
		return "", err
	}
	return userID, nil
}

// RequireAuthenticated ensures the caller is authenticated and returns its user id.
func RequireAuthenticated(ctx context.Context) (string, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return "", ErrAuthenticationRequired
	}
	return userID, nil
}
