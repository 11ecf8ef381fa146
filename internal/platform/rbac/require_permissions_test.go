package rbac

import (
	"context"
	"errors"
	"testing"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/server/middleware"
)

// mockLoader implements RoleLoader for tests.
type mockLoader struct {
	roles map[string][]*domain.Role
	err   error
}

func (m *mockLoader) ListRolesForUser(_ context.Context, userID string) ([]*domain.Role, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.roles[userID], nil
}

func perms(names ...string) []domain.Permission {
	out := make([]domain.Permission, len(names))
	for i, n := range names {
		r, a, _ := domain.ParsePermissionName(n)
		out[i] = domain.Permission{Name: n, Resource: r, Action: a}
	}
	return out
}

func TestPermissionSet_FlattensAcrossRoles(t *testing.T) {
	set := PermissionSet([]*domain.Role{
		{Name: "user", Permissions: perms("files:read", "files:create")},
		{Name: "auditor", Permissions: append(perms("files:read"), domain.Permission{Resource: "users", Action: "read"})},
		nil,
	})
	if len(set) != 3 {
		t.Fatalf("len(set) = %d, want 3 (%v)", len(set), set)
	}
	if _, ok := set["users:read"]; !ok {
		t.Error("permission with empty name should fall back to resource:action")
	}
}

func TestCheck_RequiresEveryPermission(t *testing.T) {
	granted := PermissionSet([]*domain.Role{{Permissions: perms("users:read", "users:update")}})
	if err := Check(granted, "users:read", "users:update"); err != nil {
		t.Errorf("all present: %v", err)
	}
	if err := Check(granted, "users:read", "users:delete"); !errors.Is(err, apperr.Forbidden) {
		t.Errorf("one missing: want Forbidden, got %v", err)
	}
	if err := Check(granted); err != nil {
		t.Errorf("no requirements should pass: %v", err)
	}
	if err := Check(PermissionSet([]*domain.Role{{Permissions: perms("users:*")}}), "users:read"); err == nil {
		t.Error("wildcards must not match")
	}
}

func TestRequirePermissions(t *testing.T) {
	loader := &mockLoader{roles: map[string][]*domain.Role{
		"admin-1": {{Name: "admin", Permissions: perms("roles:read", "roles:update")}},
		"user-1":  {{Name: "user", Permissions: perms("files:read")}},
	}}

	ctx := middleware.WithIdentity(context.Background(), middleware.Identity{UserID: "admin-1"})
	userID, err := RequirePermissions(ctx, loader, "roles:read", "roles:update")
	if err != nil || userID != "admin-1" {
		t.Fatalf("RequirePermissions = %q, %v", userID, err)
	}

	ctx = middleware.WithIdentity(context.Background(), middleware.Identity{UserID: "user-1"})
	if _, err := RequirePermissions(ctx, loader, "roles:read"); !errors.Is(err, apperr.Forbidden) {
		t.Errorf("user without grant: want Forbidden, got %v", err)
	}

	if _, err := RequirePermissions(context.Background(), loader, "roles:read"); !errors.Is(err, apperr.Unauthorized) {
		t.Errorf("no identity: want Unauthorized, got %v", err)
	}

	failing := &mockLoader{err: errors.New("db down")}
	ctx = middleware.WithIdentity(context.Background(), middleware.Identity{UserID: "admin-1"})
	if _, err := RequirePermissions(ctx, failing, "roles:read"); apperr.KindOf(err) != apperr.KindInternal {
		t.Errorf("loader failure: want Internal, got %v", err)
	}
}
