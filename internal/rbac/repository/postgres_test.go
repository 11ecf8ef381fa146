package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"enterprise-api/backend/internal/apperr"
)

var graphColumns = []string{"r.id", "r.name", "r.description", "r.is_system", "r.created_at", "r.updated_at",
	"p.id", "p.name", "p.description", "p.resource", "p.action", "p.created_at"}

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn), mock
}

func TestListRolesForUser_FoldsPermissions(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM user_roles ur JOIN roles r").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(graphColumns).
			AddRow("r1", "admin", "Administrator", true, now, now, "p1", "files:read", nil, "files", "read", now).
			AddRow("r1", "admin", "Administrator", true, now, now, "p2", "users:read", nil, "users", "read", now).
			AddRow("r2", "empty", nil, false, now, now, nil, nil, nil, nil, nil, nil))

	roles, err := repo.ListRolesForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListRolesForUser: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("len(roles) = %d, want 2", len(roles))
	}
	if roles[0].Name != "admin" || len(roles[0].Permissions) != 2 || roles[0].Permissions[1].Name != "users:read" {
		t.Errorf("admin role = %+v", roles[0])
	}
	if roles[1].Permissions == nil || len(roles[1].Permissions) != 0 {
		t.Errorf("role without permissions should have an empty list, got %+v", roles[1].Permissions)
	}
}

func TestGetRole_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("WHERE r.id = \\$1").WithArgs("missing").WillReturnRows(sqlmock.NewRows(graphColumns))

	role, err := repo.GetRole(context.Background(), "missing")
	if err != nil || role != nil {
		t.Fatalf("GetRole = %+v, %v; want nil, nil", role, err)
	}
}

func TestAssignPermission_DuplicateIsConflict(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("INSERT INTO role_permissions").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "role_permissions_pkey"})

	err := repo.AssignPermission(context.Background(), "r1", "p1", time.Now())
	if !errors.Is(err, apperr.Conflict) {
		t.Fatalf("AssignPermission err = %v, want Conflict", err)
	}
}

func TestAssignPermission_UnknownRoleIsBadRequest(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("INSERT INTO role_permissions").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "role_permissions_role_id_fkey"})

	err := repo.AssignPermission(context.Background(), "nope", "p1", time.Now())
	if !errors.Is(err, apperr.BadRequest) {
		t.Fatalf("AssignPermission err = %v, want BadRequest", err)
	}
}
