package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"enterprise-api/backend/internal/audit/domain"
)

var auditRowColumns = []string{"id", "user_id", "action", "resource", "resource_id", "ip_address", "user_agent",
	"metadata", "created_at"}

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn), mock
}

func TestCreate_AnonymousEventStoresNulls(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("a1", nil, "login_failure", "auth", nil, "10.0.0.1", "curl/8", `{"email":"x@example.com"}`, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.AuditLog{
		ID: "a1", Action: "login_failure", Resource: "auth", IPAddress: "10.0.0.1", UserAgent: "curl/8",
		Metadata: `{"email":"x@example.com"}`, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT .* FROM audit_logs WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	a, err := repo.GetByID(context.Background(), "missing")
	if err != nil || a != nil {
		t.Fatalf("GetByID = %v, %v; want nil, nil", a, err)
	}
}

func TestListByUser(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM audit_logs WHERE user_id = \\$1 ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("u1", 20, 0).
		WillReturnRows(sqlmock.NewRows(auditRowColumns).
			AddRow("a2", "u1", "User.updated", "User", "u9", "10.0.0.1", nil, nil, at).
			AddRow("a1", "u1", "login_success", "auth", nil, "10.0.0.1", "curl/8", `{}`, at.Add(-time.Hour)))

	logs, err := repo.ListByUser(context.Background(), "u1", 20, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len = %d, want 2", len(logs))
	}
	if logs[0].ResourceID != "u9" || logs[0].UserAgent != "" {
		t.Errorf("first = %+v", logs[0])
	}
	if logs[1].Metadata != "{}" || logs[1].ResourceID != "" {
		t.Errorf("second = %+v", logs[1])
	}
}
