package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise-api/backend/internal/platform/httpx"
	rbacdomain "enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/server/middleware"
	"enterprise-api/backend/internal/user/domain"
	"enterprise-api/backend/internal/user/service"
)

const (
	adminID  = "0b6c3a52-7f7e-4d5c-9a1e-3f7a2c9d8e10"
	readerID = "7d9e1c24-2b8a-4f6d-8c3e-1a5b7c9d0e21"
	targetID = "c3a1f2e4-5b6d-4e7f-8a9b-0c1d2e3f4a5b"
)

type roleMap map[string][]*rbacdomain.Role

func (m roleMap) ListRolesForUser(_ context.Context, userID string) ([]*rbacdomain.Role, error) {
	return m[userID], nil
}

func perms(names ...string) []*rbacdomain.Role {
	r := &rbacdomain.Role{Name: "r"}
	for _, n := range names {
		r.Permissions = append(r.Permissions, rbacdomain.Permission{Name: n})
	}
	return []*rbacdomain.Role{r}
}

var roles = roleMap{
	adminID:  perms("users:create", "users:read", "users:update", "users:delete"),
	readerID: perms("users:read"),
}

type fakeUsers struct {
	lastQuery service.ListQuery
	deleted   string
}

func (f *fakeUsers) Create(_ context.Context, in service.CreateInput) (*domain.Profile, error) {
	p := &domain.Profile{}
	p.ID, p.Email = targetID, in.Email
	return p, nil
}

func (f *fakeUsers) List(_ context.Context, q service.ListQuery) (*service.Page, error) {
	f.lastQuery = q
	return &service.Page{Data: []domain.Profile{}, Meta: service.NewMeta(0, q.Page, q.Limit)}, nil
}

func (f *fakeUsers) Get(_ context.Context, id string) (*domain.Profile, error) {
	if id != targetID {
		return nil, service.ErrUserNotFound
	}
	p := &domain.Profile{}
	p.ID = id
	return p, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, _ service.UpdateInput) (*domain.Profile, error) {
	return f.Get(context.Background(), id)
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func serve(users Users, caller, method, path, body string) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = httpx.ErrorHandler(nil)
	g := e.Group("/users", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := middleware.WithIdentity(c.Request().Context(), middleware.Identity{UserID: caller})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(users, roles).Routes(g)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreate(t *testing.T) {
	rec := serve(&fakeUsers{}, adminID, http.MethodPost, "/users", `{"email":"new@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"new@example.com"`)

	rec = serve(&fakeUsers{}, readerID, http.MethodPost, "/users", `{"email":"new@example.com","password":"Secret123"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestList_ParsesPagination(t *testing.T) {
	users := &fakeUsers{}
	rec := serve(users, readerID, http.MethodGet, "/users?page=3&limit=20&search=bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ListQuery{Page: 3, Limit: 20, Search: "bob"}, users.lastQuery)
	assert.Contains(t, rec.Body.String(), `"hasPreviousPage":true`)

	rec = serve(users, readerID, http.MethodGet, "/users?page=two", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGet(t *testing.T) {
	rec := serve(&fakeUsers{}, readerID, http.MethodGet, "/users/"+targetID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(&fakeUsers{}, readerID, http.MethodGet, "/users/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "id must be a valid UUID")

	rec = serve(&fakeUsers{}, readerID, http.MethodGet, "/users/"+adminID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	users := &fakeUsers{}
	rec := serve(users, adminID, http.MethodPatch, "/users/"+targetID, `{"firstName":"Bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(users, readerID, http.MethodDelete, "/users/"+targetID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, users.deleted)

	rec = serve(users, adminID, http.MethodDelete, "/users/"+targetID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, targetID, users.deleted)
}
