package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise-api/backend/internal/file/domain"
	"enterprise-api/backend/internal/file/service"
	"enterprise-api/backend/internal/platform/httpx"
	rbacdomain "enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/server/middleware"
)

const (
	ownerID = "0b6c3a52-7f7e-4d5c-9a1e-3f7a2c9d8e10"
	guestID = "7d9e1c24-2b8a-4f6d-8c3e-1a5b7c9d0e21"
	fileID  = "c3a1f2e4-5b6d-4e7f-8a9b-0c1d2e3f4a5b"
)

type roleMap map[string][]*rbacdomain.Role

func (m roleMap) ListRolesForUser(_ context.Context, userID string) ([]*rbacdomain.Role, error) {
	return m[userID], nil
}

var roles = roleMap{
	ownerID: {{Name: "user", Permissions: []rbacdomain.Permission{{Name: "files:read"}, {Name: "files:create"}}}},
	guestID: {},
}

type fakeFiles struct {
	uploadedBy string
	upload     service.Upload
	body       string
}

func (f *fakeFiles) Upload(_ context.Context, userID string, in service.Upload) (*domain.File, error) {
	f.uploadedBy, f.upload = userID, in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &domain.File{ID: fileID, UserID: userID, OriginalName: in.Name, MimeType: in.MimeType, Size: in.Size}, nil
}

func (f *fakeFiles) List(context.Context, string) ([]*domain.File, error) {
	return []*domain.File{}, nil
}

func (f *fakeFiles) Get(_ context.Context, id string) (*domain.File, error) {
	if id != fileID {
		return nil, service.ErrFileNotFound
	}
	return &domain.File{ID: id}, nil
}

func (f *fakeFiles) Delete(context.Context, string) error { return nil }

func serve(files Files, caller string, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = httpx.ErrorHandler(nil)
	g := e.Group("/files", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := middleware.WithIdentity(c.Request().Context(), middleware.Identity{UserID: caller})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(files, roles).Routes(g)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, name, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/files/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	files := &fakeFiles{}
	rec := serve(files, ownerID, multipartRequest(t, "photo.png", "image/png", "pngbytes"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, ownerID, files.uploadedBy)
	assert.Equal(t, "photo.png", files.upload.Name)
	assert.Equal(t, "image/png", files.upload.MimeType)
	assert.Equal(t, int64(8), files.upload.Size)
	assert.Equal(t, "pngbytes", files.body)
	assert.Contains(t, rec.Body.String(), `"originalName":"photo.png"`)
}

func TestUpload_MissingFileAndPermission(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/files/upload", nil)
	rec := serve(&fakeFiles{}, ownerID, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File is required")

	rec = serve(&fakeFiles{}, guestID, multipartRequest(t, "photo.png", "image/png", "x"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetAndDelete(t *testing.T) {
	rec := serve(&fakeFiles{}, ownerID, httptest.NewRequest(http.MethodGet, "/files/"+fileID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(&fakeFiles{}, ownerID, httptest.NewRequest(http.MethodGet, "/files/"+ownerID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(&fakeFiles{}, ownerID, httptest.NewRequest(http.MethodDelete, "/files/"+fileID, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code, "owner lacks files:delete")
}
