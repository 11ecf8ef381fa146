package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise-api/backend/internal/apperr"
)

func serve(t *testing.T, h echo.HandlerFunc) (*httptest.ResponseRecorder, ErrorBody) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	e.GET("/items/:id", h)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/abc?limit=x", nil))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestErrorHandler_AppErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
		label   string
	}{
		{apperr.New(apperr.KindUnauthorized, "Invalid credentials"), 401, "Invalid credentials", "Unauthorized"},
		{apperr.New(apperr.KindConflict, "User with this email already exists"), 409, "User with this email already exists", "Conflict"},
		{apperr.New(apperr.KindForbidden, "Insufficient permissions"), 403, "Insufficient permissions", "Forbidden"},
		{errors.New("pq: connection refused"), 500, "Internal server error", "Internal Server Error"},
	}
	for _, tc := range cases {
		rec, body := serve(t, func(echo.Context) error { return tc.err })
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, ErrorBody{StatusCode: tc.status, Message: tc.message, Error: tc.label}, body)
	}
}

func TestErrorHandler_EchoErrors(t *testing.T) {
	rec, body := serve(t, func(echo.Context) error { return echo.NewHTTPError(http.StatusTooManyRequests) })
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too Many Requests", body.Message)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"statusCode":404`))
}

func TestUUIDParamAndIntQuery(t *testing.T) {
	rec, body := serve(t, func(c echo.Context) error {
		_, err := UUIDParam(c, "id")
		return err
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id must be a valid UUID", body.Message)

	_, body = serve(t, func(c echo.Context) error {
		_, err := IntQuery(c, "limit", 10)
		return err
	})
	assert.Equal(t, "limit must be an integer", body.Message)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	n, err := IntQuery(c, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBind_InvalidBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	var v struct{ Email string }
	err := Bind(c, &v)
	assert.ErrorIs(t, err, apperr.BadRequest)
	var he *echo.HTTPError
	assert.False(t, errors.As(err, &he), "decoder errors should not carry echo's HTTPError")
}

func TestBody_AppErrorWrappingEchoError(t *testing.T) {
	err := apperr.Wrap(apperr.KindBadRequest, "Invalid request body",
		echo.NewHTTPError(http.StatusBadRequest, "unexpected EOF"))
	assert.Equal(t, ErrorBody{StatusCode: 400, Message: "Invalid request body", Error: "Bad Request"}, Body(err))
}

func TestErrorHandler_TruncatedJSONBody(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	e.POST("/items", func(c echo.Context) error {
		var v struct{ Email string }
		return Bind(c, &v)
	})
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"email":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid request body", body.Message)
	assert.NotContains(t, rec.Body.String(), "EOF")
}
