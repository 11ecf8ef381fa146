// Package httpx holds the echo helpers shared by every feature handler: the error body, binding and path
// parameters.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/platform/validate"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// StatusOf maps an application error kind to an HTTP status.
func StatusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders apperr and echo errors as ErrorBody. Internal errors are logged with their cause and
// answered with a generic message.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	log = logging.OrDiscard(log)
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		body := Body(err)
		if body.StatusCode >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
			}).Error("request failed")
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(body.StatusCode)
		} else {
			werr = c.JSON(body.StatusCode, body)
		}
		if werr != nil {
			log.WithError(werr).Warn("failed to write error response")
		}
	}
}

// Body builds the error body for err. An *apperr.Error anywhere in the chain wins over an *echo.HTTPError.
func Body(err error) ErrorBody {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ErrorBody{StatusCode: StatusOf(ae.Kind), Message: apperr.MessageOf(err), Error: ae.Kind.String()}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return ErrorBody{StatusCode: he.Code, Message: msg, Error: http.StatusText(he.Code)}
	}
	kind := apperr.KindOf(err)
	return ErrorBody{StatusCode: StatusOf(kind), Message: apperr.MessageOf(err), Error: kind.String()}
}

// Bind decodes the request body into v. Decoding failures are BadRequest.
func Bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Internal != nil {
			err = he.Internal
		}
		return apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err)
	}
	return nil
}

// UUIDParam returns the named path parameter after checking it is a UUID.
func UUIDParam(c echo.Context, name string) (string, error) {
	v := c.Param(name)
	if err := validate.UUID(name, v); err != nil {
		return "", err
	}
	return v, nil
}

// IntQuery parses an optional integer query parameter, returning def when absent.
func IntQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.New(apperr.KindBadRequest, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// Message is the body of responses that only carry a message.
type Message struct {
	Message string `json:"message"`
}
