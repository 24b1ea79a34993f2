package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/metrics"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}

	var de *deskerrors.DeskError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, "internal error"
	}

	switch de.Code {
	case deskerrors.ExitGeneralError:
		return http.StatusBadRequest, de.Message
	case deskerrors.ExitNotFound:
		return http.StatusNotFound, de.Message
	case deskerrors.ExitPortAllocation:
		return http.StatusServiceUnavailable, de.Message
	case deskerrors.ExitExternalFailure:
		return http.StatusBadGateway, de.Message
	case deskerrors.ExitForbidden:
		return http.StatusForbidden, de.Message
	case deskerrors.ExitUnauthorized:
		return http.StatusUnauthorized, de.Message
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, message := statusFor(err)
	metrics.HTTPErrorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
	} else {
		s.log.Debug("request rejected", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
	}

	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="desklab"`)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, errorResponse{Error: message})
}
