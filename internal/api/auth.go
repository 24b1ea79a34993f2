package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/firefly-engineering/desklab/internal/authz"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

const subjectKey = "subject"

const (
	actionLaunch      = authz.ActionLaunch
	actionManage      = authz.ActionManage
	actionSave        = authz.ActionSave
	actionPromote     = authz.ActionPromote
	actionDeleteImage = authz.ActionDeleteImage
	actionReconcile   = authz.ActionReconcile
	actionManageUsers = authz.ActionManageUsers
)

// basicAuth authenticates every API request against the account store and
// stores the subject in the context.
func (s *Server) basicAuth() echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: "desklab",
		Validator: func(name, password string, c echo.Context) (bool, error) {
			subject, err := s.users.Authenticate(c.Request().Context(), name, password)
			if err != nil {
				if deskerrors.HasCode(err, deskerrors.ExitUnauthorized) {
					s.log.Debug("authentication failed", "user", name, "remote", c.RealIP())
					return false, nil
				}
				return false, err
			}
			c.Set(subjectKey, subject)
			return true, nil
		},
	})
}

// require rejects requests whose subject may not perform action.
func (s *Server) require(action authz.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authz.Check(subject(c), action); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// subject returns the authenticated subject, or the zero subject.
func subject(c echo.Context) authz.Subject {
	s, _ := c.Get(subjectKey).(authz.Subject)
	return s
}
