package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/docstore"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
	"github.com/firefly-engineering/desklab/internal/token"
	"github.com/firefly-engineering/desklab/internal/users"
)

type launchRequest struct {
	Image string `json:"image"`
}

type launchResponse struct {
	ID    string `json:"id"`
	Port  int    `json:"port"`
	Token string `json:"token"`
}

type credentialRequest struct {
	Credential string `json:"credential"`
}

type saveRequest struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

type promoteRequest struct {
	Source string `json:"source"`
	Tag    string `json:"tag"`
	Name   string `json:"name"`
	Desc   string `json:"desc"`
}

type refResponse struct {
	Ref string `json:"ref"`
}

type imagesResponse struct {
	Base []lifecycle.ImageEntry `json:"base"`
	Mine []lifecycle.ImageEntry `json:"mine"`
}

type addUserRequest struct {
	Name     string     `json:"name"`
	Password string     `json:"password"`
	Role     authz.Role `json:"role"`
	Comment  string     `json:"comment"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return deskerrors.ValidationError("invalid request body")
	}
	return nil
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.manager.Sessions(c.Request().Context(), subject(c).Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleLaunch(c echo.Context) error {
	var req launchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user := subject(c).Name
	sid, port, err := s.manager.Launch(c.Request().Context(), user, req.Image)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, launchResponse{ID: sid, Port: port, Token: token.Format(user, sid)})
}

func (s *Server) handleDestroy(c echo.Context) error {
	if err := s.manager.Destroy(c.Request().Context(), subject(c).Name, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReboot(c echo.Context) error {
	if err := s.manager.Reboot(c.Request().Context(), subject(c).Name, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.manager.Reset(c.Request().Context(), subject(c).Name, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCredential(c echo.Context) error {
	var req credentialRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Credential == "" {
		return deskerrors.ValidationError("credential is required")
	}

	if err := s.manager.RotateCredential(c.Request().Context(), subject(c).Name, c.Param("id"), req.Credential); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSave(c echo.Context) error {
	var req saveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return deskerrors.ValidationError("name is required")
	}

	ref, err := s.manager.Save(c.Request().Context(), subject(c).Name, c.Param("id"), req.Name, req.Desc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, refResponse{Ref: ref})
}

func (s *Server) handleSessionMetadata(c echo.Context) error {
	meta, err := s.manager.SessionMetadata(c.Request().Context(), subject(c).Name, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meta)
}

func (s *Server) handleHome(c echo.Context) error {
	rc, filename, err := s.manager.DownloadHome(c.Request().Context(), subject(c).Name, c.Param("id"))
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Stream(http.StatusOK, "application/x-tar", rc)
}

func (s *Server) handleListImages(c echo.Context) error {
	ctx := c.Request().Context()

	base, err := s.manager.BaseImages(ctx)
	if err != nil {
		return err
	}
	mine, err := s.manager.UserImages(ctx, subject(c).Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, imagesResponse{Base: base, Mine: mine})
}

func (s *Server) handleDeleteImage(c echo.Context) error {
	ref := c.QueryParam("ref")
	if ref == "" {
		return deskerrors.ValidationError("ref is required")
	}

	owner, owned := s.manager.ImageOwner(ref)
	sub := subject(c)
	if !authz.CanDeleteImage(sub, owner, owned) {
		return deskerrors.Forbidden(sub.Name, "delete "+ref)
	}

	if err := s.manager.DeleteImage(c.Request().Context(), ref); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePromote(c echo.Context) error {
	var req promoteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Source == "" || req.Name == "" {
		return deskerrors.ValidationError("source and name are required")
	}

	ref, err := s.manager.Promote(c.Request().Context(), req.Source, req.Tag, req.Name, req.Desc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, refResponse{Ref: ref})
}

func (s *Server) handleImageMetadata(c echo.Context) error {
	ref := c.QueryParam("ref")
	if _, err := docstore.ParseRef(ref); err != nil {
		return deskerrors.ValidationError(err.Error())
	}
	return c.JSON(http.StatusOK, s.manager.ReadMetadata(c.Request().Context(), ref))
}

func (s *Server) handleListUsers(c echo.Context) error {
	list, err := s.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleAddUser(c echo.Context) error {
	var req addUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Role == "" {
		req.Role = authz.RoleUser
	}

	ctx := c.Request().Context()
	if err := s.users.Add(ctx, req.Name, req.Password, req.Role, req.Comment); err != nil {
		return err
	}
	s.log.Info("user created", "user", req.Name, "role", req.Role, "by", subject(c).Name)
	return c.JSON(http.StatusCreated, users.User{Name: req.Name, Role: req.Role, Comment: req.Comment})
}

func (s *Server) handleChangePassword(c echo.Context) error {
	var req passwordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.users.SetPassword(c.Request().Context(), subject(c).Name, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReconcile(c echo.Context) error {
	force, _ := strconv.ParseBool(c.QueryParam("force"))
	report, err := s.manager.Reconcile(c.Request().Context(), force)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
