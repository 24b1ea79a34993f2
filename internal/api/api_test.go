package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/desklab/internal/authz"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
	"github.com/firefly-engineering/desklab/internal/testutil"
)

const password = "password1"

type testAPI struct {
	env *testutil.TestEnv
	ts  *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	env := testutil.NewTestEnv(t)
	env.AddUser("alice", password, authz.RoleUser)
	env.AddUser("bob", password, authz.RoleUser)
	env.AddUser("root", password, authz.RoleAdmin)

	srv := NewServer(&Config{}, env.App.Manager, env.App.Users)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{env: env, ts: ts}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testAPI) launch(t *testing.T, user string) launchResponse {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/sessions", user, launchRequest{Image: testutil.BaseImage})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out launchResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAuthentication(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodGet, "/api/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(echo.HeaderWWWAuthenticate), "Basic")

	req, err := http.NewRequest(http.MethodGet, a.ts.URL+"/api/sessions", nil)
	require.NoError(t, err)
	req.SetBasicAuth("alice", "wrong-password")
	wrong, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	wrong.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/sessions", "alice", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)

	launched := a.launch(t, "alice")
	assert.Equal(t, 6000, launched.Port)
	assert.Equal(t, "alice:"+launched.ID, launched.Token)

	resp, body := a.do(t, http.MethodGet, "/api/sessions", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sessions []lifecycle.SessionInfo
	require.NoError(t, json.Unmarshal(body, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, launched.ID, sessions[0].ID)

	// Bob cannot see or touch Alice's session.
	resp, body = a.do(t, http.MethodGet, "/api/sessions", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
	resp, _ = a.do(t, http.MethodDelete, "/api/sessions/"+launched.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/sessions/"+launched.ID+"/reboot", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/sessions/"+launched.ID+"/reset", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/api/sessions/"+launched.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, a.env.SessionExists("alice", launched.ID))
}

func TestLaunchErrors(t *testing.T) {
	a := newTestAPI(t)
	a.env.Runtime.AddImage("userimages_bob:private", "")

	resp, body := a.do(t, http.MethodPost, "/api/sessions", "alice", launchRequest{Image: "userimages_bob:private"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(body), "error")

	resp, _ = a.do(t, http.MethodPost, "/api/sessions", "alice", launchRequest{Image: "dockerlab:missing"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/sessions", "alice", launchRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	a.env.App.Ports.Probe = func(int) bool { return false }
	resp, _ = a.do(t, http.MethodPost, "/api/sessions", "alice", launchRequest{Image: testutil.BaseImage})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCredential(t *testing.T) {
	a := newTestAPI(t)
	launched := a.launch(t, "alice")
	path := "/api/sessions/" + launched.ID + "/credential"

	resp, _ := a.do(t, http.MethodPost, path, "alice", credentialRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, path, "alice", credentialRequest{Credential: "hunter2"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	s, err := a.env.App.Registry.GetFresh(context.Background(), "alice", launched.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", s.Credential)
}

func TestSaveAndImages(t *testing.T) {
	a := newTestAPI(t)
	launched := a.launch(t, "alice")

	resp, body := a.do(t, http.MethodPost, "/api/sessions/"+launched.ID+"/save", "alice", saveRequest{Name: "Dev Box", Desc: "My box"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var saved refResponse
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Equal(t, "userimages_alice:desklab-"+launched.ID+"-base", saved.Ref)
	assert.False(t, a.env.SessionExists("alice", launched.ID))

	resp, body = a.do(t, http.MethodGet, "/api/images", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var images imagesResponse
	require.NoError(t, json.Unmarshal(body, &images))
	require.Len(t, images.Base, 1)
	require.Len(t, images.Mine, 1)
	assert.Equal(t, "Dev Box", images.Mine[0].Metadata.Name)

	resp, body = a.do(t, http.MethodGet, "/api/images/metadata?ref="+saved.Ref, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"Name":"Dev Box","Desc":"My box"}`, string(body))

	resp, _ = a.do(t, http.MethodGet, "/api/images/metadata?ref=bogus", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPromoteRequiresAdmin(t *testing.T) {
	a := newTestAPI(t)
	a.env.Runtime.AddImage("userimages_alice:dev", "")
	req := promoteRequest{Source: "userimages_alice:dev", Name: "Shared", Desc: "For all"}

	resp, _ := a.do(t, http.MethodPost, "/api/images/promote", "alice", req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := a.do(t, http.MethodPost, "/api/images/promote", "root", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"ref":"dockerlab:dev"}`, string(body))
}

func TestDeleteImageOwnership(t *testing.T) {
	a := newTestAPI(t)
	a.env.Runtime.AddImage("userimages_alice:dev", "")
	a.env.Runtime.AddImage("userimages_bob:dev", "")

	resp, _ := a.do(t, http.MethodDelete, "/api/images?ref=userimages_bob:dev", "alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/api/images?ref="+testutil.BaseImage, "alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/api/images?ref=userimages_alice:dev", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/api/images?ref=userimages_bob:dev", "root", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/api/images?ref=userimages_bob:dev", "root", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHomeDownload(t *testing.T) {
	a := newTestAPI(t)
	launched := a.launch(t, "alice")
	container := a.env.Config.ContainerName(launched.ID)
	a.env.Runtime.Files[container+":/home"] = []byte("tarball")

	resp, body := a.do(t, http.MethodGet, "/api/sessions/"+launched.ID+"/home", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tarball", string(body))
	assert.Equal(t, "application/x-tar", resp.Header.Get(echo.HeaderContentType))
	assert.Equal(t, fmt.Sprintf("attachment; filename=%q", container+"_homedir.tar"), resp.Header.Get(echo.HeaderContentDisposition))
}

func TestUsers(t *testing.T) {
	a := newTestAPI(t)
	carol := addUserRequest{Name: "carol", Password: "carol-pass", Comment: "QA"}

	resp, _ := a.do(t, http.MethodPost, "/api/users", "alice", carol)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := a.do(t, http.MethodPost, "/api/users", "root", carol)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"name":"carol","role":"user","comment":"QA"}`, string(body))

	resp, _ = a.do(t, http.MethodPost, "/api/users", "root", carol)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.do(t, http.MethodGet, "/api/users", "root", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"carol"`)
}

func TestChangePassword(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodPut, "/api/users/me/password", "alice", passwordRequest{Password: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPut, "/api/users/me/password", "alice", passwordRequest{Password: "new-password"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := a.env.App.Users.Authenticate(context.Background(), "alice", "new-password")
	assert.NoError(t, err)
}

func TestReconcile(t *testing.T) {
	a := newTestAPI(t)
	require.NoError(t, a.env.App.Registry.Put(context.Background(), "alice", "ghost", 6100, ""))

	resp, _ := a.do(t, http.MethodPost, "/api/reconcile", "alice", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := a.do(t, http.MethodPost, "/api/reconcile?force=true", "root", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report lifecycle.ReconcileReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.Fixed)
	require.Len(t, report.Stale, 1)
	assert.False(t, a.env.SessionExists("alice", "ghost"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{deskerrors.ValidationError("bad"), http.StatusBadRequest},
		{deskerrors.SessionNotFound("a", "b"), http.StatusNotFound},
		{deskerrors.PortAllocationFailed(nil), http.StatusServiceUnavailable},
		{deskerrors.ExternalFailure("run", nil), http.StatusBadGateway},
		{deskerrors.Forbidden("a", "b"), http.StatusForbidden},
		{deskerrors.Unauthorized(), http.StatusUnauthorized},
		{deskerrors.ConfigError("bad", nil), http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
		{echo.NewHTTPError(http.StatusTeapot, "tea"), http.StatusTeapot},
		{fmt.Errorf("wrapped: %w", deskerrors.UserNotFound("x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, _ := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
