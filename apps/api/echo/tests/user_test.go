package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kaushal/apps/api/echo"
	"github.com/trezcool/kaushal/core/user"
	testutil "github.com/trezcool/kaushal/tests"
)

func TestHome(t *testing.T) {
	e := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Kaushal API!", rec.Body.String())
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	pwd := "Pa$$w0rd"
	testutil.CreateUser(t, e.usrRepo, "Officer", "officer", "officer@test.in", "ranchi", pwd, []string{user.RoleOfficer}, true)
	testutil.CreateUser(t, e.usrRepo, "Gone", "gone", "gone@test.in", "ranchi", pwd, nil, false)

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: pwd}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "officer", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive account", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "gone", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, e.app, tests)

	for _, uname := range []string{"officer", " OFFICER@test.in "} {
		t.Run("success "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: uname, Password: pwd}))
			e.app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			decode(t, rec, &resp)
			claims := new(Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(e.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, "officer", claims.Username)
			assert.Equal(t, "ranchi", claims.DistrictID)
			assert.False(t, claims.IsAdmin)
		})
	}

	usr, err := e.usrRepo.GetUserByUsernameOrEmail(context.Background(), "officer")
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero(), "last login is recorded")
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Officer", "officer", "officer@test.in", "ranchi", "", []string{user.RoleOfficer}, true)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "current user", path: "/v1/users/me", token: getToken(t, e.conf, usr), wantCode: http.StatusOK, wantData: marchallObj(t, usr)},
		{
			name: "deleted user", path: "/v1/users/me", token: getToken(t, e.conf, user.User{ID: "ghost"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	}
	runHTTPTests(t, e.app, tests)
}

func Test_userApi_refreshToken(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Officer", "officer", "officer@test.in", "ranchi", "", nil, true)
	inactive := testutil.CreateUser(t, e.usrRepo, "Gone", "gone", "gone@test.in", "ranchi", "", nil, false)

	expired := GetUserClaims(e.conf, usr, time.Now().Add(-e.conf.Server.JWTRefreshExpirationDelta-time.Minute).Unix())
	expiredToken, err := GenerateToken(e.conf, expired)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/users/token-refresh",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "inactive user", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, e.conf, inactive),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: expiredToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	runHTTPTests(t, e.app, tests)

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, e.conf, usr))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}
