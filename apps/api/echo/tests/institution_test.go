package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kaushal/core/institution"
	"github.com/trezcool/kaushal/core/user"
	testutil "github.com/trezcool/kaushal/tests"
)

func Test_institutionApi(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Officer", "officer", "officer@test.in", "ranchi", "", []string{user.RoleOfficer}, true)
	token := getToken(t, e.conf, usr)

	dir, err := institution.LoadEmbedded()
	require.NoError(t, err)
	inst, err := dir.Get("INST-0003")
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", path: "/v1/institutions", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "one", path: "/v1/institutions/INST-0003", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, inst)},
		{
			name: "unknown", path: "/v1/institutions/INST-9999", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "institution not found"}),
		},
		{name: "no match", path: "/v1/institutions?search=nowhere", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "options", path: "/v1/institutions/options?category=polytechnic", token: token, wantCode: http.StatusOK,
			wantData: marchallList(t,
				institution.Option{Value: "INST-0004", Label: "Dhanbad Industrial Training Centre (Dhanbad)"},
				institution.Option{Value: "INST-0002", Label: "Government Polytechnic, Ranchi (Ranchi)"},
			),
		},
	}
	runHTTPTests(t, e.app, tests)

	t.Run("filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/institutions?category=ITI&district=ranchi", token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var insts []institution.Institution
		decode(t, rec, &insts)
		require.Len(t, insts, 1)
		assert.Equal(t, "INST-0001", insts[0].ID)

		req, rec = newAuthRequest(http.MethodGet, "/v1/institutions?search=bokaro", token)
		e.app.ServeHTTP(rec, req)
		decode(t, rec, &insts)
		assert.Len(t, insts, 2)
	})
}
