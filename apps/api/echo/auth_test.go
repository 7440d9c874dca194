package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithRoles(roles ...string) echo.Context {
	ctx := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	ctx.Set(contextTokenKey, &jwt.Token{Claims: &Claims{Roles: roles}, Valid: true})
	return ctx
}

func Test_contextHasAnyRole(t *testing.T) {
	tests := []struct {
		name  string
		held  []string
		roles []string
		want  bool
	}{
		{name: "no roles required", want: true},
		{name: "exact", held: []string{"teacher:"}, roles: []string{"teacher:"}, want: true},
		{name: "prefix", held: []string{"teacher:", "admin:owner"}, roles: []string{"admin:"}, want: true},
		{name: "any of", held: []string{"student:"}, roles: []string{"admin:", "student:"}, want: true},
		{name: "none", held: []string{"student:"}, roles: []string{"admin:", "teacher:"}},
		{name: "no claims roles", roles: []string{"admin:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contextHasAnyRole(contextWithRoles(tt.held...), tt.roles))
		})
	}
}

func Test_contextHasAnyRole_keepsClaimsOrder(t *testing.T) {
	ctx := contextWithRoles("teacher:", "admin:owner", "student:")

	require.True(t, contextHasAnyRole(ctx, []string{"admin:"}))

	claims, err := getContextClaims(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"teacher:", "admin:owner", "student:"}, claims.Roles)
}

func Test_jwtConfig(t *testing.T) {
	server, env := setup(t, jan1)
	claims := NewClaims(env.Conf, "u1", "jdoe", "", []string{"admin:"}, time.Hour)

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte(env.Conf.Server.JWTSecretKey))
	require.NoError(t, err)
	valid := getToken(t, env.Conf, "admin:")

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantData []byte
	}{
		{name: "no scheme", header: valid, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingTokenBody)},
		{name: "basic scheme", header: "Basic amRvZTpzZWNyZXQ=", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingTokenBody)},
		{name: "other hmac", header: "Bearer " + hs384, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"})},
		{name: "garbage", header: "Bearer abc.def.ghi", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"})},
		{name: "valid", header: "Bearer " + valid, wantCode: http.StatusOK, wantData: []byte("[]")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/series", nil)
			req.Header.Set(echo.HeaderAuthorization, tt.header)
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)

			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}
}
