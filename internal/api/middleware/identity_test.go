package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/auth"
)

func captureIdentity(resolver auth.IdentityResolver, req *http.Request) (auth.Identity, bool) {
	var (
		got auth.Identity
		ok  bool
	)
	Identity(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = auth.IdentityFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)
	return got, ok
}

func TestIdentityMiddleware(t *testing.T) {
	sessions, err := auth.NewJWTManager("secret", time.Hour, "tes-portal")
	require.NoError(t, err)
	token, err := sessions.Generate("user-7")
	require.NoError(t, err)
	resolver := auth.IdentityResolver{Sessions: sessions, TrustHeader: true}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	id, ok := captureIdentity(resolver, req)
	require.True(t, ok)
	assert.Equal(t, auth.Identity{UserID: "user-7", Source: auth.SourceSession}, id)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(auth.UserIDHeader, "user-8")
	id, ok = captureIdentity(resolver, req)
	require.True(t, ok)
	assert.Equal(t, auth.SourceHeader, id.Source)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.Header.Set(auth.UserIDHeader, "user-8")
	_, ok = captureIdentity(resolver, req)
	assert.False(t, ok, "a bad token is not rescued by the header")

	_, ok = captureIdentity(resolver, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestIdentityMiddlewareHeaderDistrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(auth.UserIDHeader, "user-8")
	_, ok := captureIdentity(auth.IdentityResolver{}, req)
	assert.False(t, ok)
}
