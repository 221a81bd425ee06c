package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewlens/reviewlens/internal/model"
)

// adminToken registers a user, promotes it to admin and returns a live
// access token for it.
func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	env.request(http.MethodPost, "/v1/auth/register", registerBody("root", "root@example.com"), nil)
	u, err := env.users.FindByIdentifier(context.Background(), "root")
	require.NoError(t, err)
	u.Role = model.RoleAdmin
	env.users.mu.Lock()
	env.users.users[u.ID] = u
	env.users.mu.Unlock()

	login := decode(t, env.request(http.MethodPost, "/v1/auth/login", loginBody("root", testPassword), nil).Body.Bytes())
	return login["access"].(map[string]any)["token"].(string)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	env.request(http.MethodPost, "/v1/auth/register", registerBody("alice", "alice@example.com"), nil)
	login := decode(t, env.request(http.MethodPost, "/v1/auth/login", loginBody("alice", testPassword), nil).Body.Bytes())
	userToken := login["access"].(map[string]any)["token"].(string)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/v1/admin/users"},
		{http.MethodPost, "/v1/admin/users/1/toggle-active"},
		{http.MethodGet, "/v1/admin/usage-stats"},
	} {
		rec := env.request(route.method, route.path, "", bearer(userToken))
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestAdminListUsers(t *testing.T) {
	env := newTestEnv(t)
	tok := adminToken(t, env)
	env.request(http.MethodPost, "/v1/auth/register", registerBody("alice", "alice@example.com"), nil)

	rec := env.request(http.MethodGet, "/v1/admin/users", "", bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec.Body.Bytes())
	assert.EqualValues(t, 2, resp["count"])
	users := resp["users"].([]any)
	require.Len(t, users, 2)
	// Password hashes and API keys never leave the admin listing.
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "rvk_")
}

func TestAdminToggleActive(t *testing.T) {
	env := newTestEnv(t)
	tok := adminToken(t, env)
	env.request(http.MethodPost, "/v1/auth/register", registerBody("alice", "alice@example.com"), nil)
	alice, err := env.users.FindByIdentifier(context.Background(), "alice")
	require.NoError(t, err)

	rec := env.request(http.MethodPost, fmt.Sprintf("/v1/admin/users/%d/toggle-active", alice.ID), "", bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec.Body.Bytes())
	assert.Equal(t, false, resp["is_active"])

	// The deactivated user can no longer log in.
	lrec := env.request(http.MethodPost, "/v1/auth/login", loginBody("alice", testPassword), nil)
	assert.Equal(t, http.StatusForbidden, lrec.Code)

	// Toggling back restores access.
	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/admin/users/%d/toggle-active", alice.ID), "", bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec.Body.Bytes())["is_active"])

	t.Run("unknown user", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/admin/users/999/toggle-active", "", bearer(tok))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/admin/users/abc/toggle-active", "", bearer(tok))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminUsageStats(t *testing.T) {
	env := newTestEnv(t)
	tok := adminToken(t, env)
	env.usageStore.stats = []model.EndpointStat{
		{Endpoint: "GET /v1/me", Calls: 10, Errors: 2, AvgDurationMs: 14.2},
	}

	rec := env.request(http.MethodGet, "/v1/admin/usage-stats", "", bearer(tok))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec.Body.Bytes())
	assert.EqualValues(t, 7, resp["since_days"])
	endpoints := resp["endpoints"].([]any)
	require.Len(t, endpoints, 1)
	first := endpoints[0].(map[string]any)
	assert.Equal(t, "GET /v1/me", first["endpoint"])
	assert.EqualValues(t, 10, first["calls"])

	t.Run("custom window", func(t *testing.T) {
		rec := env.request(http.MethodGet, "/v1/admin/usage-stats?since_days=30", "", bearer(tok))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 30, decode(t, rec.Body.Bytes())["since_days"])
	})

	t.Run("window out of range", func(t *testing.T) {
		for _, q := range []string{"0", "-1", "366", "abc"} {
			rec := env.request(http.MethodGet, "/v1/admin/usage-stats?since_days="+q, "", bearer(tok))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "since_days=%s", q)
		}
	})
}
