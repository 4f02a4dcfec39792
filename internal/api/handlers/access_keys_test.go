package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/storage"
)

func TestCreateAccessKey(t *testing.T) {
	f := newFixture(t)
	director := f.seedUser(t, auth.RoleDirectorsOffice, "dir")
	lead := f.seedUser(t, auth.RolePublicRelationsLead, "lead")
	pr := f.seedUser(t, auth.RolePublicRelations, "pr")

	tests := []struct {
		name    string
		userID  string
		body    string
		status  int
		message string
	}{
		{"anonymous", "", `{"role":"public_relations","username":"a"}`, http.StatusUnauthorized, "Unauthorized"},
		{"missing username", director, `{"role":"public_relations"}`, http.StatusBadRequest, "Username is required"},
		{"unknown user", "ghost", `{"role":"public_relations","username":"a"}`, http.StatusForbidden, "Forbidden"},
		{"director invalid role", director, `{"role":"admin","username":"a"}`, http.StatusBadRequest, "Invalid role"},
		{"lead assigns lead", lead, `{"role":"public_relations_lead","username":"a"}`, http.StatusForbidden, "You can only assign Public Relations keys"},
		{"pr cannot create", pr, `{"role":"public_relations","username":"a"}`, http.StatusForbidden, "Forbidden"},
		{"malformed body", director, `{`, http.StatusBadRequest, "Invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, f.keys.Create, call{
				pattern: "POST /api/access-keys/create",
				method:  http.MethodPost,
				target:  "/api/access-keys/create",
				body:    tt.body,
				userID:  tt.userID,
			})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, errorMessage(t, rec))
		})
	}

	t.Run("lead issues public relations key", func(t *testing.T) {
		rec := serve(t, f.keys.Create, call{
			pattern: "POST /api/access-keys/create",
			method:  http.MethodPost,
			target:  "/api/access-keys/create",
			body:    `{"role":"public_relations","username":"Bob"}`,
			userID:  lead,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		got := decode[struct {
			AccessKey storage.AccessKey `json:"accessKey"`
		}](t, rec)
		assert.Regexp(t, `^TES-[A-Z0-9]{4}-[A-Z0-9]{4}$`, got.AccessKey.Key)
		assert.Equal(t, "public_relations", got.AccessKey.Role)
		assert.Equal(t, "Bob", got.AccessKey.Username)
		assert.False(t, got.AccessKey.Used)
	})
}

func TestLookupAccessKey(t *testing.T) {
	f := newFixture(t)
	key, err := f.store.AccessKeys().Create(context.Background(), storage.AccessKey{Key: "TES-LOOK-0001", Role: "public_relations", Username: "Alice"})
	require.NoError(t, err)

	rec := serve(t, f.keys.Lookup, call{pattern: "GET /api/access-key/{key}", method: http.MethodGet, target: "/api/access-key/TES-LOOK-0001"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[storage.AccessKey](t, rec)
	assert.Equal(t, key.ID, got.ID)
	assert.Equal(t, "Alice", got.Username)

	rec = serve(t, f.keys.Lookup, call{pattern: "GET /api/access-key/{key}", method: http.MethodGet, target: "/api/access-key/TES-NOPE-0000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Key not found", errorMessage(t, rec))
}

func TestListAccessKeys(t *testing.T) {
	f := newFixture(t)
	director := f.seedUser(t, auth.RoleDirectorsOffice, "dir")
	lead := f.seedUser(t, auth.RolePublicRelationsLead, "lead")
	pr := f.seedUser(t, auth.RolePublicRelations, "pr")

	list := func(userID string) (int, []storage.AccessKey) {
		rec := serve(t, f.keys.List, call{pattern: "GET /api/access-keys", method: http.MethodGet, target: "/api/access-keys", userID: userID})
		if rec.Code != http.StatusOK {
			return rec.Code, nil
		}
		return rec.Code, decode[struct {
			Keys []storage.AccessKey `json:"keys"`
		}](t, rec).Keys
	}

	status, keys := list(director)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, keys, 3)

	status, keys = list(lead)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, keys, 1)
	assert.Equal(t, "public_relations", keys[0].Role)

	status, _ = list(pr)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = list("")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDeleteAccessKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.seedUser(t, auth.RoleDirectorsOffice, "dir")
	lead := f.seedUser(t, auth.RolePublicRelationsLead, "lead")
	prID := f.seedUser(t, auth.RolePublicRelations, "pr")
	prUser, err := f.store.Users().GetByID(ctx, prID)
	require.NoError(t, err)

	del := func(userID, keyID string) *httptest.ResponseRecorder {
		return serve(t, f.keys.Delete, call{pattern: "DELETE /api/access-keys/{keyId}", method: http.MethodDelete, target: "/api/access-keys/" + keyID, userID: userID})
	}

	assert.Equal(t, http.StatusForbidden, del(lead, prUser.KeyID).Code)

	rec := del(director, prUser.KeyID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	_, err = f.store.Users().GetByID(ctx, prID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec = del(director, prUser.KeyID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Key not found", errorMessage(t, rec))
}

type failingKeys struct{ AccessKeyService }

func (failingKeys) GetAccessKey(context.Context, string) (storage.AccessKey, error) {
	return storage.AccessKey{}, errors.New("connection reset")
}

func TestLookupAccessKeyStorageFailure(t *testing.T) {
	h := NewAccessKeysHandler(failingKeys{}, nil)
	rec := serve(t, h.Lookup, call{pattern: "GET /api/access-key/{key}", method: http.MethodGet, target: "/api/access-key/TES-AAAA-BBBB"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch access key", errorMessage(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
