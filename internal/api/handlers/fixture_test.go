package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/domain/accesskeys"
	"github.com/tes-agency/portal/internal/domain/content"
	"github.com/tes-agency/portal/internal/domain/photos"
	"github.com/tes-agency/portal/internal/domain/users"
	"github.com/tes-agency/portal/internal/notify"
	"github.com/tes-agency/portal/internal/storage"
	"github.com/tes-agency/portal/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	notes    *notify.Recorder
	keys     *AccessKeysHandler
	users    *UsersHandler
	sections *PhotoSectionsHandler
	content  *PageContentHandler
	userSvc  *users.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	notes := &notify.Recorder{}
	sessions, err := auth.NewJWTManager("handler-test-secret", time.Hour, "tes-portal")
	require.NoError(t, err)

	userSvc := users.NewService(store, auth.NewPasswordHasher(4), sessions, notes, audit.Nop(), zerolog.Nop())
	keySvc := accesskeys.NewService(store, accesskeys.Config{Prefix: "TES"}, notes, audit.Nop(), zerolog.Nop())
	photoSvc := photos.NewService(store, notes, audit.Nop(), zerolog.Nop())
	contentSvc := content.NewService(store, audit.Nop(), zerolog.Nop())

	return fixture{
		store:    store,
		notes:    notes,
		keys:     NewAccessKeysHandler(keySvc, userSvc),
		users:    NewUsersHandler(userSvc),
		sections: NewPhotoSectionsHandler(photoSvc, userSvc),
		content:  NewPageContentHandler(contentSvc, userSvc),
		userSvc:  userSvc,
	}
}

// seedUser creates a redeemed key and its user, returning the user id.
func (f fixture) seedUser(t *testing.T, role auth.Role, username string) string {
	t.Helper()
	ctx := context.Background()
	key, err := f.store.AccessKeys().Create(ctx, storage.AccessKey{
		Key:      "TES-" + strings.ToUpper(username) + "-0000",
		Role:     string(role),
		Username: username,
	})
	require.NoError(t, err)
	registered, err := f.userSvc.Register(ctx, users.RegisterParams{KeyID: key.ID, Password: "secret1"})
	require.NoError(t, err)
	return registered.ID
}

type call struct {
	pattern string
	method  string
	target  string
	body    string
	userID  string
}

// serve routes c through a mux registered with c.pattern so path values
// resolve the way they do in production.
func serve(t *testing.T, handler http.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(c.pattern, handler)

	req := httptest.NewRequest(c.method, c.target, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: c.userID, Source: auth.SourceHeader}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}
