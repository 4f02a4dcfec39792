package cmd

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/config"
	"github.com/tes-agency/portal/internal/domain/users"
	"github.com/tes-agency/portal/internal/notify"
)

// useSQLite points the commands at a fresh database file.
func useSQLite(t *testing.T) string {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "portal.db")
	t.Setenv("DATABASE_URL", url)
	t.Setenv("SESSION_SECRET", "cli-test-secret")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	return url
}

var keyIDLine = regexp.MustCompile(`ID:\s+(\S+)`)

func TestKeysCreateListRevoke(t *testing.T) {
	useSQLite(t)

	output, err := run(t, "keys", "create", "--role", "public_relations_lead", "--username", "Lena")
	require.NoError(t, err)
	assert.Regexp(t, `Access key: TES-[A-Z0-9]{4}-[A-Z0-9]{4}`, output)
	assert.Contains(t, output, "Role:       public_relations_lead")
	match := keyIDLine.FindStringSubmatch(output)
	require.Len(t, match, 2)
	id := match[1]

	output, err = run(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "USERNAME")
	assert.Contains(t, output, id)
	assert.Contains(t, output, "Lena")

	output, err = run(t, "keys", "revoke", id)
	require.NoError(t, err)
	assert.Contains(t, output, "revoked "+id)

	output, err = run(t, "keys", "list")
	require.NoError(t, err)
	assert.NotContains(t, output, id)

	_, err = run(t, "keys", "revoke", id)
	assert.ErrorContains(t, err, "no access key")
}

func TestKeysCreateValidation(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "keys", "create", "--role", "admin", "--username", "Eve")
	assert.ErrorContains(t, err, "invalid role")

	_, err = run(t, "keys", "create", "--role", "public_relations")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	useSQLite(t)
	cfg, err := (&globalOptions{}).loadConfig()
	require.NoError(t, err)

	ctx := context.Background()
	portal, err := openApp(ctx, cfg, zerolog.Nop(), notify.Nop{})
	require.NoError(t, err)
	key, err := portal.services.AccessKeys.CreateAccessKey(ctx, "public_relations", "Alice")
	require.NoError(t, err)
	registered, err := portal.services.Users.Register(ctx, users.RegisterParams{KeyID: key.ID, Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, portal.Close())

	output, err := run(t, "token", registered.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n`, output)

	_, err = run(t, "token", "missing-user")
	assert.ErrorContains(t, err, "no user")
}

func TestMigrateSkipsNonPostgres(t *testing.T) {
	useSQLite(t)
	output, err := run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, output, "sqlite backend has no managed migrations")

	t.Setenv("DATABASE_URL", "")
	output, err = run(t, "migrate", "down", "--steps", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "memory backend")
}

func TestBootstrapSeedsEmptyRegistry(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.SessionSecret = "bootstrap-secret"
	cfg.Auth.BcryptCost = 4

	portal, err := openApp(context.Background(), cfg, zerolog.Nop(), notify.Nop{})
	require.NoError(t, err)
	defer portal.Close()

	boot := config.BootstrapConfig{Enabled: true, AdminUsername: "Director", AdminKey: "TES-BOOT-0001"}
	require.NoError(t, portal.bootstrap(context.Background(), boot, zerolog.Nop()))
	require.NoError(t, portal.bootstrap(context.Background(), boot, zerolog.Nop()))

	keys, err := portal.services.AccessKeys.ListAccessKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "TES-BOOT-0001", keys[0].Key)
	assert.Equal(t, "directors_office", keys[0].Role)
}
