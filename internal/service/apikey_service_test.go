package service_test

import (
	"context"
	"testing"

	"github.com/makkenzo/imagevault-api/internal/domain/apikey"
	"github.com/makkenzo/imagevault-api/internal/ierr"
	"github.com/makkenzo/imagevault-api/internal/service"
	"github.com/makkenzo/imagevault-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newKeyService() *service.APIKeyService {
	return service.NewAPIKeyService(memstorage.NewAPIKeyRepository(), zap.NewNop())
}

func TestCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	keys := newKeyService()

	record, rawKey, err := keys.CreateAPIKey(ctx, "app1", apikey.PermissionRead|apikey.PermissionWrite)
	require.NoError(t, err)
	require.NotEmpty(t, rawKey)
	assert.Equal(t, "app1", record.AppID)
	assert.True(t, record.IsActive)

	authed, err := keys.Authenticate(ctx, rawKey)
	require.NoError(t, err)
	assert.Equal(t, record.ID, authed.ID)
	assert.Equal(t, "app1", authed.AppID)
}

func TestAuthenticateFailures(t *testing.T) {
	ctx := context.Background()
	keys := newKeyService()

	_, rawKey, err := keys.CreateAPIKey(ctx, "app1", apikey.PermissionRead)
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
	}{
		{"empty key", ""},
		{"garbage", "not-a-key"},
		{"wrong scheme prefix", "xx_abcdefgh_secret"},
		{"unknown prefix", "iv_zzzzzzzz_secretsecretsecretsecret"},
		{"tampered secret", rawKey + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := keys.Authenticate(ctx, tt.key)
			assert.ErrorIs(t, err, ierr.ErrUnauthenticated)
		})
	}
}

func TestAuthenticateRevokedKey(t *testing.T) {
	ctx := context.Background()
	keys := newKeyService()

	record, rawKey, err := keys.CreateAPIKey(ctx, "app1", apikey.PermissionRead)
	require.NoError(t, err)

	_, err = keys.Authenticate(ctx, rawKey)
	require.NoError(t, err)

	require.NoError(t, keys.RevokeAPIKey(ctx, record.ID))

	_, err = keys.Authenticate(ctx, rawKey)
	assert.ErrorIs(t, err, ierr.ErrUnauthenticated)
}

func TestAuthorize(t *testing.T) {
	keys := newKeyService()

	record := &apikey.APIKey{Permissions: apikey.PermissionRead | apikey.PermissionWrite}

	assert.NoError(t, keys.Authorize(record, apikey.PermissionRead))
	assert.NoError(t, keys.Authorize(record, apikey.PermissionWrite))
	assert.NoError(t, keys.Authorize(record, 0))
	assert.ErrorIs(t, keys.Authorize(record, apikey.PermissionDelete), ierr.ErrForbidden)
	assert.ErrorIs(t, keys.Authorize(&apikey.APIKey{}, apikey.PermissionRead), ierr.ErrForbidden)
}

func TestOneActiveKeyPerApp(t *testing.T) {
	ctx := context.Background()
	keys := newKeyService()

	record, _, err := keys.CreateAPIKey(ctx, "app1", apikey.PermissionRead)
	require.NoError(t, err)

	_, _, err = keys.CreateAPIKey(ctx, "app1", apikey.PermissionRead)
	assert.ErrorIs(t, err, ierr.ErrConflict)

	// A different app is unaffected.
	_, _, err = keys.CreateAPIKey(ctx, "app2", apikey.PermissionRead)
	require.NoError(t, err)

	// Revoking frees the name for a replacement key.
	require.NoError(t, keys.RevokeAPIKey(ctx, record.ID))
	_, _, err = keys.CreateAPIKey(ctx, "app1", apikey.PermissionRead)
	require.NoError(t, err)
}

func TestCreateRequiresAppID(t *testing.T) {
	ctx := context.Background()
	keys := newKeyService()

	_, _, err := keys.CreateAPIKey(ctx, "   ", apikey.PermissionRead)
	assert.ErrorIs(t, err, ierr.ErrInvalidInput)
}

func TestUpdatePermissions(t *testing.T) {
	ctx := context.Background()
	keys := newKeyService()

	record, rawKey, err := keys.CreateAPIKey(ctx, "app1", apikey.PermissionRead)
	require.NoError(t, err)

	require.NoError(t, keys.UpdatePermissions(ctx, record.ID, apikey.PermissionRead|apikey.PermissionDelete))

	authed, err := keys.Authenticate(ctx, rawKey)
	require.NoError(t, err)
	assert.NoError(t, keys.Authorize(authed, apikey.PermissionDelete))
	assert.ErrorIs(t, keys.Authorize(authed, apikey.PermissionWrite), ierr.ErrForbidden)
}
