package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/imagevault-api/internal/domain/apikey"
	"github.com/makkenzo/imagevault-api/internal/ierr"
	"github.com/makkenzo/imagevault-api/internal/util"
	"go.uber.org/zap"
)

// APIKeyService is the key authority: it validates presented credentials
// against stored hashes and enforces the permission mask per operation.
type APIKeyService struct {
	repo   apikey.Repository
	logger *zap.Logger
}

func NewAPIKeyService(repo apikey.Repository, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{
		repo:   repo,
		logger: logger.Named("APIKeyService"),
	}
}

// Authenticate resolves a raw key to its active record. Every failure mode
// (bad format, unknown prefix, inactive key, hash mismatch) surfaces as
// ErrUnauthenticated so callers cannot probe which part failed.
func (s *APIKeyService) Authenticate(ctx context.Context, rawKey string) (*apikey.APIKey, error) {
	parts := strings.SplitN(rawKey, "_", 3)
	if len(parts) < 3 || parts[0] != "iv" {
		s.logger.Warn("Invalid API key format received")
		return nil, fmt.Errorf("%w: invalid api key format", ierr.ErrUnauthenticated)
	}
	prefix := parts[1]

	keyRecord, err := s.repo.FindActiveByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, apikey.ErrAPIKeyNotFound) {
			s.logger.Warn("API key not found or inactive", zap.String("prefix", prefix))
			return nil, fmt.Errorf("%w: unknown or inactive api key", ierr.ErrUnauthenticated)
		}
		s.logger.Error("Failed to query API key repository", zap.String("prefix", prefix), zap.Error(err))
		return nil, fmt.Errorf("%w: api key lookup failed: %v", ierr.ErrInternalServer, err)
	}

	receivedKeyHash := util.HashAPIKey(rawKey)
	if subtle.ConstantTimeCompare([]byte(receivedKeyHash), []byte(keyRecord.KeyHash)) != 1 {
		s.logger.Warn("API key hash mismatch", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
		return nil, fmt.Errorf("%w: unknown or inactive api key", ierr.ErrUnauthenticated)
	}

	go func(id uuid.UUID) {
		ctxAsync, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errUpdate := s.repo.UpdateLastUsed(ctxAsync, id, time.Now().UTC()); errUpdate != nil {
			s.logger.Error("Failed to update API key last used time asynchronously",
				zap.String("key_id", id.String()), zap.Error(errUpdate))
		}
	}(keyRecord.ID)

	return keyRecord, nil
}

// Authorize checks the record's mask against the operation's required bits.
// A zero requirement always passes.
func (s *APIKeyService) Authorize(key *apikey.APIKey, required apikey.Permission) error {
	if required == 0 {
		return nil
	}
	if !key.Permissions.Has(required) {
		s.logger.Warn("API key lacks required permission",
			zap.String("key_id", key.ID.String()),
			zap.String("app_id", key.AppID),
			zap.String("required", required.String()),
			zap.String("granted", key.Permissions.String()),
		)
		return fmt.Errorf("%w: missing %s permission", ierr.ErrForbidden, required)
	}
	return nil
}

// CreateAPIKey provisions a key for an app. At most one active key may exist
// per app name; revoked keys for the same name may coexist. The raw key is
// returned once and never stored.
func (s *APIKeyService) CreateAPIKey(ctx context.Context, appID string, permissions apikey.Permission) (*apikey.APIKey, string, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, "", fmt.Errorf("%w: app id is required", ierr.ErrInvalidInput)
	}

	if _, err := s.repo.FindActiveByApp(ctx, appID); err == nil {
		s.logger.Warn("Active API key already exists for app", zap.String("app_id", appID))
		return nil, "", fmt.Errorf("%w: active key already exists for app %q", ierr.ErrConflict, appID)
	} else if !errors.Is(err, apikey.ErrAPIKeyNotFound) {
		return nil, "", fmt.Errorf("repository error checking existing key: %w", err)
	}

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	if err != nil {
		s.logger.Error("Failed to generate api key components", zap.Error(err))
		return nil, "", fmt.Errorf("%w: failed generating key: %v", ierr.ErrInternalServer, err)
	}

	newKey := &apikey.APIKey{
		AppID:       appID,
		KeyHash:     keyHash,
		Prefix:      prefix,
		Permissions: permissions,
		IsActive:    true,
	}

	insertedID, err := s.repo.Create(ctx, newKey)
	if err != nil {
		s.logger.Error("Failed to save new api key", zap.Error(err))
		return nil, "", fmt.Errorf("repository error creating api key: %w", err)
	}
	newKey.ID = insertedID

	s.logger.Info("API key created successfully",
		zap.String("id", insertedID.String()),
		zap.String("app_id", appID),
		zap.String("permissions", permissions.String()),
	)
	return newKey, fullKey, nil
}

func (s *APIKeyService) ListAPIKeys(ctx context.Context) ([]*apikey.APIKey, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list api keys from repository", zap.Error(err))
		return nil, fmt.Errorf("repository error listing api keys: %w", err)
	}
	return keys, nil
}

func (s *APIKeyService) UpdatePermissions(ctx context.Context, id uuid.UUID, permissions apikey.Permission) error {
	err := s.repo.UpdatePermissions(ctx, id, permissions)
	if err != nil {
		if errors.Is(err, apikey.ErrAPIKeyNotFound) {
			return fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
		}
		s.logger.Error("Failed to update api key permissions", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("repository error updating api key permissions: %w", err)
	}
	s.logger.Info("API key permissions updated", zap.String("id", id.String()), zap.String("permissions", permissions.String()))
	return nil
}

func (s *APIKeyService) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Deactivate(ctx, id)
	if err != nil {
		if errors.Is(err, apikey.ErrAPIKeyNotFound) {
			return fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
		}
		s.logger.Error("Failed to revoke api key via repository", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("repository error revoking api key %s: %w", id, err)
	}
	s.logger.Info("API key revoked successfully", zap.String("id", id.String()))
	return nil
}
