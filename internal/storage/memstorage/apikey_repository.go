// Package memstorage provides in-memory repository implementations backing
// unit tests and local experimentation.
package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/imagevault-api/internal/domain/apikey"
)

type APIKeyRepository struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*apikey.APIKey
}

func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{
		keys: make(map[uuid.UUID]*apikey.APIKey),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) FindActiveByPrefix(ctx context.Context, prefix string) (*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range r.keys {
		if key.Prefix == prefix && key.IsActive {
			keyCopy := *key
			return &keyCopy, nil
		}
	}
	return nil, apikey.ErrAPIKeyNotFound
}

func (r *APIKeyRepository) FindActiveByApp(ctx context.Context, appID string) (*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range r.keys {
		if key.AppID == appID && key.IsActive {
			keyCopy := *key
			return &keyCopy, nil
		}
	}
	return nil, apikey.ErrAPIKeyNotFound
}

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keyCopy := *key
	keyCopy.ID = uuid.New()
	keyCopy.CreatedAt = time.Now().UTC()
	r.keys[keyCopy.ID] = &keyCopy
	return keyCopy.ID, nil
}

func (r *APIKeyRepository) List(ctx context.Context) ([]*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]*apikey.APIKey, 0, len(r.keys))
	for _, key := range r.keys {
		keyCopy := *key
		keys = append(keys, &keyCopy)
	}
	return keys, nil
}

func (r *APIKeyRepository) UpdatePermissions(ctx context.Context, id uuid.UUID, permissions apikey.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok {
		return apikey.ErrAPIKeyNotFound
	}
	key.Permissions = permissions
	return nil
}

func (r *APIKeyRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok {
		return apikey.ErrAPIKeyNotFound
	}
	key.IsActive = false
	return nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID, lastUsed time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok {
		return apikey.ErrAPIKeyNotFound
	}
	key.LastUsedAt = &lastUsed
	return nil
}
