package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAPIKeyNotFound = errors.New("api key not found or inactive")

type Repository interface {
	FindActiveByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	FindActiveByApp(ctx context.Context, appID string) (*APIKey, error)
	Create(ctx context.Context, key *APIKey) (uuid.UUID, error)
	List(ctx context.Context) ([]*APIKey, error)
	UpdatePermissions(ctx context.Context, id uuid.UUID, permissions Permission) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	UpdateLastUsed(ctx context.Context, id uuid.UUID, lastUsed time.Time) error
}
