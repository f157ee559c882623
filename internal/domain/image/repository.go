package image

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("image not found")
	ErrUpdateFailed = errors.New("image update failed")
)

// ListParams filters a tenant's active images. Tags use match-any semantics;
// Search is a case-insensitive substring match across description, original
// filename and alt text.
type ListParams struct {
	AppID  string
	Tags   []string
	Search string
	Limit  int
	Offset int
}

// UpdateParams is a partial update: nil fields keep their prior values.
type UpdateParams struct {
	Tags        *[]string
	Description *string
	AltText     *string
}

type Repository interface {
	Create(ctx context.Context, img *Image) (uuid.UUID, error)
	// FindByID returns the record regardless of status; callers decide how
	// deleted records surface.
	FindByID(ctx context.Context, id uuid.UUID) (*Image, error)
	List(ctx context.Context, params ListParams) ([]*Image, int64, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Image, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}
