package memstorage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/imagevault-api/internal/domain/image"
)

type ImageRepository struct {
	mu     sync.RWMutex
	images map[uuid.UUID]*image.Image
}

func NewImageRepository() *ImageRepository {
	return &ImageRepository{
		images: make(map[uuid.UUID]*image.Image),
	}
}

var _ image.Repository = (*ImageRepository)(nil)

func (r *ImageRepository) Create(ctx context.Context, img *image.Image) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	imgCopy := cloneImage(img)
	now := time.Now().UTC()
	imgCopy.CreatedAt = now
	imgCopy.UpdatedAt = now
	r.images[imgCopy.ID] = imgCopy
	return imgCopy.ID, nil
}

func (r *ImageRepository) FindByID(ctx context.Context, id uuid.UUID) (*image.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	img, ok := r.images[id]
	if !ok {
		return nil, image.ErrNotFound
	}
	return cloneImage(img), nil
}

func (r *ImageRepository) List(ctx context.Context, params image.ListParams) ([]*image.Image, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*image.Image, 0)
	for _, img := range r.images {
		if img.AppID != params.AppID || img.Status != image.StatusActive {
			continue
		}
		if len(params.Tags) > 0 && !hasAnyTag(img.Tags, params.Tags) {
			continue
		}
		if params.Search != "" && !matchesSearch(img, params.Search) {
			continue
		}
		matched = append(matched, cloneImage(img))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))

	start := params.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + params.Limit
	if params.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], total, nil
}

func (r *ImageRepository) Update(ctx context.Context, id uuid.UUID, params image.UpdateParams) (*image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.images[id]
	if !ok {
		return nil, image.ErrNotFound
	}

	if params.Tags != nil {
		img.Tags = append([]string(nil), (*params.Tags)...)
	}
	if params.Description != nil {
		img.Description = *params.Description
	}
	if params.AltText != nil {
		img.AltText = *params.AltText
	}
	img.UpdatedAt = time.Now().UTC()

	return cloneImage(img), nil
}

func (r *ImageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status image.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.images[id]
	if !ok {
		return image.ErrNotFound
	}
	img.Status = status
	img.UpdatedAt = time.Now().UTC()
	return nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func matchesSearch(img *image.Image, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(img.Description), needle) ||
		strings.Contains(strings.ToLower(img.OriginalFilename), needle) ||
		strings.Contains(strings.ToLower(img.AltText), needle)
}

func cloneImage(img *image.Image) *image.Image {
	imgCopy := *img
	imgCopy.Tags = append([]string(nil), img.Tags...)
	return &imgCopy
}
