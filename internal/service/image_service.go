package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/makkenzo/imagevault-api/internal/domain/image"
	"github.com/makkenzo/imagevault-api/internal/ierr"
	"go.uber.org/zap"
)

// FileStore is the binary side of the image store. Implementations must be
// safe for concurrent use.
type FileStore interface {
	Save(appID, filename string, data []byte) error
	Read(appID, filename string) ([]byte, error)
	Delete(appID, filename string) error
	Exists(appID, filename string) (bool, error)
}

// allowedMimeTypes maps each accepted declared MIME type to its canonical
// extension.
var allowedMimeTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".svg":  true,
}

const fallbackExtension = ".bin"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type UploadInput struct {
	AppID            string
	UploadedBy       string
	Content          []byte
	MimeType         string
	OriginalFilename string
	Tags             []string
	Description      string
	AltText          string
}

type ListInput struct {
	AppID  string
	Tags   []string
	Search string
	Page   int
	Limit  int
}

type ImageService struct {
	repo      image.Repository
	files     FileStore
	maxUpload int64
	logger    *zap.Logger
}

func NewImageService(repo image.Repository, files FileStore, maxUpload int64, logger *zap.Logger) *ImageService {
	return &ImageService{
		repo:      repo,
		files:     files,
		maxUpload: maxUpload,
		logger:    logger.Named("ImageService"),
	}
}

// MaxUploadSize returns the per-upload byte cap, for transport-level limits.
func (s *ImageService) MaxUploadSize() int64 {
	return s.maxUpload
}

// Upload validates the content, writes the file first, then creates the
// metadata record. A record never references a missing file; a file whose
// record write failed is garbage for the sweep task.
func (s *ImageService) Upload(ctx context.Context, in UploadInput) (*image.Image, error) {
	if strings.TrimSpace(in.AppID) == "" {
		return nil, fmt.Errorf("%w: app id is required", ierr.ErrInvalidInput)
	}
	if len(in.Content) == 0 {
		return nil, fmt.Errorf("%w: file content is empty", ierr.ErrInvalidInput)
	}
	if int64(len(in.Content)) > s.maxUpload {
		return nil, fmt.Errorf("%w: file exceeds maximum size of %d bytes", ierr.ErrInvalidInput, s.maxUpload)
	}
	mimeType := normalizeMimeType(in.MimeType)
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return nil, fmt.Errorf("%w: unsupported mime type %q", ierr.ErrInvalidInput, in.MimeType)
	}

	id := uuid.New()
	storedFilename := id.String() + deriveExtension(in.OriginalFilename, mimeType)

	if err := s.files.Save(in.AppID, storedFilename, in.Content); err != nil {
		s.logger.Error("Failed to write image file",
			zap.String("app_id", in.AppID),
			zap.String("filename", storedFilename),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: failed to store file: %v", ierr.ErrInternalServer, err)
	}

	newImage := &image.Image{
		ID:               id,
		AppID:            in.AppID,
		StoredFilename:   storedFilename,
		OriginalFilename: in.OriginalFilename,
		MimeType:         mimeType,
		Size:             int64(len(in.Content)),
		Tags:             in.Tags,
		Description:      in.Description,
		AltText:          in.AltText,
		Status:           image.StatusActive,
		UploadedBy:       in.UploadedBy,
	}
	if newImage.Tags == nil {
		newImage.Tags = []string{}
	}

	insertedID, err := s.repo.Create(ctx, newImage)
	if err != nil {
		// The file stays behind unreferenced; the orphan sweep reclaims it.
		s.logger.Warn("Metadata write failed after file write, leaving orphan file",
			zap.String("app_id", in.AppID),
			zap.String("filename", storedFilename),
			zap.Error(err),
		)
		return nil, fmt.Errorf("repository error creating image record: %w", err)
	}

	created, err := s.repo.FindByID(ctx, insertedID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve created image (id: %s): %w", insertedID, err)
	}

	s.logger.Info("Image uploaded successfully",
		zap.String("id", created.ID.String()),
		zap.String("app_id", created.AppID),
		zap.Int64("size", created.Size),
		zap.String("mime_type", created.MimeType),
	)
	return created, nil
}

// GetByID returns an active record scoped to the tenant. Deleted, absent and
// cross-tenant records are all NotFound.
func (s *ImageService) GetByID(ctx context.Context, appID string, id uuid.UUID) (*image.Image, error) {
	return s.findActive(ctx, appID, id)
}

// GetFileContent serves the raw bytes of an active record. The lookup is not
// tenant-scoped: file retrieval is deliberately public, so uploaded images
// can be hotlinked by identifier.
func (s *ImageService) GetFileContent(ctx context.Context, id uuid.UUID) ([]byte, *image.Image, error) {
	img, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: image %s", ierr.ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("repository error finding image %s: %w", id, err)
	}
	if img.Status != image.StatusActive {
		return nil, nil, fmt.Errorf("%w: image %s", ierr.ErrNotFound, id)
	}

	data, err := s.files.Read(img.AppID, img.StoredFilename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Active record without a backing file is an integrity fault,
			// surfaced to the caller as a plain not-found.
			s.logger.Error("Integrity fault: active image record has no backing file",
				zap.String("id", img.ID.String()),
				zap.String("app_id", img.AppID),
				zap.String("filename", img.StoredFilename),
			)
			return nil, nil, fmt.Errorf("%w: image %s", ierr.ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("%w: failed to read file: %v", ierr.ErrInternalServer, err)
	}

	return data, img, nil
}

// List returns one page of a tenant's active images, newest first, plus the
// total matching count before pagination.
func (s *ImageService) List(ctx context.Context, in ListInput) ([]*image.Image, int64, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = defaultPageSize
	}
	if in.Limit > maxPageSize {
		in.Limit = maxPageSize
	}

	params := image.ListParams{
		AppID:  in.AppID,
		Tags:   in.Tags,
		Search: in.Search,
		Limit:  in.Limit,
		Offset: (in.Page - 1) * in.Limit,
	}

	images, total, err := s.repo.List(ctx, params)
	if err != nil {
		s.logger.Error("Failed to list images", zap.String("app_id", in.AppID), zap.Error(err))
		return nil, 0, fmt.Errorf("repository error listing images: %w", err)
	}
	return images, total, nil
}

// UpdateMetadata applies a partial update to an active record. Updates on
// deleted records are rejected as NotFound, matching read semantics.
func (s *ImageService) UpdateMetadata(ctx context.Context, appID string, id uuid.UUID, params image.UpdateParams) (*image.Image, error) {
	if _, err := s.findActive(ctx, appID, id); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			return nil, fmt.Errorf("%w: image %s", ierr.ErrNotFound, id)
		}
		s.logger.Error("Failed to update image metadata", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("repository error updating image %s: %w", id, err)
	}

	s.logger.Info("Image metadata updated", zap.String("id", id.String()), zap.String("app_id", appID))
	return updated, nil
}

// Delete flips the record to deleted, then removes the backing file. The
// lookup is the same active-only resolution used by reads, so deleting an
// already-deleted image fails with NotFound. A missing file at removal time
// is tolerated.
func (s *ImageService) Delete(ctx context.Context, appID string, id uuid.UUID) error {
	img, err := s.findActive(ctx, appID, id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, id, image.StatusDeleted); err != nil {
		if errors.Is(err, image.ErrNotFound) {
			return fmt.Errorf("%w: image %s", ierr.ErrNotFound, id)
		}
		s.logger.Error("Failed to mark image deleted", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("repository error deleting image %s: %w", id, err)
	}

	if err := s.files.Delete(img.AppID, img.StoredFilename); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Image file already absent on delete",
				zap.String("id", img.ID.String()),
				zap.String("filename", img.StoredFilename),
			)
		} else {
			// Record is already deleted and unreachable; the leftover file is
			// swept later.
			s.logger.Error("Failed to remove image file after status flip",
				zap.String("id", img.ID.String()),
				zap.String("filename", img.StoredFilename),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Image deleted", zap.String("id", id.String()), zap.String("app_id", appID))
	return nil
}

func (s *ImageService) findActive(ctx context.Context, appID string, id uuid.UUID) (*image.Image, error) {
	img, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			return nil, fmt.Errorf("%w: image %s", ierr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("repository error finding image %s: %w", id, err)
	}
	if img.Status != image.StatusActive || img.AppID != appID {
		return nil, fmt.Errorf("%w: image %s", ierr.ErrNotFound, id)
	}
	return img, nil
}

func normalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// deriveExtension prefers a meaningful extension from the original filename,
// then the MIME mapping, then a generic fallback.
func deriveExtension(originalFilename, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(originalFilename)); allowedExtensions[ext] {
		return ext
	}
	if ext, ok := allowedMimeTypes[mimeType]; ok {
		return ext
	}
	return fallbackExtension
}
