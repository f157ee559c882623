package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/imagevault-api/internal/domain/image"
	"go.uber.org/zap"
)

type ImageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewImageRepository(db *pgxpool.Pool, logger *zap.Logger) *ImageRepository {
	return &ImageRepository{
		db:     db,
		logger: logger.Named("ImageRepository"),
	}
}

var _ image.Repository = (*ImageRepository)(nil)

const imageColumns = `id, app_id, stored_filename, original_filename, mime_type, size_bytes,
            tags, description, alt_text, status, uploaded_by, created_at, updated_at`

func (r *ImageRepository) Create(ctx context.Context, img *image.Image) (uuid.UUID, error) {
	query := `
        INSERT INTO images (
            id, app_id, stored_filename, original_filename, mime_type,
            size_bytes, tags, description, alt_text, status, uploaded_by
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
        ) RETURNING id
    `
	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, query,
		img.ID,
		img.AppID,
		img.StoredFilename,
		img.OriginalFilename,
		img.MimeType,
		img.Size,
		img.Tags,
		img.Description,
		img.AltText,
		img.Status,
		img.UploadedBy,
	).Scan(&insertedID)

	if err != nil {
		r.logger.Error("Failed to create image record in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create image: %w", err)
	}

	r.logger.Info("Image record created successfully", zap.String("id", insertedID.String()), zap.String("app_id", img.AppID))
	return insertedID, nil
}

func (r *ImageRepository) FindByID(ctx context.Context, id uuid.UUID) (*image.Image, error) {
	query := `
        SELECT ` + imageColumns + `
        FROM images
        WHERE id = $1
    `
	img, err := r.scanImage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, image.ErrNotFound
		}
		r.logger.Error("Failed to scan image row", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) List(ctx context.Context, params image.ListParams) ([]*image.Image, int64, error) {
	where, args := buildImageFilter(params)

	countQuery := `SELECT COUNT(*) FROM images ` + where
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count images", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on count images: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT `+imageColumns+`
        FROM images %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d
    `, where, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query list of images", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on list images: %w", err)
	}
	defer rows.Close()

	images := make([]*image.Image, 0)
	for rows.Next() {
		img, err := r.scanImage(rows)
		if err != nil {
			r.logger.Error("Failed to scan image row during list", zap.Error(err))
			return nil, 0, fmt.Errorf("database scan error during list: %w", err)
		}
		images = append(images, img)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database iteration error on list images: %w", err)
	}

	return images, total, nil
}

func (r *ImageRepository) Update(ctx context.Context, id uuid.UUID, params image.UpdateParams) (*image.Image, error) {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if params.Tags != nil {
		args = append(args, *params.Tags)
		sets = append(sets, fmt.Sprintf("tags = $%d", len(args)))
	}
	if params.Description != nil {
		args = append(args, *params.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if params.AltText != nil {
		args = append(args, *params.AltText)
		sets = append(sets, fmt.Sprintf("alt_text = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE images SET %s
        WHERE id = $%d
        RETURNING `+imageColumns, strings.Join(sets, ", "), len(args))

	img, err := r.scanImage(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, image.ErrNotFound
		}
		r.logger.Error("Failed to update image in database", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", image.ErrUpdateFailed, err)
	}

	r.logger.Info("Image metadata updated successfully", zap.String("id", id.String()))
	return img, nil
}

func (r *ImageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status image.Status) error {
	query := `UPDATE images SET status = $1, updated_at = now() WHERE id = $2`
	cmdTag, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update image status", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on update image status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return image.ErrNotFound
	}
	r.logger.Info("Image status updated", zap.String("id", id.String()), zap.String("status", string(status)))
	return nil
}

// buildImageFilter renders the shared WHERE clause for List and its count.
func buildImageFilter(params image.ListParams) (string, []interface{}) {
	clauses := []string{"app_id = $1", "status = $2"}
	args := []interface{}{params.AppID, image.StatusActive}

	if len(params.Tags) > 0 {
		args = append(args, params.Tags)
		clauses = append(clauses, fmt.Sprintf("tags && $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(description ILIKE $%d OR original_filename ILIKE $%d OR alt_text ILIKE $%d)", n, n, n))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r *ImageRepository) scanImage(row pgx.Row) (*image.Image, error) {
	var img image.Image
	err := row.Scan(
		&img.ID,
		&img.AppID,
		&img.StoredFilename,
		&img.OriginalFilename,
		&img.MimeType,
		&img.Size,
		&img.Tags,
		&img.Description,
		&img.AltText,
		&img.Status,
		&img.UploadedBy,
		&img.CreatedAt,
		&img.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
