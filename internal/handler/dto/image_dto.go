package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/imagevault-api/internal/domain/image"
)

type ImageResponse struct {
	ID               uuid.UUID `json:"id"`
	AppID            string    `json:"app_id"`
	StoredFilename   string    `json:"stored_filename"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	MimeType         string    `json:"mime_type"`
	Size             int64     `json:"size"`
	Tags             []string  `json:"tags"`
	Description      string    `json:"description,omitempty"`
	AltText          string    `json:"alt_text,omitempty"`
	Status           string    `json:"status"`
	UploadedBy       string    `json:"uploaded_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewImageResponse(img *image.Image) *ImageResponse {
	tags := img.Tags
	if tags == nil {
		tags = []string{}
	}
	return &ImageResponse{
		ID:               img.ID,
		AppID:            img.AppID,
		StoredFilename:   img.StoredFilename,
		OriginalFilename: img.OriginalFilename,
		MimeType:         img.MimeType,
		Size:             img.Size,
		Tags:             tags,
		Description:      img.Description,
		AltText:          img.AltText,
		Status:           string(img.Status),
		UploadedBy:       img.UploadedBy,
		CreatedAt:        img.CreatedAt,
		UpdatedAt:        img.UpdatedAt,
	}
}

type ListImagesRequest struct {
	Page   int    `form:"page,default=1" binding:"omitempty,gte=1"`
	Limit  int    `form:"limit,default=20" binding:"omitempty,gte=1,lte=100"`
	Tags   string `form:"tags"`
	Search string `form:"search"`
}

type PaginatedImagesResponse struct {
	Images     []*ImageResponse `json:"images"`
	TotalCount int64            `json:"totalCount"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
}

type UpdateImageRequest struct {
	Tags        *[]string `json:"tags"`
	Description *string   `json:"description"`
	AltText     *string   `json:"alt_text"`
}
