package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/makkenzo/imagevault-api/internal/domain/apikey"
	"github.com/makkenzo/imagevault-api/internal/domain/image"
	"github.com/makkenzo/imagevault-api/internal/handler/dto"
	"github.com/makkenzo/imagevault-api/internal/handler/middleware"
	"github.com/makkenzo/imagevault-api/internal/ierr"
	"github.com/makkenzo/imagevault-api/internal/service"
	"go.uber.org/zap"
)

type ImageHandler struct {
	service *service.ImageService
	logger  *zap.Logger
}

func NewImageHandler(service *service.ImageService, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		service: service,
		logger:  logger.Named("ImageHandler"),
	}
}

// Upload handles POST /image/upload: multipart form with a "file" part plus
// optional "tags" (JSON array), "description" and "alt_text" fields.
func (h *ImageHandler) Upload(c *gin.Context) {
	keyRecord, err := middleware.APIKeyFromContext(c)
	if err != nil {
		h.logger.Error("Upload reached without authenticated key", zap.Error(err))
		_ = c.Error(ierr.ErrInternalServer)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn("Upload request without file part", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: missing file part", ierr.ErrInvalidInput))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file part", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: failed to read uploaded file: %v", ierr.ErrInternalServer, err))
		return
	}
	defer file.Close()

	// Read one byte past the cap so the service can reject oversized content
	// without the handler buffering an unbounded body.
	content, err := io.ReadAll(io.LimitReader(file, h.service.MaxUploadSize()+1))
	if err != nil {
		h.logger.Error("Failed to read uploaded file content", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: failed to read uploaded file: %v", ierr.ErrInternalServer, err))
		return
	}

	var tags []string
	if rawTags := c.PostForm("tags"); rawTags != "" {
		if err := json.Unmarshal([]byte(rawTags), &tags); err != nil {
			h.logger.Warn("Unparseable tags field in upload", zap.String("tags", rawTags), zap.Error(err))
			_ = c.Error(fmt.Errorf("%w: tags must be a JSON array of strings", ierr.ErrInvalidInput))
			return
		}
	}

	input := service.UploadInput{
		AppID:            keyRecord.AppID,
		UploadedBy:       keyRecord.ID.String(),
		Content:          content,
		MimeType:         fileHeader.Header.Get("Content-Type"),
		OriginalFilename: fileHeader.Filename,
		Tags:             tags,
		Description:      c.PostForm("description"),
		AltText:          c.PostForm("alt_text"),
	}

	created, err := h.service.Upload(c.Request.Context(), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	imagesUploadedTotal.Inc()
	uploadBytesTotal.Add(float64(created.Size))

	h.logger.Info("Image uploaded via handler", zap.String("id", created.ID.String()), zap.String("app_id", created.AppID))
	c.JSON(http.StatusCreated, dto.NewImageResponse(created))
}

// GetByID handles GET /image/:id.
func (h *ImageHandler) GetByID(c *gin.Context) {
	keyRecord, id, ok := h.resolveKeyAndID(c)
	if !ok {
		return
	}

	img, err := h.service.GetByID(c.Request.Context(), keyRecord.AppID, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewImageResponse(img))
}

// GetFile handles GET /image/:id/file. The route carries no credential:
// file content is publicly retrievable by identifier.
func (h *ImageHandler) GetFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid image id format", ierr.ErrInvalidInput))
		return
	}

	data, img, err := h.service.GetFileContent(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Data(http.StatusOK, img.MimeType, data)
}

// List handles GET /image with page, limit, tags and search query params.
func (h *ImageHandler) List(c *gin.Context) {
	keyRecord, err := middleware.APIKeyFromContext(c)
	if err != nil {
		h.logger.Error("List reached without authenticated key", zap.Error(err))
		_ = c.Error(ierr.ErrInternalServer)
		return
	}

	var req dto.ListImagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Failed to bind or validate list query parameters", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrInvalidInput, err))
		return
	}

	input := service.ListInput{
		AppID:  keyRecord.AppID,
		Search: req.Search,
		Page:   req.Page,
		Limit:  req.Limit,
	}
	if req.Tags != "" {
		for _, tag := range strings.Split(req.Tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				input.Tags = append(input.Tags, tag)
			}
		}
	}

	images, total, err := h.service.List(c.Request.Context(), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]*dto.ImageResponse, len(images))
	for i, img := range images {
		responses[i] = dto.NewImageResponse(img)
	}

	c.JSON(http.StatusOK, dto.PaginatedImagesResponse{
		Images:     responses,
		TotalCount: total,
		Page:       input.Page,
		Limit:      input.Limit,
	})
}

// Update handles PATCH /image/:id with a partial metadata body.
func (h *ImageHandler) Update(c *gin.Context) {
	keyRecord, id, ok := h.resolveKeyAndID(c)
	if !ok {
		return
	}

	var req dto.UpdateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind update request body", zap.String("id", id.String()), zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrInvalidInput, err))
		return
	}

	params := image.UpdateParams{
		Tags:        req.Tags,
		Description: req.Description,
		AltText:     req.AltText,
	}

	updated, err := h.service.UpdateMetadata(c.Request.Context(), keyRecord.AppID, id, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("Image metadata updated via handler", zap.String("id", id.String()))
	c.JSON(http.StatusOK, dto.NewImageResponse(updated))
}

// Delete handles DELETE /image/:id.
func (h *ImageHandler) Delete(c *gin.Context) {
	keyRecord, id, ok := h.resolveKeyAndID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), keyRecord.AppID, id); err != nil {
		_ = c.Error(err)
		return
	}

	imagesDeletedTotal.Inc()

	h.logger.Info("Image deleted via handler", zap.String("id", id.String()))
	c.Status(http.StatusNoContent)
}

func (h *ImageHandler) resolveKeyAndID(c *gin.Context) (keyRecord *apikey.APIKey, id uuid.UUID, ok bool) {
	record, err := middleware.APIKeyFromContext(c)
	if err != nil {
		h.logger.Error("Handler reached without authenticated key", zap.Error(err))
		_ = c.Error(ierr.ErrInternalServer)
		return nil, uuid.Nil, false
	}

	id, err = uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid image id format", ierr.ErrInvalidInput))
		return nil, uuid.Nil, false
	}
	return record, id, true
}
