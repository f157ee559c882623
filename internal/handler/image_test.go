package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/imagevault-api/internal/domain/apikey"
	"github.com/makkenzo/imagevault-api/internal/handler"
	"github.com/makkenzo/imagevault-api/internal/handler/dto"
	"github.com/makkenzo/imagevault-api/internal/handler/middleware"
	"github.com/makkenzo/imagevault-api/internal/service"
	"github.com/makkenzo/imagevault-api/internal/storage/filestore"
	"github.com/makkenzo/imagevault-api/internal/storage/memstorage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router   *gin.Engine
	writeKey string
	readKey  string
	fullKey  string
}

// newTestEnv wires the image routes the same way the server does, on
// in-memory storage, and provisions one key per permission shape.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	keyRepo := memstorage.NewAPIKeyRepository()
	imageRepo := memstorage.NewImageRepository()
	files := filestore.New(afero.NewMemMapFs(), "/data/images", logger)

	authority := service.NewAPIKeyService(keyRepo, logger)
	images := service.NewImageService(imageRepo, files, 10<<20, logger)

	imageHandler := handler.NewImageHandler(images, logger)

	requireRead := middleware.APIKeyAuth(authority, apikey.PermissionRead, logger)
	requireWrite := middleware.APIKeyAuth(authority, apikey.PermissionWrite, logger)
	requireDelete := middleware.APIKeyAuth(authority, apikey.PermissionDelete, logger)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))

	imageRoutes := router.Group("/image")
	{
		imageRoutes.POST("/upload", requireWrite, imageHandler.Upload)
		imageRoutes.GET("", requireRead, imageHandler.List)
		imageRoutes.GET("/:id", requireRead, imageHandler.GetByID)
		imageRoutes.GET("/:id/file", imageHandler.GetFile)
		imageRoutes.PATCH("/:id", requireWrite, imageHandler.Update)
		imageRoutes.DELETE("/:id", requireDelete, imageHandler.Delete)
	}

	ctx := context.Background()
	_, writeKey, err := authority.CreateAPIKey(ctx, "app-write", apikey.PermissionRead|apikey.PermissionWrite)
	require.NoError(t, err)
	_, readKey, err := authority.CreateAPIKey(ctx, "app-read", apikey.PermissionRead)
	require.NoError(t, err)
	_, fullKey, err := authority.CreateAPIKey(ctx, "app-full", apikey.PermissionRead|apikey.PermissionWrite|apikey.PermissionDelete)
	require.NoError(t, err)

	return &testEnv{router: router, writeKey: writeKey, readKey: readKey, fullKey: fullKey}
}

type uploadForm struct {
	filename    string
	contentType string
	content     []byte
	tags        string
	description string
	altText     string
}

func multipartBody(t *testing.T, form uploadForm) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, form.filename))
	header.Set("Content-Type", form.contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(form.content)
	require.NoError(t, err)

	if form.tags != "" {
		require.NoError(t, writer.WriteField("tags", form.tags))
	}
	if form.description != "" {
		require.NoError(t, writer.WriteField("description", form.description))
	}
	if form.altText != "" {
		require.NoError(t, writer.WriteField("alt_text", form.altText))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, key string, form uploadForm) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, form)
	req := httptest.NewRequest(http.MethodPost, "/image/upload", body)
	req.Header.Set("Content-Type", contentType)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) do(method, path, key string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) mustUpload(t *testing.T, key string, form uploadForm) dto.ImageResponse {
	t.Helper()
	rec := e.upload(t, key, form)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp dto.ImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func pngForm() uploadForm {
	return uploadForm{
		filename:    "photo.png",
		contentType: "image/png",
		content:     []byte("fake png bytes"),
	}
}

func TestUploadEndpoint(t *testing.T) {
	env := newTestEnv(t)

	form := pngForm()
	form.tags = `["cats","pets"]`
	form.description = "a cat"
	form.altText = "picture of a cat"

	resp := env.mustUpload(t, env.writeKey, form)

	assert.Equal(t, "app-write", resp.AppID)
	assert.Equal(t, "photo.png", resp.OriginalFilename)
	assert.Equal(t, "image/png", resp.MimeType)
	assert.Equal(t, int64(len(form.content)), resp.Size)
	assert.Equal(t, []string{"cats", "pets"}, resp.Tags)
	assert.Equal(t, "a cat", resp.Description)
	assert.Equal(t, "picture of a cat", resp.AltText)
	assert.Equal(t, "active", resp.Status)
	assert.NotEmpty(t, resp.UploadedBy)
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no credential", func(t *testing.T) {
		rec := env.upload(t, "", pngForm())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("read-only key", func(t *testing.T) {
		rec := env.upload(t, env.readKey, pngForm())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("disallowed mime type", func(t *testing.T) {
		form := pngForm()
		form.filename = "doc.pdf"
		form.contentType = "application/pdf"
		rec := env.upload(t, env.writeKey, form)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})

	t.Run("empty file", func(t *testing.T) {
		form := pngForm()
		form.content = nil
		rec := env.upload(t, env.writeKey, form)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed tags field", func(t *testing.T) {
		form := pngForm()
		form.tags = "cats,pets"
		rec := env.upload(t, env.writeKey, form)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file part", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("description", "no file here"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/image/upload", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("X-API-Key", env.writeKey)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetByIDEndpoint(t *testing.T) {
	env := newTestEnv(t)

	created := env.mustUpload(t, env.writeKey, pngForm())

	rec := env.do(http.MethodGet, "/image/"+created.ID.String(), env.writeKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)

	// Another tenant's key resolves nothing.
	rec = env.do(http.MethodGet, "/image/"+created.ID.String(), env.readKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/image/not-a-uuid", env.writeKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFileEndpointIsPublic(t *testing.T) {
	env := newTestEnv(t)

	form := pngForm()
	created := env.mustUpload(t, env.writeKey, form)

	// No API key on the file route.
	rec := env.do(http.MethodGet, "/image/"+created.ID.String()+"/file", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, form.content, rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = env.do(http.MethodGet, "/image/"+created.ID.String()+"/file", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, "file retrieval is idempotent")
}

func TestListEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		form := pngForm()
		form.filename = fmt.Sprintf("photo-%d.png", i)
		if i == 0 {
			form.tags = `["cats"]`
		}
		env.mustUpload(t, env.writeKey, form)
	}

	rec := env.do(http.MethodGet, "/image?page=1&limit=2", env.writeKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.PaginatedImagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.TotalCount)
	assert.Len(t, resp.Images, 2)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.Limit)

	rec = env.do(http.MethodGet, "/image?tags=cats,dogs", env.writeKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.TotalCount)

	rec = env.do(http.MethodGet, "/image?search=photo-1", env.writeKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.TotalCount)

	// Another tenant sees nothing.
	rec = env.do(http.MethodGet, "/image", env.readKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.TotalCount)

	rec = env.do(http.MethodGet, "/image?limit=500", env.writeKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	env := newTestEnv(t)

	form := pngForm()
	form.tags = `["cats"]`
	form.description = "old"
	created := env.mustUpload(t, env.writeKey, form)

	rec := env.do(http.MethodPatch, "/image/"+created.ID.String(), env.writeKey, []byte(`{"description":"new"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "new", resp.Description)
	assert.Equal(t, []string{"cats"}, resp.Tags, "omitted fields are preserved")

	// Read-only key cannot update.
	rec = env.do(http.MethodPatch, "/image/"+created.ID.String(), env.readKey, []byte(`{"description":"x"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	env := newTestEnv(t)

	created := env.mustUpload(t, env.fullKey, pngForm())

	// The write-only key lacks the delete bit.
	rec := env.do(http.MethodDelete, "/image/"+created.ID.String(), env.writeKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodDelete, "/image/"+created.ID.String(), env.fullKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/image/"+created.ID.String(), env.fullKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/image/"+created.ID.String()+"/file", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Delete is not idempotent.
	rec = env.do(http.MethodDelete, "/image/"+created.ID.String(), env.fullKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
