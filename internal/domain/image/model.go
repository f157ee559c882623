package image

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Image is the metadata record for one uploaded file. The binary content
// lives on disk at {root}/{app_id}/{stored_filename}.
type Image struct {
	ID               uuid.UUID `db:"id"`
	AppID            string    `db:"app_id"`
	StoredFilename   string    `db:"stored_filename"`
	OriginalFilename string    `db:"original_filename"`
	MimeType         string    `db:"mime_type"`
	Size             int64     `db:"size_bytes"`
	Tags             []string  `db:"tags"`
	Description      string    `db:"description"`
	AltText          string    `db:"alt_text"`
	Status           Status    `db:"status"`
	UploadedBy       string    `db:"uploaded_by"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
