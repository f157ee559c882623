package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/makkenzo/imagevault-api/internal/domain/image"
	"github.com/makkenzo/imagevault-api/internal/storage/filestore"
	"go.uber.org/zap"
)

// SweepStore is the filesystem view the sweep walks.
type SweepStore interface {
	Apps() ([]string, error)
	Files(appID string) ([]filestore.Entry, error)
	Delete(appID, filename string) error
}

// orphanGracePeriod keeps freshly written files out of the sweep, so an
// upload whose record write is still in flight is never collected.
const orphanGracePeriod = 1 * time.Hour

// OrphanSweepHandler removes files no active record references: leftovers
// from the write-file-then-record upload ordering and from the delete window
// between status flip and file removal.
type OrphanSweepHandler struct {
	repo   image.Repository
	store  SweepStore
	logger *zap.Logger
}

func NewOrphanSweepHandler(repo image.Repository, store SweepStore, logger *zap.Logger) *OrphanSweepHandler {
	return &OrphanSweepHandler{
		repo:   repo,
		store:  store,
		logger: logger.Named("OrphanSweepHandler"),
	}
}

func (h *OrphanSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeOrphanSweep {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p OrphanSweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for orphan sweep task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	h.logger.Info("Processing orphan sweep task...")

	apps, err := h.store.Apps()
	if err != nil {
		h.logger.Error("Failed to list tenant directories", zap.Error(err))
		return fmt.Errorf("listing tenant directories: %w", err)
	}

	cutoff := time.Now().Add(-orphanGracePeriod)
	scanned := 0
	removed := 0

	for _, appID := range apps {
		entries, err := h.store.Files(appID)
		if err != nil {
			h.logger.Error("Failed to list tenant files", zap.String("app_id", appID), zap.Error(err))
			continue
		}

		for _, entry := range entries {
			scanned++

			if entry.ModTime.After(cutoff) {
				continue
			}

			orphan, err := h.isOrphan(ctx, entry.Name)
			if err != nil {
				h.logger.Error("Failed to resolve record for stored file",
					zap.String("app_id", appID), zap.String("filename", entry.Name), zap.Error(err))
				continue
			}
			if !orphan {
				continue
			}

			if err := h.store.Delete(appID, entry.Name); err != nil {
				h.logger.Error("Failed to remove orphan file",
					zap.String("app_id", appID), zap.String("filename", entry.Name), zap.Error(err))
				continue
			}

			h.logger.Info("Removed orphan file", zap.String("app_id", appID), zap.String("filename", entry.Name))
			removed++
		}
	}

	h.logger.Info("Orphan sweep task finished", zap.Int("scanned_files", scanned), zap.Int("removed_files", removed))
	return nil
}

// isOrphan reports whether a stored file has no active record behind it.
// Files whose names do not carry a parseable identifier are left alone.
func (h *OrphanSweepHandler) isOrphan(ctx context.Context, filename string) (bool, error) {
	base := filename
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}

	id, err := uuid.Parse(base)
	if err != nil {
		return false, nil
	}

	img, err := h.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	return img.Status != image.StatusActive, nil
}
