package tasks_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/makkenzo/imagevault-api/internal/domain/image"
	"github.com/makkenzo/imagevault-api/internal/storage/filestore"
	"github.com/makkenzo/imagevault-api/internal/storage/memstorage"
	"github.com/makkenzo/imagevault-api/internal/tasks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sweepRoot = "/data/images"

type sweepEnv struct {
	fs      afero.Fs
	store   *filestore.Store
	repo    *memstorage.ImageRepository
	handler *tasks.OrphanSweepHandler
}

func newSweepEnv() *sweepEnv {
	fs := afero.NewMemMapFs()
	store := filestore.New(fs, sweepRoot, zap.NewNop())
	repo := memstorage.NewImageRepository()
	return &sweepEnv{
		fs:      fs,
		store:   store,
		repo:    repo,
		handler: tasks.NewOrphanSweepHandler(repo, store, zap.NewNop()),
	}
}

// writeAged puts a file on disk with a modification time past the grace
// period, so the sweep will consider it.
func (e *sweepEnv) writeAged(t *testing.T, appID, filename string) {
	t.Helper()
	require.NoError(t, e.store.Save(appID, filename, []byte("bytes")))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, e.fs.Chtimes(filepath.Join(sweepRoot, appID, filename), old, old))
}

func (e *sweepEnv) addRecord(t *testing.T, appID, filename string, id uuid.UUID, status image.Status) {
	t.Helper()
	_, err := e.repo.Create(context.Background(), &image.Image{
		ID:             id,
		AppID:          appID,
		StoredFilename: filename,
		MimeType:       "image/png",
		Status:         status,
	})
	require.NoError(t, err)
}

func (e *sweepEnv) run(t *testing.T) {
	t.Helper()
	task, err := tasks.NewOrphanSweepTask()
	require.NoError(t, err)
	require.NoError(t, e.handler.ProcessTask(context.Background(), task))
}

func (e *sweepEnv) exists(t *testing.T, appID, filename string) bool {
	t.Helper()
	ok, err := e.store.Exists(appID, filename)
	require.NoError(t, err)
	return ok
}

func TestSweepRemovesRecordlessFiles(t *testing.T) {
	env := newSweepEnv()

	orphan := uuid.New().String() + ".png"
	env.writeAged(t, "app1", orphan)

	env.run(t)

	assert.False(t, env.exists(t, "app1", orphan))
}

func TestSweepRemovesFilesOfDeletedRecords(t *testing.T) {
	env := newSweepEnv()

	id := uuid.New()
	filename := id.String() + ".png"
	env.writeAged(t, "app1", filename)
	env.addRecord(t, "app1", filename, id, image.StatusDeleted)

	env.run(t)

	assert.False(t, env.exists(t, "app1", filename))
}

func TestSweepKeepsActiveFiles(t *testing.T) {
	env := newSweepEnv()

	id := uuid.New()
	filename := id.String() + ".png"
	env.writeAged(t, "app1", filename)
	env.addRecord(t, "app1", filename, id, image.StatusActive)

	env.run(t)

	assert.True(t, env.exists(t, "app1", filename))
}

func TestSweepHonorsGracePeriod(t *testing.T) {
	env := newSweepEnv()

	// Fresh file with no record: an upload whose metadata write may still be
	// in flight. Must survive the sweep.
	fresh := uuid.New().String() + ".png"
	require.NoError(t, env.store.Save("app1", fresh, []byte("bytes")))

	env.run(t)

	assert.True(t, env.exists(t, "app1", fresh))
}

func TestSweepIgnoresUnrecognizedFilenames(t *testing.T) {
	env := newSweepEnv()

	env.writeAged(t, "app1", "README.txt")
	env.writeAged(t, "app1", "not-a-uuid.png")

	env.run(t)

	assert.True(t, env.exists(t, "app1", "README.txt"))
	assert.True(t, env.exists(t, "app1", "not-a-uuid.png"))
}

func TestSweepWalksAllTenants(t *testing.T) {
	env := newSweepEnv()

	orphan1 := uuid.New().String() + ".png"
	orphan2 := uuid.New().String() + ".webp"
	env.writeAged(t, "app1", orphan1)
	env.writeAged(t, "app2", orphan2)

	keptID := uuid.New()
	kept := keptID.String() + ".png"
	env.writeAged(t, "app2", kept)
	env.addRecord(t, "app2", kept, keptID, image.StatusActive)

	env.run(t)

	assert.False(t, env.exists(t, "app1", orphan1))
	assert.False(t, env.exists(t, "app2", orphan2))
	assert.True(t, env.exists(t, "app2", kept))
}

func TestSweepRejectsUnknownTaskType(t *testing.T) {
	env := newSweepEnv()

	err := env.handler.ProcessTask(context.Background(), asynq.NewTask("other:task", nil))
	assert.Error(t, err)
}
