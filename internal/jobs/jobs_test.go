package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihavenoenemy/mathcast/internal/db"
)

func setupTestDB(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func TestRecorder_StartFinish(t *testing.T) {
	repo := setupTestDB(t)
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	j := rec.Start(ctx, TypeRender, 1, "medium", "")
	require.NotEmpty(t, j.ID)

	got, err := rec.Get(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "medium", got.Quality)
	assert.Equal(t, 1, got.Attempt)

	rec.Finish(ctx, j, "/animations/a.mp4", nil, 1500*time.Millisecond)

	got, err = rec.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "/animations/a.mp4", got.OutputPath)
	assert.EqualValues(t, 1500, got.DurationMs)
	assert.Empty(t, got.Error)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecorder_FinishWithError(t *testing.T) {
	repo := setupTestDB(t)
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	j := rec.Start(ctx, TypeSync, 1, "", "/animations/a.mp4")
	rec.Finish(ctx, j, "", errors.New("ffmpeg exited with code 1"), time.Second)

	got, err := rec.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "ffmpeg exited with code 1", got.Error)
	assert.Equal(t, "/animations/a.mp4", got.InputPath)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *Recorder
	j := rec.Start(context.Background(), TypeRender, 1, "low", "")
	rec.Finish(context.Background(), j, "", errors.New("boom"), 0)
	assert.Equal(t, StatusFailed, j.Status)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := setupTestDB(t)
	j, err := repo.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestRepository_ListNewestFirstWithFilter(t *testing.T) {
	repo := setupTestDB(t)
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	rec.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	first := rec.Start(ctx, TypeRender, 1, "medium", "")
	rec.Start(ctx, TypeSync, 1, "", "")
	third := rec.Start(ctx, TypeRender, 2, "low", "")

	all, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)

	renders, err := repo.List(ctx, Filter{Type: TypeRender})
	require.NoError(t, err)
	require.Len(t, renders, 2)
	assert.Equal(t, third.ID, renders[0].ID)
	assert.Equal(t, first.ID, renders[1].ID)

	limited, err := repo.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepository_Config(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	v, err := repo.GetConfig(ctx, "instance_id")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repo.SetConfig(ctx, "instance_id", "a"))
	require.NoError(t, repo.SetConfig(ctx, "instance_id", "b"))

	v, err = repo.GetConfig(ctx, "instance_id")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}
