package nlmserver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestJobStore(t *testing.T) *JobStore {
	t.Helper()
	store, err := OpenJobStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestJobStore(t)

	job, err := store.Create(ctx, "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Equal(t, StatusPending, job.Status)

	require.NoError(t, store.MarkProcessing(ctx, job.ID))

	image := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	require.NoError(t, store.Complete(ctx, job.ID, "https://lh3.googleusercontent.com/x", image, "image/jpeg"))

	got, ok, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, image, got.ImageData)
	require.Equal(t, "image/jpeg", got.MIMEType)
	require.False(t, got.CompletedAt.IsZero())
}

func TestJobTransitionsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	store := openTestJobStore(t)
	image := []byte{1}

	t.Run("complete requires processing", func(t *testing.T) {
		job, err := store.Create(ctx, "url")
		require.NoError(t, err)
		// Straight to completed is refused: the job was never claimed.
		require.Error(t, store.Complete(ctx, job.ID, "u", image, "image/jpeg"))
	})

	t.Run("no resurrection after failure", func(t *testing.T) {
		job, err := store.Create(ctx, "url")
		require.NoError(t, err)
		require.NoError(t, store.MarkProcessing(ctx, job.ID))
		require.NoError(t, store.Fail(ctx, job.ID, "generation timed out"))

		require.Error(t, store.Complete(ctx, job.ID, "u", image, "image/jpeg"))
		require.Error(t, store.MarkProcessing(ctx, job.ID))

		got, ok, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, StatusFailed, got.Status)
		require.Equal(t, "generation timed out", got.Error)
	})

	t.Run("completed is terminal", func(t *testing.T) {
		job, err := store.Create(ctx, "url")
		require.NoError(t, err)
		require.NoError(t, store.MarkProcessing(ctx, job.ID))
		require.NoError(t, store.Complete(ctx, job.ID, "u", image, "image/jpeg"))

		require.Error(t, store.Fail(ctx, job.ID, "late failure"))
		got, _, _ := store.Get(ctx, job.ID)
		require.Equal(t, StatusCompleted, got.Status)
	})

	t.Run("pending can fail directly", func(t *testing.T) {
		job, err := store.Create(ctx, "url")
		require.NoError(t, err)
		require.NoError(t, store.Fail(ctx, job.ID, "could not claim"))
	})
}

func TestCompletedImpliesImage(t *testing.T) {
	ctx := context.Background()
	store := openTestJobStore(t)

	job, err := store.Create(ctx, "url")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, job.ID))

	// Completion without image bytes must be refused outright.
	require.Error(t, store.Complete(ctx, job.ID, "u", nil, "image/jpeg"))

	got, _, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, got.Status)
	require.Empty(t, got.ImageData)
}

func TestJobGetUnknown(t *testing.T) {
	store := openTestJobStore(t)
	_, ok, err := store.Get(context.Background(), "no-such-job")
	require.NoError(t, err)
	require.False(t, ok)
}
