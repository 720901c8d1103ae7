package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"notely/internal/database/models"
	"notely/internal/database/repositories/repotest"
	"notely/internal/notes"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	clock := repotest.NewClock()
	metadata := repotest.NewMetadata(clock)
	contents := repotest.NewContents(clock)
	coord := notes.NewCoordinator(metadata, contents, quiet())

	kept, err := coord.Create(ctx, 1, notes.Input{Title: "kept", Content: "c"})
	require.NoError(t, err)
	dangling, err := coord.Create(ctx, 1, notes.Input{Title: "dangling", Content: "c"})
	require.NoError(t, err)
	_, err = contents.Delete(ctx, dangling.ContentRef)
	require.NoError(t, err)

	var oldOrphans []string
	for i := 0; i < 3; i++ {
		oldOrphans = append(oldOrphans, contents.Put(models.NoteContent{MetadataID: uuid.NewString(), Content: "lost"}))
	}

	clock.Advance(time.Hour)
	young := contents.Put(models.NoteContent{MetadataID: uuid.NewString(), Content: "in flight"})

	sweeper := NewSweeper(metadata, contents, 10*time.Minute,
		WithBatchSize(2),
		WithClock(clock.Now),
		WithLogger(quiet()),
	)
	report, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 3, report.Orphans)
	assert.EqualValues(t, 3, report.Deleted)
	assert.Equal(t, []uuid.UUID{dangling.ID}, report.Dangling)

	docs := contents.Docs()
	for _, ref := range oldOrphans {
		assert.NotContains(t, docs, ref)
	}
	assert.Contains(t, docs, young)
	assert.Contains(t, docs, kept.ContentRef)
	assert.Len(t, metadata.Rows(), 2, "dangling metadata is reported, not removed")

	again, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Orphans)
}

func TestSweepEmptyStores(t *testing.T) {
	clock := repotest.NewClock()
	sweeper := NewSweeper(repotest.NewMetadata(clock), repotest.NewContents(clock), time.Minute, WithLogger(quiet()))
	report, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestRunStopsWithContext(t *testing.T) {
	clock := repotest.NewClock()
	sweeper := NewSweeper(repotest.NewMetadata(clock), repotest.NewContents(clock), time.Minute, WithLogger(quiet()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx, time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
