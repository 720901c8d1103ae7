// Package reconcile detects drift between the metadata store and the content
// store. Content records that no metadata row references are deleted once
// they are older than a grace period; metadata rows whose content record is
// gone are only reported.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"notely/internal/database/repositories"

	"github.com/google/uuid"
)

const defaultBatchSize = 500

type Report struct {
	Scanned  int
	Orphans  int
	Deleted  int64
	Dangling []uuid.UUID
}

type Sweeper struct {
	metadata repositories.NoteMetadataRepository
	contents repositories.NoteContentRepository
	grace    time.Duration
	batch    int
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Sweeper)

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) { s.log = log }
}

// NewSweeper returns a sweeper that leaves content records younger than
// grace alone, so that notes still inside their create transaction are not
// mistaken for orphans.
func NewSweeper(metadata repositories.NoteMetadataRepository, contents repositories.NoteContentRepository, grace time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		metadata: metadata,
		contents: contents,
		grace:    grace,
		batch:    defaultBatchSize,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one full pass over both stores.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var report Report
	if err := s.sweepOrphans(ctx, &report); err != nil {
		return report, err
	}
	if err := s.findDangling(ctx, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Sweeper) sweepOrphans(ctx context.Context, report *Report) error {
	cutoff := s.now().Add(-s.grace)
	after := ""
	for {
		page, err := s.contents.CreatedBefore(ctx, cutoff, after, s.batch)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		report.Scanned += len(page)
		after = page[len(page)-1].Ref()

		refs := make([]string, len(page))
		for i, c := range page {
			refs[i] = c.Ref()
		}
		existing, err := s.metadata.ExistingContentRefs(ctx, refs)
		if err != nil {
			return err
		}

		var orphans []string
		for _, ref := range refs {
			if !existing[ref] {
				orphans = append(orphans, ref)
			}
		}
		if len(orphans) == 0 {
			continue
		}
		report.Orphans += len(orphans)
		deleted, err := s.contents.DeleteMany(ctx, orphans)
		if err != nil {
			return err
		}
		report.Deleted += deleted
		s.log.Info("deleted orphaned note contents", "count", deleted, "refs", orphans)
	}
}

func (s *Sweeper) findDangling(ctx context.Context, report *Report) error {
	after := uuid.Nil
	for {
		page, err := s.metadata.Page(ctx, after, s.batch)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		after = page[len(page)-1].ID

		refs := make([]string, len(page))
		for i, m := range page {
			refs[i] = m.ContentRef
		}
		found, err := s.contents.GetByRefs(ctx, refs)
		if err != nil {
			return err
		}
		for _, m := range page {
			if _, ok := found[m.ContentRef]; !ok {
				report.Dangling = append(report.Dangling, m.ID)
				s.log.Warn("note metadata without content", "note_id", m.ID, "content_ref", m.ContentRef)
			}
		}
	}
}

// Run sweeps every interval until ctx is done. Failed passes are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Error("sweep failed", "error", err)
				continue
			}
			s.log.Debug("sweep finished", "scanned", report.Scanned, "orphans", report.Orphans, "deleted", report.Deleted, "dangling", len(report.Dangling))
		}
	}
}
