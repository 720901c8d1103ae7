// Package notes sequences note writes across the metadata store and the
// content store.
//
// Only the metadata writes of one operation share a transaction. The content
// store is written while that transaction is open, so a crash between the
// two can leave a content record that no metadata row points at. Create
// deletes such a record on the failure paths it can observe; the reconcile
// package sweeps up the rest.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"notely/internal/database/models"
	"notely/internal/database/repositories"

	"github.com/google/uuid"
)

// ErrMissingFields is returned when a title or content is empty, or when an
// update carries no tags. No store is touched in that case.
var ErrMissingFields = errors.New("title and content are required")

// pendingRefPrefix marks a metadata row whose content record has not been
// written yet. Such rows are never visible outside their transaction.
const pendingRefPrefix = "pending:"

// Input is the caller supplied part of a note. A nil Tags means the field
// was absent; an empty slice clears the tags.
type Input struct {
	Title   string
	Content string
	Tags    []string
}

func (in Input) validate() error {
	if in.Title == "" || in.Content == "" {
		return ErrMissingFields
	}
	return nil
}

// validateUpdate also requires tags, so that an update always states the
// full note.
func (in Input) validateUpdate() error {
	if in.Tags == nil {
		return ErrMissingFields
	}
	return in.validate()
}

func (in Input) tags() []string {
	if in.Tags == nil {
		return []string{}
	}
	return in.Tags
}

type Coordinator struct {
	metadata repositories.NoteMetadataRepository
	contents repositories.NoteContentRepository
	log      *slog.Logger
}

func NewCoordinator(metadata repositories.NoteMetadataRepository, contents repositories.NoteContentRepository, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{metadata: metadata, contents: contents, log: log}
}

// Create writes the metadata row with a placeholder reference, writes the
// content record, then points the row at it and commits.
func (c *Coordinator) Create(ctx context.Context, userID int64, in Input) (_ models.Note, err error) {
	if err := in.validate(); err != nil {
		return models.Note{}, err
	}

	tx, err := c.metadata.Begin(ctx)
	if err != nil {
		return models.Note{}, err
	}
	defer rollbackOnError(tx, &err)

	meta := models.NoteMetadata{
		UserID:     userID,
		Title:      in.Title,
		ContentRef: pendingRefPrefix + uuid.NewString(),
	}
	if err := tx.Create(ctx, &meta); err != nil {
		return models.Note{}, err
	}

	content := models.NoteContent{
		MetadataID: meta.ID.String(),
		Content:    in.Content,
		Tags:       in.tags(),
	}
	if err := c.contents.Create(ctx, &content); err != nil {
		return models.Note{}, err
	}
	meta.ContentRef = content.Ref()

	if err := tx.SetContentRef(ctx, meta.ID, meta.ContentRef); err != nil {
		c.discardContent(ctx, content.Ref())
		return models.Note{}, err
	}
	if err := tx.Commit(); err != nil {
		c.discardContent(ctx, content.Ref())
		return models.Note{}, err
	}
	return models.Merge(meta, &content), nil
}

// Get returns the user's note joined with its content. A missing content
// record is not an error.
func (c *Coordinator) Get(ctx context.Context, userID int64, id uuid.UUID) (models.Note, error) {
	meta, err := c.metadata.GetByID(ctx, id, userID)
	if err != nil {
		return models.Note{}, err
	}
	content, err := c.contents.GetByRef(ctx, meta.ContentRef)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Merge(*meta, nil), nil
	}
	if err != nil {
		return models.Note{}, err
	}
	return models.Merge(*meta, content), nil
}

// List returns the user's notes, most recently updated first, with content
// fetched in one batch.
func (c *Coordinator) List(ctx context.Context, userID int64) ([]models.Note, error) {
	metas, err := c.metadata.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return []models.Note{}, nil
	}

	refs := make([]string, len(metas))
	for i, m := range metas {
		refs[i] = m.ContentRef
	}
	contents, err := c.contents.GetByRefs(ctx, refs)
	if err != nil {
		return nil, err
	}

	notes := make([]models.Note, len(metas))
	for i, m := range metas {
		if content, ok := contents[m.ContentRef]; ok {
			notes[i] = models.Merge(m, &content)
		} else {
			notes[i] = models.Merge(m, nil)
		}
	}
	return notes, nil
}

// Update replaces the title, content and tags of the user's note.
func (c *Coordinator) Update(ctx context.Context, userID int64, id uuid.UUID, in Input) (_ models.Note, err error) {
	if err := in.validateUpdate(); err != nil {
		return models.Note{}, err
	}

	tx, err := c.metadata.Begin(ctx)
	if err != nil {
		return models.Note{}, err
	}
	defer rollbackOnError(tx, &err)

	meta := models.NoteMetadata{ID: id, UserID: userID, Title: in.Title}
	if err := tx.Update(ctx, &meta); err != nil {
		return models.Note{}, err
	}
	content, err := c.contents.Update(ctx, meta.ContentRef, in.Content, in.tags())
	if err != nil {
		return models.Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Note{}, err
	}
	return models.Merge(meta, content), nil
}

// Delete removes the user's note from both stores. A content record that is
// already gone does not block removing the metadata row.
func (c *Coordinator) Delete(ctx context.Context, userID int64, id uuid.UUID) (err error) {
	tx, err := c.metadata.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollbackOnError(tx, &err)

	ref, err := tx.ContentRef(ctx, id, userID)
	if err != nil {
		return err
	}
	deleted, err := c.contents.Delete(ctx, ref)
	if err != nil {
		return err
	}
	if !deleted {
		c.log.Warn("note content already missing", "note_id", id, "content_ref", ref)
	}
	if err := tx.Delete(ctx, id, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// discardContent removes a content record written for a transaction that
// did not commit. Failures are left to the orphan sweeper.
func (c *Coordinator) discardContent(ctx context.Context, ref string) {
	if _, err := c.contents.Delete(context.WithoutCancel(ctx), ref); err != nil {
		c.log.Error("failed to discard note content", "content_ref", ref, "error", err)
	}
}

func rollbackOnError(tx repositories.NoteMetadataTx, err *error) {
	if *err == nil {
		return
	}
	if rbErr := tx.Rollback(); rbErr != nil {
		*err = fmt.Errorf("%w (rollback: %v)", *err, rbErr)
	}
}
