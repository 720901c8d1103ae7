package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"notely/internal/database/models"

	"github.com/google/uuid"
)

// NoteMetadataRepository reads note metadata and opens transactions for
// writing it.
type NoteMetadataRepository interface {
	Begin(ctx context.Context) (NoteMetadataTx, error)
	GetByID(ctx context.Context, id uuid.UUID, userID int64) (*models.NoteMetadata, error)
	// GetAll returns the user's notes, most recently updated first.
	GetAll(ctx context.Context, userID int64) ([]models.NoteMetadata, error)
	// ExistingContentRefs returns the subset of refs referenced by some row.
	ExistingContentRefs(ctx context.Context, refs []string) (map[string]bool, error)
	// Page returns up to limit rows with an id greater than after, in id order.
	Page(ctx context.Context, after uuid.UUID, limit int) ([]models.NoteMetadata, error)
}

// NoteMetadataTx is a single metadata transaction. Exactly one of Commit or
// Rollback must be called; Rollback after Commit is a no-op.
type NoteMetadataTx interface {
	Create(ctx context.Context, note *models.NoteMetadata) error
	SetContentRef(ctx context.Context, id uuid.UUID, ref string) error
	Update(ctx context.Context, note *models.NoteMetadata) error
	ContentRef(ctx context.Context, id uuid.UUID, userID int64) (string, error)
	Delete(ctx context.Context, id uuid.UUID, userID int64) error
	Commit() error
	Rollback() error
}

type noteMetadataRepository struct {
	db *sql.DB
}

func NewNoteMetadataRepository(db *sql.DB) NoteMetadataRepository {
	return &noteMetadataRepository{db: db}
}

const metadataColumns = `id, user_id, title, created_at, updated_at, content_ref`

func scanMetadata(row interface{ Scan(...any) error }, note *models.NoteMetadata) error {
	return row.Scan(&note.ID, &note.UserID, &note.Title, &note.CreatedAt, &note.UpdatedAt, &note.ContentRef)
}

func (r *noteMetadataRepository) Begin(ctx context.Context) (NoteMetadataTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	return &noteMetadataTx{tx: tx}, nil
}

func (r *noteMetadataRepository) GetByID(ctx context.Context, id uuid.UUID, userID int64) (*models.NoteMetadata, error) {
	note := models.NoteMetadata{}
	query := `SELECT ` + metadataColumns + ` FROM notes_metadata WHERE id = $1 AND user_id = $2`
	err := scanMetadata(r.db.QueryRowContext(ctx, query, id, userID), &note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting note: %w", err)
	}
	return &note, nil
}

func (r *noteMetadataRepository) GetAll(ctx context.Context, userID int64) ([]models.NoteMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM notes_metadata WHERE user_id = $1 ORDER BY updated_at DESC, created_at DESC`
	return r.query(ctx, query, userID)
}

func (r *noteMetadataRepository) Page(ctx context.Context, after uuid.UUID, limit int) ([]models.NoteMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM notes_metadata WHERE id > $1 ORDER BY id LIMIT $2`
	return r.query(ctx, query, after, limit)
}

func (r *noteMetadataRepository) query(ctx context.Context, query string, args ...any) ([]models.NoteMetadata, error) {
	result, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", err)
	}
	defer result.Close()

	notes := []models.NoteMetadata{}
	for result.Next() {
		var note models.NoteMetadata
		if err := scanMetadata(result, &note); err != nil {
			return nil, fmt.Errorf("error scanning note: %w", err)
		}
		notes = append(notes, note)
	}
	if err = result.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func (r *noteMetadataRepository) ExistingContentRefs(ctx context.Context, refs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(refs))
	if len(refs) == 0 {
		return existing, nil
	}
	result, err := r.db.QueryContext(ctx, `SELECT content_ref FROM notes_metadata WHERE content_ref = ANY($1)`, refs)
	if err != nil {
		return nil, fmt.Errorf("error querying content refs: %w", err)
	}
	defer result.Close()

	for result.Next() {
		var ref string
		if err := result.Scan(&ref); err != nil {
			return nil, fmt.Errorf("error scanning content ref: %w", err)
		}
		existing[ref] = true
	}
	if err = result.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content refs: %w", err)
	}
	return existing, nil
}

type noteMetadataTx struct {
	tx *sql.Tx
}

// Create inserts note with its current ContentRef, which is expected to be a
// placeholder, and fills in the generated id and timestamps.
func (t *noteMetadataTx) Create(ctx context.Context, note *models.NoteMetadata) error {
	query := `
		INSERT INTO notes_metadata (user_id, title, content_ref, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := t.tx.QueryRowContext(ctx, query, note.UserID, note.Title, note.ContentRef).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}
	return nil
}

func (t *noteMetadataTx) SetContentRef(ctx context.Context, id uuid.UUID, ref string) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE notes_metadata SET content_ref = $1 WHERE id = $2`, ref, id)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("error setting content ref: %w", err)
	}
	return expectRows(result)
}

// Update sets the title and bumps updated_at of the row matching note.ID and
// note.UserID. The remaining fields of note are filled from the updated row.
func (t *noteMetadataTx) Update(ctx context.Context, note *models.NoteMetadata) error {
	query := `
		UPDATE notes_metadata
		SET title = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND user_id = $3
		RETURNING ` + metadataColumns
	err := scanMetadata(t.tx.QueryRowContext(ctx, query, note.Title, note.ID, note.UserID), note)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error updating note: %w", err)
	}
	return nil
}

// ContentRef looks up and locks the row's content reference.
func (t *noteMetadataTx) ContentRef(ctx context.Context, id uuid.UUID, userID int64) (string, error) {
	var ref string
	query := `SELECT content_ref FROM notes_metadata WHERE id = $1 AND user_id = $2 FOR UPDATE`
	err := t.tx.QueryRowContext(ctx, query, id, userID).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error getting content ref: %w", err)
	}
	return ref, nil
}

func (t *noteMetadataTx) Delete(ctx context.Context, id uuid.UUID, userID int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM notes_metadata WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("error deleting note: %w", err)
	}
	return expectRows(result)
}

func (t *noteMetadataTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (t *noteMetadataTx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("error rolling back transaction: %w", err)
	}
	return nil
}

func expectRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
