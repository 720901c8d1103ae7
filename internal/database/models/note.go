package models

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NoteMetadata is the relational half of a note.
type NoteMetadata struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"user_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ContentRef string    `json:"content_ref"`
}

// NoteContent is the document half of a note. MetadataID points back at
// the owning NoteMetadata row.
type NoteContent struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MetadataID string             `bson:"pg_id" json:"pg_id"`
	Content    string             `bson:"content" json:"content"`
	Tags       []string           `bson:"tags" json:"tags"`
}

// Ref is the value stored in NoteMetadata.ContentRef.
func (c NoteContent) Ref() string {
	return c.ID.Hex()
}

// Note is the merged view returned to clients. Content is nil when the
// content record could not be found. The mixed key casing is the wire
// format existing clients read.
type Note struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"user_id"`
	Title      string    `json:"title"`
	Content    *string   `json:"content"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	ContentRef string    `json:"mongoNoteId"`
}

// Merge joins a metadata row with its (possibly missing) content record.
func Merge(meta NoteMetadata, content *NoteContent) Note {
	note := Note{
		ID:         meta.ID,
		UserID:     meta.UserID,
		Title:      meta.Title,
		Tags:       []string{},
		CreatedAt:  meta.CreatedAt,
		UpdatedAt:  meta.UpdatedAt,
		ContentRef: meta.ContentRef,
	}
	if content != nil {
		body := content.Content
		note.Content = &body
		if content.Tags != nil {
			note.Tags = content.Tags
		}
	}
	return note
}
