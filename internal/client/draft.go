package client

import (
	"errors"
	"strings"

	"notely/internal/database/dto"
	"notely/internal/database/models"
)

var ErrEmptyDraft = errors.New("please enter a title and content for your note")

// Draft is a note being edited locally before it is sent.
type Draft struct {
	Title   string
	Content string
	Tags    []string
}

// Edit holds the fields a user changed; nil fields keep the draft's value.
// Tags is the comma separated form typed by the user.
type Edit struct {
	Title   *string
	Content *string
	Tags    *string
}

func DraftFrom(note models.Note) Draft {
	d := Draft{Title: note.Title, Tags: append([]string{}, note.Tags...)}
	if note.Content != nil {
		d.Content = *note.Content
	}
	return d
}

func (d Draft) Apply(e Edit) Draft {
	if e.Title != nil {
		d.Title = *e.Title
	}
	if e.Content != nil {
		d.Content = *e.Content
	}
	if e.Tags != nil {
		d.Tags = ParseTags(*e.Tags)
	}
	return d
}

func (d Draft) Validate() error {
	if d.Title == "" || d.Content == "" {
		return ErrEmptyDraft
	}
	return nil
}

// Input always carries tags, since the API rejects an update without them.
func (d Draft) Input() dto.NoteInput {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.NoteInput{Title: d.Title, Content: d.Content, Tags: &tags}
}

// ParseTags splits comma separated tags, trimming each and dropping empty
// ones. Order and duplicates are kept.
func ParseTags(s string) []string {
	tags := []string{}
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func FormatTags(tags []string) string {
	return strings.Join(tags, ", ")
}
