package dto

import "github.com/google/uuid"

// NoteInput is the body of note create and update requests. Tags is nil
// when the field is absent or null.
type NoteInput struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Tags    *[]string `json:"tags"`
}

type Message struct {
	Msg string `json:"msg"`
}

type DeleteResponse struct {
	Msg string    `json:"msg"`
	ID  uuid.UUID `json:"id"`
}
