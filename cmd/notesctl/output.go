package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"notely/internal/client"
	"notely/internal/database/models"

	"gopkg.in/yaml.v3"
)

// noteView is the printed form of a note.
type noteView struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	Content   *string  `json:"content" yaml:"content"`
	Tags      []string `json:"tags" yaml:"tags"`
	CreatedAt string   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt string   `json:"updatedAt" yaml:"updatedAt"`
}

func view(n models.Note) noteView {
	return noteView{
		ID:        n.ID.String(),
		Title:     n.Title,
		Content:   n.Content,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.Format(time.RFC3339),
	}
}

func printNotes(w io.Writer, format string, notes []models.Note) error {
	if format != "table" {
		views := make([]noteView, len(notes))
		for i, n := range notes {
			views[i] = view(n)
		}
		return encode(w, format, views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTAGS\tUPDATED")
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, oneLine(n.Title, 40), client.FormatTags(n.Tags), n.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printDetail(w io.Writer, n models.Note) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", n.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", n.Title)
	fmt.Fprintf(tw, "Tags:\t%s\n", client.FormatTags(n.Tags))
	fmt.Fprintf(tw, "Created:\t%s\n", n.CreatedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(tw, "Updated:\t%s\n", n.UpdatedAt.Local().Format(time.RFC1123))
	if err := tw.Flush(); err != nil {
		return err
	}
	if n.Content == nil {
		_, err := fmt.Fprintln(w, "\n(content unavailable)")
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", *n.Content)
	return err
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s
}
