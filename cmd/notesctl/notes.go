package main

import (
	"fmt"
	"io"

	"notely/internal/client"
	"notely/internal/database/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	noteTitle   string
	noteContent string
	noteTags    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notes, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		list, err := c.ListNotes()
		if err != nil {
			return err
		}
		return printNotes(cmd.OutOrStdout(), output, list)
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := authedClient()
		if err != nil {
			return err
		}
		note, err := c.GetNote(id)
		if err != nil {
			return err
		}
		return printNote(cmd.OutOrStdout(), output, note)
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		draft := client.Draft{Title: noteTitle, Content: noteContent, Tags: client.ParseTags(noteTags)}
		if err := draft.Validate(); err != nil {
			return err
		}
		c, err := authedClient()
		if err != nil {
			return err
		}
		note, err := c.CreateNote(draft.Input())
		if err != nil {
			return err
		}
		return printNote(cmd.OutOrStdout(), output, note)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := authedClient()
		if err != nil {
			return err
		}
		if err := c.DeleteNote(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note deleted: %s\n", id)
		return nil
	},
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid note id %q", s)
	}
	return id, nil
}

func printNote(w io.Writer, format string, note models.Note) error {
	if format == "table" {
		return printDetail(w, note)
	}
	return encode(w, format, view(note))
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, createCmd, deleteCmd)

	createCmd.Flags().StringVarP(&noteTitle, "title", "t", "", "Note title")
	createCmd.Flags().StringVarP(&noteContent, "content", "c", "", "Note content")
	createCmd.Flags().StringVar(&noteTags, "tags", "", "Comma separated tags")
}
