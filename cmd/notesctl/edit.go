package main

import (
	"notely/internal/client"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change the title, content or tags of a note",
	Long: `Edit fetches the note, applies only the flags that were given and
sends the result back. Fields without a flag keep their current value.`,
	Args: cobra.ExactArgs(1),
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

		var edit client.Edit
		flags := cmd.Flags()
		if flags.Changed("title") {
			edit.Title = &noteTitle
		}
		if flags.Changed("content") {
			edit.Content = &noteContent
		}
		if flags.Changed("tags") {
			edit.Tags = &noteTags
		}

		draft := client.DraftFrom(note).Apply(edit)
		if err := draft.Validate(); err != nil {
			return err
		}
		updated, err := c.UpdateNote(id, draft.Input())
		if err != nil {
			return err
		}
		return printNote(cmd.OutOrStdout(), output, updated)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVarP(&noteTitle, "title", "t", "", "New title")
	editCmd.Flags().StringVarP(&noteContent, "content", "c", "", "New content")
	editCmd.Flags().StringVar(&noteTags, "tags", "", "New comma separated tags (empty clears them)")
}
