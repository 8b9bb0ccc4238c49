package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cchalm/gpt-cli/internal/transcript"
)

func newHistoryCmd(a *app) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the saved transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.transcriptStore()
			if err != nil {
				return err
			}
			msgs, err := store.Load()
			if err != nil {
				return err
			}
			if markdown {
				return transcript.RenderMarkdown(cmd.OutOrStdout(), msgs)
			}
			for _, m := range msgs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render the transcript as markdown")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.transcriptStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			a.logger.WithField("history", store.Path()).Info("transcript cleared")
			return nil
		},
	}
}
