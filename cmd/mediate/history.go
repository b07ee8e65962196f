package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		conversationID string
		limit          int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), conversationID, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tCONVERSATION\tEMOTION\tCONFLICT\tRESOLUTION\tSEVERITY\tNEXT ACTIONS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.ConversationID,
					e.DominantEmotion,
					e.ConflictLevel,
					e.ResolutionPotential,
					e.Severity,
					strings.Join(e.NextActions, ","),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "only this conversation")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}
