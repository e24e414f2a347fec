package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline run history and embedding backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.ListRuns(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tSTATUS\tSTARTED\tROWS\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					r.Stage, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"),
					r.RowsWritten, r.Error)
			}
			w.Flush()
		}

		pending, err := s.CountNarrativesMissingEmbedding(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nNarratives awaiting embedding: %d\n", pending)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
