package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"blister-inspector/internal/infrastructure/storage"
)

func newInspectionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspections",
		Short: "Print the latest inspections and verdict counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabasePath == "" {
				return errors.New("DATABASE_PATH is not set")
			}
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			db, err := storage.OpenSQLite(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			recent, err := db.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			stats, err := db.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DECIDED\tVERDICT\tCONFIDENCE\tCOMMAND\tUNAVAILABLE\tID")
			for _, i := range recent {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%t\t%s\n",
					i.DecidedAt.Local().Format(time.DateTime), i.Verdict.Class, i.Verdict.Confidence,
					i.Command, i.Unavailable, i.ID)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\ntotal %d  good %d  bad %d  none %d  unavailable %d\n",
				stats.Total, stats.Good, stats.Bad, stats.None, stats.Unavailable)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of inspections to print")
	return cmd
}
