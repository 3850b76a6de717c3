package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSegmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "segments",
		Short: "List the committed segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer db.Close()

			segs := db.Store().Segments()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPATH\tROWS\tSIZE")
			var rows uint64
			var size int64
			for _, s := range segs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Path, humanize.Comma(int64(s.Rows)), humanize.IBytes(uint64(s.Size)))
				rows += s.Rows
				size += s.Size
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d segments, %s rows, %s (manifest version %d)\n",
				len(segs), humanize.Comma(int64(rows)), humanize.IBytes(uint64(size)), db.Store().Version())
			return nil
		},
	}
}

func newCompactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Merge all segments into one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx, false)
			if err != nil {
				return err
			}
			defer db.Close()

			before := len(db.Store().Segments())
			if err := db.Compact(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compacted %d segments into %d\n", before, len(db.Store().Segments()))
			return nil
		},
	}
}
