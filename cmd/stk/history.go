package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GChainey/substackToKindle/internal/history"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var subdomain string
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or clear past deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := history.New(opts.cfg.StateDir, opts.cfg.HistoryLimit)
			out := cmd.OutOrStdout()
			if clearAll {
				if err := log.Clear(); err != nil {
					return fmt.Errorf("clear history: %w", err)
				}
				_, _ = fmt.Fprintln(out, "History cleared")
				return nil
			}
			recs, err := log.Records(subdomain)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			if len(recs) == 0 {
				_, _ = fmt.Fprintln(out, "No deliveries yet")
				return nil
			}
			_, _ = fmt.Fprintln(out, historyTable(recs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&subdomain, "subdomain", "s", "", "only show deliveries for this newsletter")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all delivery history")
	return cmd
}
