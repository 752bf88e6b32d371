package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/session"
	"github.com/p-arndt/installbench/internal/store"
)

func historyCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one run in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			st, err := store.New(cfg.DBPath, 1)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()
			// Reading history never boots a sandbox, so no runner is wired.
			mgr := session.NewManager(nil, bench.NewReporter(logger), bench.NewResultSet(), st, logger)

			if len(args) == 1 {
				detail, err := mgr.Get(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeReport(os.Stdout, detail)
				}
				printRunHeader(detail.RunInfo)
				printSummary(os.Stdout, detail.Results)
				return nil
			}

			runs, err := mgr.History(limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			printRuns(runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printRunHeader(r session.RunInfo) {
	fmt.Printf("run %s  %s  %s\n", r.ID, r.Package, r.Status)
	if r.Error != "" {
		fmt.Println(errorColor.Sprint(r.Error))
	}
	fmt.Println()
}

func printRuns(runs []session.RunInfo) {
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPACKAGE\tSTATUS\tSTARTED\tDURATION")
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Package, r.Status, r.StartedAt.Local().Format(time.DateTime), dur)
	}
	tw.Flush()
}
