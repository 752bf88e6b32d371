package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-arndt/installbench/internal/bench"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the benchmarked tools and scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printTools(os.Stdout)
			return nil
		},
	}
}

func printTools(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tLOCKFILE\tINSTALL")
	for _, t := range bench.DefaultTools() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Lockfile, t.InstallCmd)
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tCACHE\tLOCKFILE\tNODE_MODULES")
	for _, sc := range bench.AllScenarios() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sc.Name, yesNo(sc.HasCache), yesNo(sc.HasLockfile), yesNo(sc.HasNodeModules))
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
