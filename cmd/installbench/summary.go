package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/p-arndt/installbench/internal/bench"
)

// printSummary writes a tool by scenario duration table followed by the
// averages and the reasons failed runs were excluded.
func printSummary(w io.Writer, results []bench.TestResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}

	var tools, scenarios []string
	cells := make(map[[2]string]bench.TestResult)
	seenTool := make(map[string]bool)
	seenScenario := make(map[string]bool)
	for _, r := range results {
		if !seenTool[r.Tool] {
			seenTool[r.Tool] = true
			tools = append(tools, r.Tool)
		}
		if !seenScenario[r.Scenario] {
			seenScenario[r.Scenario] = true
			scenarios = append(scenarios, r.Scenario)
		}
		cells[[2]string{r.Tool, r.Scenario}] = r
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "TOOL")
	for _, sc := range scenarios {
		fmt.Fprintf(tw, "\t%s", sc)
	}
	fmt.Fprintln(tw)
	for _, tool := range tools {
		fmt.Fprint(tw, tool)
		for _, sc := range scenarios {
			fmt.Fprintf(tw, "\t%s", formatCell(cells[[2]string{tool, sc}]))
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()

	agg := bench.Aggregate(results)
	if len(agg) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TOOL\tAVG\tPER PACKAGE\tPACKAGES\tRUNS")
		for _, a := range agg {
			fmt.Fprintf(tw, "%s\t%.0fms\t%.2fms\t%d\t%d\n",
				a.Tool, a.AvgDurationMs, a.AvgPerPackageTimeMs, a.AvgPackageCount, a.Runs)
		}
		tw.Flush()
	}

	for _, f := range bench.FailureSummary(results) {
		fmt.Fprintf(w, "%s %s\n", errorColor.Sprintf("%s excluded:", f.Tool), strings.Join(f.Reasons, "; "))
	}
}

func formatCell(r bench.TestResult) string {
	switch {
	case r.Tool == "":
		return "-"
	case !r.Success:
		return "failed"
	default:
		return fmt.Sprintf("%dms", r.DurationMs)
	}
}
