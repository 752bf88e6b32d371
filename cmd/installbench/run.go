package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/session"
	"github.com/p-arndt/installbench/internal/store"
)

func runCmd() *cobra.Command {
	var (
		tools     []string
		scenarios []string
		asJSON    bool
		backend   string
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "run <package>",
		Short: "Run the benchmark matrix for one npm package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(backend)
			if err != nil {
				return err
			}
			if len(tools) == 0 {
				tools = cfg.Bench.Tools
			}
			if len(scenarios) == 0 {
				scenarios = cfg.Bench.Scenarios
			}

			eng, err := newEngine(cfg, logger, engineOpts{history: !noHistory})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				eng.shutdown(shutdownCtx)
			}()

			if !asJSON {
				eng.reporter.OnLog(func(e bench.LogEntry) {
					printEntry(os.Stdout, e)
				})
			}

			detail, err := eng.manager.Run(ctx, session.StartOpts{
				Package:   args[0],
				Tools:     tools,
				Scenarios: scenarios,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeReport(os.Stdout, detail)
			}
			fmt.Println()
			printSummary(os.Stdout, detail.Results)
			if detail.Status != store.StatusCompleted {
				return fmt.Errorf("run %s %s", detail.ID, detail.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tools, "tools", nil, "tools to benchmark (default: all)")
	cmd.Flags().StringSliceVar(&scenarios, "scenarios", nil, "scenarios to run, e.g. clean,cache+lockfile (default: all eight)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().StringVar(&backend, "backend", "", "sandbox backend (docker or local); overrides config")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the history database")
	return cmd
}

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
)

// printEntry renders one log entry the way the live log panel does.
func printEntry(w io.Writer, e bench.LogEntry) {
	ts := dimColor.Sprint(e.Timestamp.Local().Format("15:04:05"))
	msg := e.Message
	switch e.Level {
	case bench.LevelSuccess:
		msg = successColor.Sprint(msg)
	case bench.LevelError:
		msg = errorColor.Sprint(msg)
	}
	fmt.Fprintf(w, "%s %s\n", ts, msg)
}

// report is the --json output of run and history.
type report struct {
	Run       session.RunInfo          `json:"run"`
	Results   []bench.TestResult       `json:"results"`
	Aggregate []bench.AggregatedResult `json:"aggregate"`
	Excluded  []bench.ToolFailures     `json:"excluded"`
}

func newReport(d *session.RunDetail) report {
	r := report{
		Run:       d.RunInfo,
		Results:   d.Results,
		Aggregate: bench.Aggregate(d.Results),
		Excluded:  bench.FailureSummary(d.Results),
	}
	if r.Results == nil {
		r.Results = []bench.TestResult{}
	}
	if r.Aggregate == nil {
		r.Aggregate = []bench.AggregatedResult{}
	}
	if r.Excluded == nil {
		r.Excluded = []bench.ToolFailures{}
	}
	return r
}

func writeReport(w io.Writer, d *session.RunDetail) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newReport(d))
}
