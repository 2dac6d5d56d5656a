package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/twinrouter/daisen"
	"github.com/sarchlab/twinrouter/tracing"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect a packet trace recorded with --trace-db.",
	Long: "`trace --db trace.sqlite3` serves the trace viewer. " +
		"With --summary, it prints the packets and latencies per router " +
		"instead.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		dbFile, _ := flags.GetString("db")
		if dbFile == "" {
			return errors.New("--db is required")
		}

		reader := tracing.NewSQLiteTraceReader(dbFile)
		if err := reader.Init(); err != nil {
			return err
		}
		defer reader.Close()

		if summary, _ := flags.GetBool("summary"); summary {
			return summarizeTrace(cmd.OutOrStdout(), reader)
		}

		addr, _ := flags.GetString("http")

		return daisen.NewServer(reader).ListenAndServe(addr)
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().String("db", "", "SQLite trace file to read from")
	traceCmd.Flags().String("http", "0.0.0.0:3001",
		"HTTP service address (e.g., ':6060')")
	traceCmd.Flags().Bool("summary", false,
		"Print a summary instead of serving the viewer")
}

func summarizeTrace(out io.Writer, reader daisen.TraceReader) error {
	components, err := reader.ListComponents()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Component\tPackets\tAvg latency\tMax latency")

	for _, c := range components {
		tasks, err := reader.ListTasks(tracing.TaskQuery{Where: c})
		if err != nil {
			return err
		}

		avg, maxLatency := latencies(tasks)
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%d\n", c, len(tasks), avg, maxLatency)
	}

	return w.Flush()
}

func latencies(tasks []tracing.Task) (avg float64, maxLatency uint64) {
	if len(tasks) == 0 {
		return 0, 0
	}

	var sum uint64
	for _, t := range tasks {
		d := uint64(t.EndTime - t.StartTime)
		sum += d
		maxLatency = max(maxLatency, d)
	}

	return float64(sum) / float64(len(tasks)), maxLatency
}
