package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/metrics"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/report"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/storage/attemptlog"
)

func buildAnalyzeCommand() *cobra.Command {
	var (
		logPath   string
		operation string
		onlyOK    bool
		csvPath   string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute throughput and latency for one attempt log",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := attemptlog.ReadFile(logPath)
			if err != nil {
				return err
			}

			scope := "ALL"
			if operation != "" {
				records = metrics.FilterOperation(records, operation)
				scope = strings.ToUpper(operation)
			}
			policy := metrics.LatencyAll
			if onlyOK {
				policy = metrics.LatencyOKOnly
			}

			m, err := metrics.ComputeByOperation(records, policy)
			if errors.Is(err, metrics.ErrNoData) {
				fmt.Fprintf(cmd.OutOrStdout(), "No records in %s\n", logPath)
				return nil
			}
			if err != nil {
				return err
			}

			title := fmt.Sprintf("%s-%s-onlyOK=%t", report.ScenarioName(logPath), scope, onlyOK)
			out := cmd.OutOrStdout()
			printMetrics(out, title, m)
			for _, op := range sortedOperations(m) {
				printMetrics(out, fmt.Sprintf("%s-%s", title, op), m.ByOperation[op])
			}

			if csvPath != "" {
				if err := appendCSVRow(csvPath, report.Scenario{Name: title, Metrics: m}); err != nil {
					return err
				}
				fmt.Fprintf(out, "Appended to %s\n", csvPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logPath, "log", "l", "ps_logs.txt", "attempt log to analyse")
	cmd.Flags().StringVar(&operation, "operation", "", "only records of this operation")
	cmd.Flags().BoolVar(&onlyOK, "only-ok", false, "latency statistics over OK records only")
	cmd.Flags().StringVar(&csvPath, "csv", "", "append the result as a row to this CSV file")

	return cmd
}

func printMetrics(w io.Writer, title string, m *metrics.ScenarioMetrics) {
	fmt.Fprintf(w, "== %s ==\n", title)
	fmt.Fprintf(w, "Total: %d (OK=%d ERROR=%d TIMEOUT=%d)\n", m.Total, m.OK, m.Error, m.Timeout)
	fmt.Fprintf(w, "Period: %.2fs TPS≈ %.2f\n", m.PeriodSeconds, m.Throughput)
	fmt.Fprintf(w, "Latency [s]: mean=%.3f p50=%.3f p95=%.3f max=%.3f\n",
		m.LatencyMean, m.LatencyP50, m.LatencyP95, m.LatencyMax)
}

func sortedOperations(m *metrics.ScenarioMetrics) []string {
	ops := make([]string, 0, len(m.ByOperation))
	for op := range m.ByOperation {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// appendCSVRow appends one row, writing the header only when the file is new.
func appendCSVRow(path string, s report.Scenario) error {
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create csv directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	if isNew {
		err = report.WriteCSV(f, []report.Scenario{s})
	} else {
		err = report.AppendCSV(f, []report.Scenario{s})
	}
	if err != nil {
		return err
	}
	return f.Sync()
}
