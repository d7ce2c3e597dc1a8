package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/metrics"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/report"
)

var reportFormats = map[string][]string{
	"csv":      {"csv"},
	"json":     {"json"},
	"markdown": {"md"},
	"all":      {"json", "csv", "md"},
}

func buildConsolidateCommand() *cobra.Command {
	var (
		dir     string
		output  string
		format  string
		pattern string
		onlyOK  bool
		backup  bool
	)

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Build scenario reports from every attempt log in a directory",
		Long: `Consolidate reads every log matching --pattern in --dir, computes one
scenario per log and writes <output>.json, <output>.csv and/or <output>.md
into the same directory. Unreadable or empty logs are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exts, ok := reportFormats[strings.ToLower(format)]
			if !ok {
				return fmt.Errorf("unknown format %q (csv, json, markdown, all)", format)
			}

			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			policy := metrics.LatencyAll
			if onlyOK {
				policy = metrics.LatencyOKOnly
			}
			scenarios, err := report.Consolidate(dir, pattern, policy, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(scenarios) == 0 {
				fmt.Fprintf(out, "No logs matching %s in %s\n", pattern, dir)
				return nil
			}

			fw := report.NewFileWriter(dir, backup)
			now := time.Now()
			for _, ext := range exts {
				path, err := fw.Write(output+"."+ext, renderer(ext, scenarios, now))
				if err != nil {
					return err
				}
				logger.Info("report written", zap.String("path", path))
				fmt.Fprintf(out, "Wrote %s\n", path)
			}

			c := report.Compare(scenarios)
			fmt.Fprintf(out, "%d scenarios consolidated in %s\n", len(scenarios), fw.Dir())
			fmt.Fprintf(out, "Best throughput: %s\n", c.BestThroughput)
			fmt.Fprintf(out, "Best mean latency: %s\n", c.BestLatency)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory holding the attempt logs")
	cmd.Flags().StringVarP(&output, "output", "o", "metricas_consolidadas", "report file name prefix")
	cmd.Flags().StringVarP(&format, "format", "f", "all", "csv, json, markdown or all")
	cmd.Flags().StringVar(&pattern, "pattern", report.DefaultLogPattern, "log file glob")
	cmd.Flags().BoolVar(&onlyOK, "only-ok", false, "latency statistics over OK records only")
	cmd.Flags().BoolVar(&backup, "backup", false, "keep a timestamped copy of replaced reports")

	return cmd
}

func renderer(ext string, scenarios []report.Scenario, now time.Time) func(io.Writer) error {
	switch ext {
	case "json":
		return func(w io.Writer) error { return report.WriteJSON(w, scenarios, now) }
	case "csv":
		return func(w io.Writer) error { return report.WriteCSV(w, scenarios) }
	default:
		return func(w io.Writer) error { return report.WriteMarkdown(w, scenarios) }
	}
}
