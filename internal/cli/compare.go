package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/metrics"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/report"
)

func buildCompareCommand() *cobra.Command {
	var onlyOK bool

	cmd := &cobra.Command{
		Use:   "compare <log-a> <log-b>",
		Short: "Compare two attempt logs",
		Long:  `Compare prints a Markdown table of both scenarios plus the change of throughput and mean latency of the second relative to the first.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := metrics.LatencyAll
			if onlyOK {
				policy = metrics.LatencyOKOnly
			}
			scenarios := make([]report.Scenario, 0, len(args))
			for _, path := range args {
				s, err := report.LoadScenario(path, policy)
				if err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
				scenarios = append(scenarios, s)
			}
			return report.WriteMarkdown(cmd.OutOrStdout(), scenarios)
		},
	}

	cmd.Flags().BoolVar(&onlyOK, "only-ok", false, "latency statistics over OK records only")
	return cmd
}
