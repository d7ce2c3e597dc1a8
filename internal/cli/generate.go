package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/generator"
)

func buildGenerateCommand() *cobra.Command {
	var (
		n    int
		seed int64
		mix  string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a signed request batch file",
		Long:  `Generate N signed envelopes with a weighted operation mix (e.g. --mix 70:30) and write them to a batch file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := generator.Options{
				N:            cfg.Generator.N,
				Seed:         cfg.Generator.Seed,
				Mix:          cfg.Generator.Mix,
				TargetRange:  generator.Range{Min: 1, Max: cfg.Generator.TargetMax},
				SubjectRange: generator.Range{Min: 1, Max: cfg.Generator.SubjectMax},
			}
			if cmd.Flags().Changed("n") {
				opts.N = n
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = &seed
			}
			if cmd.Flags().Changed("mix") {
				opts.Mix = mix
			}
			path := cfg.Generator.BatchFile
			if cmd.Flags().Changed("out") {
				path = out
			}

			batch, err := generator.GenerateBatch(newCodec(cfg), opts)
			if err != nil {
				return err
			}
			if err := generator.WriteBatchFile(path, batch); err != nil {
				return err
			}

			counts := make(map[string]int)
			for _, env := range batch {
				counts[string(env.Operation)]++
			}
			logger.Info("batch generated", zap.Int("n", len(batch)), zap.String("mix", opts.Mix), zap.Any("operations", counts))
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d requests -> %s\n", len(batch), path)
			return nil
		},
	}

	cmd.Flags().IntVar(&n, "n", 25, "number of requests")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (reproducible batches)")
	cmd.Flags().StringVar(&mix, "mix", "50:50", "operation weights, e.g. 70:30")
	cmd.Flags().StringVarP(&out, "out", "o", "solicitudes.bin", "batch file path")

	return cmd
}
