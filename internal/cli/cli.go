// ============================================================================
// PS CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: cobra commands for the requesting process (PS)
//
// Command Structure:
//   ps                             # Root command
//   ├── generate                   # Build a signed batch file
//   ├── send                       # Send a batch to the gateway, log every request
//   ├── analyze                    # Throughput/latency of one log
//   ├── consolidate                # Reports over every log in a directory
//   ├── compare <a> <b>            # Two-scenario comparison
//   ├── verify                     # Check an envelope's signature and freshness
//   ├── --config, -c               # YAML config file (default: configs/ps.yaml)
//   └── --log-level                # debug, info, warn, error
//
// Configuration:
//   Flags override the config file, which overrides built-in defaults.
//   Environment overrides (SECRET_KEY, GC_ADDR, PS_TIMEOUT, PS_BACKOFF,
//   PS_FRESHNESS, PS_LOG, NUM_SOLICITUDES) apply on top of the file.
//
// Signal Handling:
//   send stops on SIGINT/SIGTERM: the envelope in flight is abandoned
//   without a record, the log is closed whole, the summary is printed.
//
// ============================================================================

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/config"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/envelope"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/logging"
)

var (
	configFile string
	logLevel   string
)

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ps",
		Short: "PS: library request client",
		Long: `PS signs library requests, sends them to the load-balancing gateway
over ZeroMQ with retries, and analyses the resulting attempt logs:
- HMAC-SHA256 signed envelopes
- timeout, backoff and socket recovery
- append-only attempt log
- throughput and latency reports`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/ps.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(buildGenerateCommand())
	rootCmd.AddCommand(buildSendCommand())
	rootCmd.AddCommand(buildAnalyzeCommand())
	rootCmd.AddCommand(buildConsolidateCommand())
	rootCmd.AddCommand(buildCompareCommand())
	rootCmd.AddCommand(buildVerifyCommand())

	return rootCmd
}

// loadConfig loads and validates the configuration file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level)
}

func newCodec(cfg *config.Config) *envelope.Codec {
	return envelope.NewCodec([]byte(cfg.Security.Secret), cfg.Operations())
}
