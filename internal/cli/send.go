package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/config"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/controller"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/generator"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/metrics"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/storage/attemptlog"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/transport"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/worker"
)

type sendOptions struct {
	batch       string
	addr        string
	timeout     float64
	backoff     string
	logPath     string
	workers     int
	metricsPort int
}

func buildSendCommand() *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a batch to the gateway",
		Long: `Send every envelope of a batch file to the gateway over a ZeroMQ REQ socket.
Each request waits up to --timeout for a reply; on timeout the socket is
recreated and the request resent after the next --backoff wait. One line per
request is appended to the attempt log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := applySendFlags(cmd, cfg, &opts); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSend(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.batch, "batch", "b", "solicitudes.bin", "batch file to send")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "gateway endpoint (overrides GC_ADDR)")
	cmd.Flags().Float64Var(&opts.timeout, "timeout", 2.0, "reply timeout in seconds")
	cmd.Flags().StringVar(&opts.backoff, "backoff", "0.5,1,2,4", "comma-separated backoff waits in seconds")
	cmd.Flags().StringVar(&opts.logPath, "log", "ps_logs.txt", "attempt log path")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 1, "concurrent workers, each with its own socket")
	cmd.Flags().IntVar(&opts.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 = config)")

	return cmd
}

// applySendFlags copies explicitly set flags over cfg.
func applySendFlags(cmd *cobra.Command, cfg *config.Config, opts *sendOptions) error {
	flags := cmd.Flags()
	if flags.Changed("batch") {
		cfg.Generator.BatchFile = opts.batch
	}
	if flags.Changed("addr") {
		cfg.Gateway.Address = opts.addr
	}
	if flags.Changed("timeout") {
		if opts.timeout <= 0 {
			return fmt.Errorf("invalid --timeout %v", opts.timeout)
		}
		cfg.Gateway.Timeout = time.Duration(opts.timeout * float64(time.Second))
	}
	if flags.Changed("backoff") {
		b, err := config.ParseBackoff(opts.backoff)
		if err != nil {
			return fmt.Errorf("invalid --backoff: %w", err)
		}
		cfg.Gateway.Backoff = b
	}
	if flags.Changed("log") {
		cfg.Log.Path = opts.logPath
	}
	if flags.Changed("workers") {
		if opts.workers < 1 {
			return fmt.Errorf("invalid --workers %d", opts.workers)
		}
		cfg.Worker.Count = opts.workers
	}
	if flags.Changed("metrics-port") && opts.metricsPort > 0 {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = opts.metricsPort
	}
	return nil
}

func runSend(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	batch, err := generator.ReadBatchFile(cfg.Generator.BatchFile)
	if err != nil {
		return err
	}

	var logOpts []attemptlog.Option
	if cfg.Log.Sync {
		logOpts = append(logOpts, attemptlog.WithSync())
	}
	recorder, err := attemptlog.Open(cfg.Log.Path, logOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error("closing attempt log", zap.Error(err))
		}
	}()

	codec := newCodec(cfg)
	dialer := transport.ZMQDialer{Endpoint: cfg.Gateway.Address}
	clientCfg := transport.Config{
		Timeout: cfg.Gateway.Timeout,
		Backoff: cfg.Gateway.Backoff,
		Wire: transport.WireFormat{
			TargetPrefix:     cfg.Gateway.TargetPrefix,
			IncludeSignature: cfg.Gateway.IncludeSignature,
		},
	}

	runnerOpts := []controller.Option{
		controller.WithLogger(logger),
		controller.WithBufferSize(cfg.Worker.BufferSize),
	}
	var observer transport.Observer
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		observer = collector
		runnerOpts = append(runnerOpts, controller.WithQueueStats(collector))

		metricsCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := metrics.StartServer(metricsCtx, cfg.Metrics.Port); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		logger.Info("metrics available", zap.Int("port", cfg.Metrics.Port))
	}

	factory := func(id int) worker.Sender {
		clientOpts := []transport.ClientOption{transport.WithLogger(logger.With(zap.Int("worker", id)))}
		if observer != nil {
			clientOpts = append(clientOpts, transport.WithObserver(observer))
		}
		return transport.NewClient(dialer, codec, clientCfg, clientOpts...)
	}
	runner := controller.NewRunner(factory, recorder, runnerOpts...)

	logger.Info("sending batch",
		zap.String("gateway", cfg.Gateway.Address),
		zap.Int("requests", len(batch)),
		zap.Int("workers", cfg.Worker.Count),
		zap.Duration("timeout", cfg.Gateway.Timeout),
		zap.Durations("backoff", cfg.Gateway.Backoff))

	var summary controller.Summary
	if cfg.Worker.Count > 1 {
		summary, err = runner.RunPooled(ctx, batch, cfg.Worker.Count)
	} else {
		summary, err = runner.RunSequential(ctx, batch)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "PS summary: %s\n", summary)
	fmt.Fprintf(cmd.OutOrStdout(), "Attempt log: %s\n", cfg.Log.Path)

	if errors.Is(err, context.Canceled) {
		logger.Warn("interrupted", zap.Int("aborted", summary.Aborted))
		return nil
	}
	return err
}
