package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"theragraph/internal/chain"
	"theragraph/internal/config"
	"theragraph/internal/indexer"
	"theragraph/internal/metrics"
	"theragraph/internal/model"
	"theragraph/internal/publisher"
	"theragraph/internal/retry"
	"theragraph/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Contract event indexer and publisher",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFile(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll contracts and publish decoded events",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "chain RPC URL")
	runCmd.Flags().Uint64("chain-id", 0, "expected chain id, 0 skips the check")
	runCmd.Flags().Uint64("start-block", 9903816, "first block when a contract has no checkpoint")
	runCmd.Flags().Duration("poll-interval", 2*time.Second, "delay between polls")
	runCmd.Flags().Uint64("batch-size", 1000, "blocks per batch")
	runCmd.Flags().Int("rpc-max-retries", 3, "attempts per RPC call")
	runCmd.Flags().Duration("rpc-retry-delay", 500*time.Millisecond, "initial RPC retry backoff")
	runCmd.Flags().Duration("rpc-timeout", 30*time.Second, "timeout per RPC call")
	runCmd.Flags().Duration("error-backoff", 5*time.Second, "delay before retrying a failed batch")
	runCmd.Flags().String("contracts", config.DefaultContracts, "monitored contracts as name=address[:type], comma-separated")
	addStoreFlags(runCmd)
	runCmd.Flags().Bool("kafka-enabled", true, "publish to kafka")
	runCmd.Flags().String("kafka-brokers", "kafka:29092", "kafka bootstrap servers")
	runCmd.Flags().String("kafka-client-id", "theragraph-engine", "kafka client id")
	runCmd.Flags().Int("kafka-send-max-attempts", 5, "attempts per kafka send")
	runCmd.Flags().Duration("kafka-flush-timeout", 5*time.Second, "flush timeout on shutdown")
	runCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "time to wait for pollers on shutdown")
	runCmd.Flags().String("metrics-addr", ":9102", "metrics and health listen address, empty disables")
	runCmd.Flags().String("archive-logs", "", "append fetched raw logs to this JSONL file for later decode runs")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Replay raw log JSONL through the event parser",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/events.jsonl", "output parsed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "unreadable lines JSONL")
	decodeCmd.Flags().String("fallback-type", "friends", "contract type for unknown events")

	root.AddCommand(decodeCmd)
	root.AddCommand(newCheckpointCmd())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("checkpoint-driver", config.DriverPostgres, "checkpoint store (postgres, sqlite, file)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("sqlite-path", "./data/checkpoints.db", "SQLite checkpoint database")
	cmd.Flags().String("checkpoint-file", "./data/checkpoints.json", "JSON checkpoint file")
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	targets := make([]indexer.Target, 0, len(cfg.Contracts))
	for _, contract := range cfg.Contracts {
		target, err := indexer.NewTarget(contract.Name, contract.Address, contract.Type)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	if err := checkChainID(ctx, chainClient, cfg.ChainID, logger); err != nil {
		return err
	}

	pub, err := publisher.New(publisherConfig(cfg.Kafka), logger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer pub.Close(cfg.Kafka.FlushTimeout)

	coordinator, err := indexer.NewCoordinator(targets, indexer.Config{
		StartBlock:   cfg.StartBlock,
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		ErrorBackoff: cfg.ErrorBackoff,
		RPCRetry:     retry.Config{MaxAttempts: cfg.RPCMaxRetries, InitialDelay: cfg.RPCRetryDelay},
	}, chainClient, store, pub, logger)
	if err != nil {
		return err
	}

	if cfg.ArchiveLogs != "" {
		coordinator.SetArchive(storage.NewJSONLSink[model.LogRecord](cfg.ArchiveLogs))
	}

	metricsServer := metrics.NewServer(cfg.MetricsAddr, func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			metrics.ComponentHealthSet("checkpoint_store", false)
			return fmt.Errorf("checkpoint store: %w", err)
		}
		metrics.ComponentHealthSet("checkpoint_store", true)
		if !pub.IsHealthy() {
			metrics.ComponentHealthSet("kafka", false)
			return fmt.Errorf("kafka producer backlog too large")
		}
		metrics.ComponentHealthSet("kafka", true)
		return coordinator.Healthy()
	}, logger)
	if err := metricsServer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Stop(stopCtx); err != nil {
			logger.Warn("metrics server stop failed", zap.Error(err))
		}
	}()

	logger.Info("indexer start",
		zap.String("rpc", config.MaskURL(cfg.RPCURL)),
		zap.Int("contracts", len(targets)),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("checkpoint_driver", cfg.Store.Driver),
		zap.Bool("kafka_enabled", pub.Enabled()),
		zap.String("archive_logs", cfg.ArchiveLogs),
	)

	done := make(chan error, 1)
	go func() { done <- coordinator.Run(ctx) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		logger.Info("shutdown signal received", zap.Duration("timeout", cfg.ShutdownTimeout))
		select {
		case err = <-done:
		case <-time.After(cfg.ShutdownTimeout):
			logger.Warn("indexers did not stop before the shutdown timeout")
		}
	}

	stats := pub.Stats()
	logger.Info("indexer stopped",
		zap.Uint64("messages_sent", stats.MessagesSent),
		zap.Uint64("messages_failed", stats.MessagesFailed),
		zap.Uint64("in_flight", stats.InFlight),
	)
	return err
}

func checkChainID(ctx context.Context, client *chain.Client, expected uint64, logger *zap.Logger) error {
	chainID, err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond}, "get_chain_id", client.ChainID)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	if expected != 0 && chainID.Uint64() != expected {
		return fmt.Errorf("rpc serves chain %d, expected %d", chainID.Uint64(), expected)
	}
	logger.Info("connected to chain", zap.Uint64("chain_id", chainID.Uint64()))
	return nil
}

func publisherConfig(cfg config.KafkaConfig) publisher.Config {
	return publisher.Config{
		Enabled:               cfg.Enabled,
		Brokers:               cfg.Brokers,
		ClientID:              cfg.ClientID,
		TopicUserActions:      cfg.TopicUserActions,
		TopicBlockchainEvents: cfg.TopicBlockchainEvents,
		Acks:                  cfg.Acks,
		Idempotence:           cfg.Idempotence,
		Compression:           cfg.Compression,
		BatchSize:             cfg.BatchSize,
		Linger:                cfg.Linger,
		MessageTimeout:        cfg.MessageTimeout,
		DeliveryTimeout:       cfg.DeliveryTimeout,
		MaxMessageBytes:       cfg.MaxMessageBytes,
		SendMaxAttempts:       cfg.SendMaxAttempts,
		SendBackoff:           cfg.SendBackoff,
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
