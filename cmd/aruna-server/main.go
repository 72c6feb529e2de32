package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aruna-project/aruna-server/pkg/alog"
	"github.com/aruna-project/aruna-server/pkg/authz"
	"github.com/aruna-project/aruna-server/pkg/config"
	"github.com/aruna-project/aruna-server/pkg/eventbus"
	"github.com/aruna-project/aruna-server/pkg/graph"
	"github.com/aruna-project/aruna-server/pkg/hooks"
	"github.com/aruna-project/aruna-server/pkg/metrics"
	"github.com/aruna-project/aruna-server/pkg/oidc"
	"github.com/aruna-project/aruna-server/pkg/recordstore"
	"github.com/aruna-project/aruna-server/pkg/requestlayer"
	"github.com/aruna-project/aruna-server/pkg/rlserver"
	"github.com/aruna-project/aruna-server/pkg/txcontroller"
	"github.com/aruna-project/aruna-server/pkg/txlog"
	"github.com/aruna-project/aruna-server/pkg/universe"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "aruna-server",
	Short:   "Aruna — typed property-graph data management service",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("aruna-server version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	serveCmd.Flags().String("config", "", "Path to the YAML config file (required)")
	serveCmd.Flags().String("node-id", "node-1", "Raft node ID")
	serveCmd.Flags().String("bind-addr", "127.0.0.1:9091", "Raft transport bind address")
	serveCmd.Flags().String("rl-addr", "127.0.0.1:9092", "Request-layer gRPC bind address")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics/health HTTP bind address")
	_ = serveCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	alog.Init(alog.Config{
		Level:      alog.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a single Aruna node: RS/GS/UI/L/TC/AZ/EB/HE plus the RL gRPC and metrics surfaces",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	rlAddr, _ := cmd.Flags().GetString("rl-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.NodeID == "" {
		cfg.NodeID = nodeID
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = bindAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := alog.WithComponent("aruna-server")

	// RS: union every component's keyspaces into one recordstore.
	keyspaces := append([]string{}, graph.Keyspaces()...)
	keyspaces = append(keyspaces, universe.Keyspaces()...)
	keyspaces = append(keyspaces, eventbus.Keyspaces()...)
	keyspaces = append(keyspaces, txcontroller.Keyspaces()...)
	keyspaces = append(keyspaces, txlog.Keyspaces()...)
	keyspaces = append(keyspaces, hooks.Keyspaces()...)

	rs, err := recordstore.Open(cfg.DataDir, keyspaces)
	if err != nil {
		return fmt.Errorf("open recordstore: %w", err)
	}
	log.Info().Str("data_dir", cfg.DataDir).Msg("recordstore opened")

	gs := graph.New(rs)
	ui := universe.New(rs)
	az := authz.New(gs, ui)

	tc, err := txcontroller.Bootstrap(txcontroller.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.BindAddr,
		DataDir:  cfg.LogDir,
	}, rs, gs, ui)
	if err != nil {
		return fmt.Errorf("bootstrap transaction controller: %w", err)
	}
	log.Info().Str("node_id", cfg.NodeID).Msg("transaction controller bootstrapped")

	logStore, err := txlog.Open(cfg.LogDir, rs)
	if err != nil {
		return fmt.Errorf("open transaction log: %w", err)
	}

	bus := eventbus.New(rs, gs, logStore, eventbus.Config{
		ReplySecret:    []byte(cfg.ReplySecret),
		BufferCapacity: int(cfg.StreamBufferMax),
	})
	bus.Start()
	log.Info().Msg("event bus started")

	engine := hooks.New(rs, gs, tc, bus, hooks.Config{
		WorkerCount:    int(cfg.HookWorkerCount),
		DefaultTimeout: cfg.HookTimeout,
	})
	if err := engine.Start(); err != nil {
		return fmt.Errorf("start hook engine: %w", err)
	}
	log.Info().Int("workers", int(cfg.HookWorkerCount)).Msg("hook engine started")

	issuers, err := cfg.OIDCIssuers()
	if err != nil {
		return fmt.Errorf("resolve oidc issuers: %w", err)
	}
	verifier, err := oidc.New(issuers)
	if err != nil {
		return fmt.Errorf("build oidc verifier: %w", err)
	}

	layer := requestlayer.New(rs, gs, ui, az, verifier, tc)

	// Health + metrics.
	metrics.SetVersion(Version)
	metrics.RegisterComponent("tc", true, "bootstrapped")
	metrics.RegisterComponent("recordstore", true, "open")
	metrics.RegisterComponent("eventbus", true, "started")

	collector := metrics.NewCollector(tc, engine)
	collector.Start()

	hs := rlserver.New()
	hs.SetServing("recordstore", true)
	hs.SetServing("eventbus", true)
	hs.WatchLeader(tc)

	errCh := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	log.Info().Str("addr", metricsAddr).Msg("metrics/health server listening")

	go func() {
		if err := hs.Start(rlAddr); err != nil {
			errCh <- fmt.Errorf("rlserver: %w", err)
		}
	}()

	_ = layer // the RL gRPC write/read surface is wired by an external
	// protobuf service definition (spec.md §1 Non-goal); rlserver only
	// exposes health/v1 for this process — Layer is held here for a future
	// generated-stub service to drive.

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal error, shutting down")
	}

	hs.Stop()
	collector.Stop()
	engine.Stop()
	bus.Stop()
	if err := tc.Shutdown(); err != nil {
		log.Error().Err(err).Msg("transaction controller shutdown error")
	}

	log.Info().Msg("shutdown complete")
	return nil
}
