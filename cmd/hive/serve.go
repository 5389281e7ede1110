package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchktools/hive/app"
	"github.com/searchktools/hive/config"
	"github.com/searchktools/hive/core/logging"
	"github.com/searchktools/hive/core/process"
)

type serveFlags struct {
	configFile  string
	host        string
	port        int
	processes   int
	workers     int
	eventLoop   string
	logLevel    string
	verbose     bool
	metricsAddr string
	staticDir   string
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo server",
		Long: `Start the demo server. The parent process binds the socket and spawns
--processes workers; each worker re-runs this command and serves the
inherited socket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()

			if process.IsWorker() {
				logger = logger.With(zap.Int("worker", process.WorkerIndex()))
			}

			a := app.New(cfg, logger)
			if err := registerDemo(a, logger, f.staticDir); err != nil {
				return err
			}
			return a.Start(context.Background())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "YAML configuration file")
	flags.StringVar(&f.host, "host", "", "listen host")
	flags.IntVarP(&f.port, "port", "p", 0, "listen port")
	flags.IntVar(&f.processes, "processes", 0, "number of worker processes")
	flags.IntVar(&f.workers, "workers", 0, "concurrency inside each worker")
	flags.StringVar(&f.eventLoop, "event-loop", "", "event loop: auto, uring, poll or std")
	flags.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log below WARN")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve pool metrics on this address")
	flags.StringVar(&f.staticDir, "static", "", "directory mounted under /static")

	return cmd
}

// loadConfig reads the file and environment, then applies the flags the
// user set explicitly
func loadConfig(cmd *cobra.Command, f serveFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = f.port
	}
	if flags.Changed("processes") {
		cfg.Server.Processes = f.processes
	}
	if flags.Changed("workers") {
		cfg.Server.Workers = f.workers
	}
	if flags.Changed("event-loop") {
		cfg.Server.EventLoop = f.eventLoop
	}
	if flags.Changed("log-level") {
		level, err := logging.ParseLevel(f.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = level
	}
	if flags.Changed("verbose") {
		cfg.Logging.EnableVerboseLogs = f.verbose
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
