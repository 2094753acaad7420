package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/chain"
	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/logging"
	"github.com/ahwlsqja/proofchain/metrics"
	"github.com/ahwlsqja/proofchain/sink"
)

// app carries the state shared by every subcommand once the root pre-run has finished.
type app struct {
	configFile string

	cfg    *appConfig
	logger *zap.Logger
	files  *sink.FileSink
	sink   sink.Sink
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "proofchaind",
		Short: "Pluggable block finalization engine",
		Long: `proofchaind runs a single chain whose finalization algorithm can be swapped at runtime.

Algorithms: pow, pos, poh, poa, poet, pob, poc, pbft.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (yaml, toml or json)")
	flags.String("log-level", "info", "Log level: debug|info|warn|error")
	flags.String("log-format", "console", "Log format: console|json")
	flags.String("log-file", "", "Rotate logs into this file instead of stderr")
	flags.String("sink-dir", "", "Write block/mining/validation logs and blocks under this directory")

	root.AddCommand(
		newRunCmd(a),
		newDemoCmd(a),
		newBenchmarkCmd(a),
		newAlgorithmsCmd(),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(viper.New(), a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	sinks := []sink.Sink{sink.NewLogSink(logger)}
	if cfg.SinkDir != "" {
		files, err := sink.NewFileSink(cfg.SinkDir, logger)
		if err != nil {
			return err
		}
		a.files = files
		sinks = append(sinks, files)
	}
	bus, err := sink.NewBus(sinks...)
	if err != nil {
		return err
	}
	a.sink = bus
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.files != nil {
		return a.files.Close()
	}
	return nil
}

// newEngine builds an engine for kind wired to the shared sink.
func (a *app) newEngine(kind consensus.Kind, m *metrics.Metrics) (*chain.Engine, error) {
	engine, err := chain.NewEngine(chain.DefaultConfig(), kind, a.sink, m, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

// writeSummary stores the summary report when a sink directory is configured.
func (a *app) writeSummary(engine *chain.Engine) error {
	summary, err := engine.Summary()
	if err != nil {
		return err
	}
	if a.files == nil {
		return nil
	}
	return a.files.WriteSummary(summary)
}

func validity(valid bool) string {
	if valid {
		return "Valid"
	}
	return "Invalid"
}
