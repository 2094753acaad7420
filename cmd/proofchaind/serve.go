package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/metrics"
	"github.com/ahwlsqja/proofchain/transport"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over gRPC with Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.cfg.kind()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
			m, err := metrics.NewMetrics(a.cfg.MetricsNamespace, reg)
			if err != nil {
				return err
			}

			metricsServer := metrics.NewServer(a.cfg.MetricsAddr, reg)
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}
			a.logger.Info("metrics server listening", zap.String("address", metricsServer.Addr()))

			engine, err := a.newEngine(kind, m)
			if err != nil {
				_ = metricsServer.Stop()
				return err
			}

			srv := transport.NewServer(engine, a.cfg.GRPCAddr, a.logger)
			if err := srv.Start(); err != nil {
				_ = metricsServer.Stop()
				return fmt.Errorf("failed to start grpc server: %w", err)
			}
			a.logger.Info("serving engine",
				zap.String("algorithm", kind.Name()),
				zap.String("grpc", srv.Addr()),
			)

			// Wait for interrupt signal
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			a.logger.Info("shutting down")
			srv.Stop()
			if err := metricsServer.Stop(); err != nil {
				a.logger.Warn("metrics server stop failed", zap.Error(err))
			}
			return a.writeSummary(engine)
		},
	}

	cmd.Flags().String("algorithm", "pow", "Algorithm key: pow|pos|poh|poa|poet|pob|poc|pbft")
	cmd.Flags().StringToString("param", nil, "Algorithm parameter key=value (repeatable)")
	cmd.Flags().String("grpc-addr", ":26657", "gRPC listen address")
	cmd.Flags().String("metrics-addr", ":26660", "Prometheus metrics address")
	return cmd
}
