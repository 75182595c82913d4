package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-staking/pkg/config"
	"github.com/fortiblox/x1-staking/pkg/metrics"
	"github.com/fortiblox/x1-staking/pkg/rpc"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		noMetrics bool
		rateLimit bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON-RPC and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := metrics.NewMetrics()
			s, err := a.openSession(m)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := m.RegisterLedger(s.db); err != nil {
				return errors.Wrap(err, "failed to register ledger metrics")
			}
			health := metrics.NewHealthChecker(s.runtime.Clock())
			health.RegisterLedgerCheck(s.db, s.runtime.Registry().ListPrograms())

			handlers := rpc.NewHandlers(a.log, s.runtime, a.cfg.StakingProgramID(), health, rpc.BuildInfo{
				Version:   Version,
				GitCommit: GitCommit,
			})
			serverConfig := rpc.DefaultServerConfig()
			serverConfig.Address = a.cfg.RPC.Addr
			serverConfig.EnableRateLimit = rateLimit
			rpcServer := rpc.NewServer(a.log, serverConfig, handlers, s.runtime.Clock())
			if err := rpcServer.Start(); err != nil {
				return err
			}

			var metricsServer *metrics.Server
			if !noMetrics {
				metricsServer = metrics.NewServer(m,
					metrics.WithAddr(a.cfg.Metrics.Addr),
					metrics.WithHealthChecker(health),
					metrics.WithLogger(a.log),
				)
				if err := metricsServer.Start(); err != nil {
					shutdown(a, rpcServer, nil)
					return err
				}
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			a.log.Info("shutting down")
			shutdown(a, rpcServer, metricsServer)
			return nil
		},
	}
	cmd.Flags().String("rpc-addr", "", "JSON-RPC listen address")
	cmd.Flags().String("metrics-addr", "", "Metrics listen address")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Do not serve metrics")
	cmd.Flags().BoolVar(&rateLimit, "rate-limit", false, "Rate limit JSON-RPC requests per client")
	for key, name := range map[string]string{
		config.KeyRPCAddr:     "rpc-addr",
		config.KeyMetricsAddr: "metrics-addr",
	} {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func shutdown(a *app, rpcServer *rpc.Server, metricsServer *metrics.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := rpcServer.Stop(ctx); err != nil {
		a.log.WithError(err).Warn("failure stopping rpc server")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(ctx); err != nil {
			a.log.WithError(err).Warn("failure stopping metrics server")
		}
	}
}
