package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arksync/internal/credential"
	"arksync/internal/metrics"
	"arksync/internal/recordstore"
	"arksync/internal/server"
)

func (c *cli) openRecordStore(ctx context.Context) (recordstore.Store, error) {
	store, err := recordstore.Open(c.cfg.Server.StoreDriver, c.cfg.Server.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	if c.cfg.Server.AutoProvision {
		if err := store.Provision(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("provision record store: %w", err)
		}
	}
	return store, nil
}

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference remote record service",
		Long: `serve exposes per-collection upsert and soft delete, the combined
/api/sync snapshot, /api/auth/login, /healthz and /metrics.

Record routes require a bearer token when server.auth_secret is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(c.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := c.openRecordStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			opts := []server.Option{
				server.WithLogger(logger),
				server.WithMetrics(metrics.New(reg)),
				server.WithGatherer(reg),
			}
			if c.cfg.Server.AuthSecret != "" {
				opts = append(opts, server.WithAuthenticator(credential.NewAuthenticator(store, c.cfg.Server.AuthSecret, c.cfg.Server.TokenTTL)))
			} else {
				logger.Warn("server.auth_secret is empty; record routes are unauthenticated")
			}
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			logger.Info("starting record service", zap.String("store", c.cfg.Server.StoreDriver))
			return server.New(store, opts...).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Provision the record service schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := recordstore.Open(c.cfg.Server.StoreDriver, c.cfg.Server.PostgresDSN)
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer func() { _ = store.Close() }()
			if err := store.Provision(cmd.Context()); err != nil {
				return fmt.Errorf("provision record store: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s record store provisioned\n", c.cfg.Server.StoreDriver)
			return nil
		},
	}
}
