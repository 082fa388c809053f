package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"arksync/internal/config"
	"arksync/internal/localstore"
	"arksync/internal/logging"
	"arksync/internal/metrics"
	"arksync/internal/records"
	"arksync/internal/syncer"
	"arksync/internal/transport"
)

// app is the wired client side: local cache, records, transport and sync.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *localstore.Store
	rec     *records.Records
	remote  *transport.Client
	sync    *syncer.Orchestrator
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Pretty)
}

// newApp opens the local store and wires records to the orchestrator. The
// bearer token is read from the stored session on every request.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	m := metrics.New(prometheus.NewRegistry())
	store, err := localstore.Open(cfg.Store.Driver, cfg.Store.SQLitePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	rec := records.New(store,
		records.WithContext(ctx),
		records.WithLogger(logger),
		records.WithMetrics(m),
	)
	remote := transport.New(cfg.Remote.BaseURL,
		transport.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		transport.WithMaxRetries(cfg.Remote.MaxRetries),
		transport.WithInitialBackoff(cfg.Remote.InitialBackoff),
		transport.WithTokenSource(rec.Token),
		transport.WithLogger(logger),
		transport.WithMetrics(m),
	)
	orch := syncer.New(remote, rec,
		syncer.WithLogger(logger),
		syncer.WithMetrics(m),
		syncer.WithStatusStore(store),
	)
	rec.SetPusher(orch)
	rec.SetFailureSink(orch)
	return &app{cfg: cfg, logger: logger, metrics: m, store: store, rec: rec, remote: remote, sync: orch}, nil
}

// close drains background pushes before releasing the store.
func (a *app) close() error {
	a.rec.Wait()
	err := a.store.Close()
	_ = a.logger.Sync()
	return err
}

// drain waits for background work and reports whether any of it failed.
func (a *app) drain() error {
	a.rec.Wait()
	st := a.sync.Status()
	if st.BackgroundFailures > 0 {
		return fmt.Errorf("%d background sync task(s) failed: %s", st.BackgroundFailures, st.LastBackgroundError)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
