// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynq/x/metrics"
	"github.com/hibiken/asynqmon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/gardener/runsweeper/pkg/core/config"
)

// NewDashboardCommand returns a new command for serving the queue dashboard
// of the cleanup workers.
func NewDashboardCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "dashboard",
		Usage:   "cleanup queue dashboard operations",
		Aliases: []string{"ui"},
		Before: func(ctx *cli.Context) error {
			return validateRedisConfig(getConfig(ctx))
		},
		Subcommands: []*cli.Command{
			{
				Name:    "start",
				Usage:   "serve the dashboard, queue metrics and health endpoint",
				Aliases: []string{"s"},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "address to listen on, overrides the config",
					},
					&cli.BoolFlag{
						Name:  "read-only",
						Usage: "disallow task operations from the dashboard",
					},
				},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					dashConf := conf.Dashboard
					if ctx.IsSet("address") {
						dashConf.Address = ctx.String("address")
					}
					if ctx.IsSet("read-only") {
						dashConf.ReadOnly = ctx.Bool("read-only")
					}
					if err := validateDashboardConfig(dashConf); err != nil {
						return err
					}

					inspector := newInspector(conf)
					defer inspector.Close() // nolint: errcheck

					handler, closeUI := newDashboardHandler(conf, dashConf, inspector)
					defer closeUI()

					srv := &http.Server{
						Addr:              dashConf.Address,
						Handler:           handler,
						ReadHeaderTimeout: 30 * time.Second,
					}

					sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					errCh := make(chan error, 1)
					go func() {
						slog.Info(
							"starting dashboard",
							"address", dashConf.Address,
							"read_only", dashConf.ReadOnly,
						)
						errCh <- srv.ListenAndServe()
					}()

					select {
					case err := <-errCh:
						return err
					case <-sigCtx.Done():
					}

					slog.Info("stopping dashboard")
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						return err
					}

					if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
						return err
					}

					return nil
				},
			},
		},
	}

	return cmd
}

// newDashboardHandler returns the handler of the dashboard server and a
// function, which releases the resources of the UI.
//
// The UI is served at /, the queue metrics at /metrics, and /healthz
// reports whether Redis is reachable.
func newDashboardHandler(conf *config.Config, dashConf config.DashboardConfig, inspector *asynq.Inspector) (http.Handler, func()) {
	ui := asynqmon.New(asynqmon.Options{
		RootPath:          "/",
		RedisConnOpt:      newRedisClientOpt(conf),
		ReadOnly:          dashConf.ReadOnly,
		PrometheusAddress: dashConf.PrometheusEndpoint,
	})

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(
		metrics.NewQueueMetricsCollector(inspector),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	mux := http.NewServeMux()
	mux.Handle("/", ui)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := inspector.Queues(); err != nil {
			slog.Warn("redis is not reachable", "reason", err)
			http.Error(w, "redis is not reachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	closeUI := func() {
		if err := ui.Close(); err != nil {
			slog.Warn("failed to close dashboard", "reason", err)
		}
	}

	return mux, closeUI
}
