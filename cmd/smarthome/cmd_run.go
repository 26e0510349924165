package main

import (
	"context"
	"net/http"
	"time"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/smarthome"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the feeds and propagate crossings until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runCoordinator,
}

func runCoordinator(cmd *cobra.Command, _ []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	conf, home, err := openSmartHome(cmd.Context(), smarthome.WithRegisterer(reg), smarthome.WithConfigPath(configPath))
	if err != nil {
		return err
	}
	defer home.Close()

	g, ctx := errgroup.WithContext(cmd.Context())
	if conf.Metrics.Addr != "" {
		server := &http.Server{
			Addr:              conf.Metrics.Addr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error { return home.Run(ctx) })
	return g.Wait()
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}
