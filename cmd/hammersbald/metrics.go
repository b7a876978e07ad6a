package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hammersbald/hammersbald/internal/engine"
	hbmetrics "github.com/hammersbald/hammersbald/internal/metrics"
)

func newMetricsCmd(storePath, configPath *string, requireStore requireStoreFunc, newLogger loggerFunc) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Open the store and serve its Prometheus metrics over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, log, err := openEngine(*storePath, *configPath, requireStore, newLogger)
			if err != nil {
				return err
			}
			defer e.Shutdown()
			defer log.Sync()

			m := hbmetrics.New()
			e.UseMetrics(m)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: addr, Handler: mux}

			stop := make(chan struct{})
			defer close(stop)
			go refreshGauges(e, m, stop)

			log.Info("serving metrics", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9191", "address to serve /metrics on")
	return cmd
}

// refreshGauges resyncs the directory-size gauges every second: Stats is the
// only thing that updates them, and nothing else calls it while the process
// just sits serving /metrics.
func refreshGauges(e *engine.Engine, m *hbmetrics.Metrics, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Stats()
		}
	}
}
