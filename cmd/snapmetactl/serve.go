package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cuemby/snapmeta/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reader/writer timer loops and a Prometheus metrics endpoint",
	Long: `serve warm-loads the store, starts the cluster reader/writer timer
loops (a no-op in single-node mode, since --config's cluster.enable
defaults to false), and serves /metrics until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		reg.StartService()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
		log.Info(fmt.Sprintf("snapmetactl serve: metrics on http://%s/metrics", metricsAddr))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			log.Info("snapmetactl serve: shutting down")
		case err := <-errCh:
			log.Error(fmt.Sprintf("snapmetactl serve: metrics server error: %v", err))
		}

		_ = server.Close()
		return reg.StopService()
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics HTTP listen address")
}
