package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/discovery"
	"github.com/BioHazard786/warpcall/internal/logging"
	"github.com/BioHazard786/warpcall/internal/relay"
	"github.com/BioHazard786/warpcall/internal/room"
	"github.com/BioHazard786/warpcall/internal/server"
	"github.com/BioHazard786/warpcall/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveOpts config.ServerOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the signaling relay. Participants connect to /ws; /health and /metrics
serve liveness and Prometheus metrics.

Examples:
  warpcall serve
  warpcall serve --port 9000 --mdns`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(slog.LevelInfo)

		cfg, err := config.LoadServer(serveOpts)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.ServerConfig) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	hub := relay.NewHub(room.NewRegistry(), relay.NewMetrics(reg))
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.NewRouter(hub, cfg, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("relay listening", "addr", srv.Addr, "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down relay")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MDNSEnabled {
		g.Go(func() error {
			if err := discovery.Announce(ctx, cfg.MDNSName, cfg.Port); err != nil {
				slog.Warn("mDNS announcement stopped", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&serveOpts.Port, "port", "p", 0, "Listen port (default 8080, env PORT)")
	serveCmd.Flags().BoolVar(&serveOpts.MDNSEnabled, "mdns", false, "Announce the relay on the local network")
	serveCmd.Flags().StringVar(&serveOpts.MDNSName, "mdns-name", "", "mDNS instance name")
}
