package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/ozzaii/beatflow/internal/server"
	"github.com/ozzaii/beatflow/pkg/patterns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pattern API over HTTP",
		Long: `Serve the pattern collection over a local HTTP API for a browser
frontend.

Endpoints:
  GET    /healthcheck
  GET    /metrics
  GET    /api/patterns               ?kit=&name=&since=&until=
  POST   /api/patterns
  GET    /api/patterns/:id
  PATCH  /api/patterns/:id
  DELETE /api/patterns/:id
  GET    /api/patterns/:id/export
  POST   /api/patterns/import        ?save=true

Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if a.cfg.Log.Mode == "prod" || a.cfg.Log.Mode == "production" {
				gin.SetMode(gin.ReleaseMode)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := patterns.NewMetrics(reg)

			repo, closeRepo, err := a.openRepository(ctx, metrics)
			if err != nil {
				return err
			}
			defer closeRepo()

			router := server.NewRouter(server.RouterConfig{
				PatternHandler: server.NewPatternHandler(a.log, repo, a.exchange()),
				HealthHandler: server.NewHealthHandler(func(ctx context.Context) error {
					_, err := repo.List(ctx)
					return err
				}),
				Gatherer:       reg,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
			})

			a.out.Step("Serving namespace %q on %s (storage: %s)\n", a.cfg.Namespace, addr, a.cfg.Storage.Driver)
			if err := server.ListenAndServe(ctx, addr, router, a.log); err != nil {
				return a.out.ErrorWithContext("server failed", err.Error(),
					map[string]string{"Address": addr},
					[]string{"Pick another address with --addr or server.addr"})
			}
			a.out.Info("Server stopped\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.addr, :8080)")
	return cmd
}
