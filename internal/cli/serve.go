package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stock-analyzer/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis reports over HTTP",
		Long: `Start an HTTP server that recomputes a report on every request.

Endpoints:
  GET /api/v1/report/:ticker   ?format=json|markdown|html&from=&to=&refresh=
  GET /healthz
  GET /metrics                 Prometheus metrics`,
		Example: `  analyzer serve
  analyzer serve --addr :9090 --source store`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				app.Config.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, cleanup, err := app.openPipeline(ctx, false)
			if err != nil {
				output.Error("Failed to start: %v", err)
				return err
			}
			defer cleanup()

			srv := server.New(p, server.OptionsFromConfig(app.Config.Server, app.Metrics.Registry), app.Logger)
			output.Info("Listening on %s (source %s)", app.Config.Server.Addr, p.Source().Name())
			return srv.Start(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default server.addr)")
	return cmd
}
