package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cubesql/internal/app"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(rt *runtime) *cobra.Command {
	var (
		listen  string
		imports []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the semantic model API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cmd.Flags().Changed("listen") {
				rt.cfg.ListenAddr = listen
			}
			rt.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: rt.cfg.SlogLevel()}))
			a, err := app.New(ctx, app.Deps{Cfg: rt.cfg, Logger: rt.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if len(imports) > 0 {
				if _, err := a.ImportModels(ctx, "cli", imports); err != nil {
					return fmt.Errorf("import models: %w", err)
				}
			}

			srv := &http.Server{
				Addr:              rt.cfg.ListenAddr,
				Handler:           a.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			a.Scheduler.Start()
			defer a.Scheduler.Stop()

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("listening", "addr", srv.Addr, "discovery", rt.cfg.DiscoveryEnabled())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides LISTEN_ADDR)")
	cmd.Flags().StringSliceVar(&imports, "import", nil, "Model directories to apply before serving")
	return cmd
}
