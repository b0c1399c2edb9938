package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipnetic/clipnetic/internal/pipeline"
	"github.com/clipnetic/clipnetic/internal/platform/auth"
	"github.com/clipnetic/clipnetic/internal/platform/metrics"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/webhook"
	"github.com/clipnetic/clipnetic/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /process-video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			log := a.log

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			met := metrics.New()
			uc, err := pipeline.Build(ctx, cfg, log, met)
			if err != nil {
				return err
			}
			srv := server.New(
				uc,
				webhook.New(cfg.Auth.WebhookToken),
				auth.New(cfg.Auth.Token, cfg.Auth.JWTSecret, cfg.Auth.Issuer),
				met,
				log,
				server.Options{MaxInFlight: cfg.Server.MaxInFlight, Budget: cfg.Pipeline.RequestBudget},
			)
			httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Routes()}

			errCh := make(chan error, 1)
			go func() {
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			log.Info().
				Str("addr", cfg.Server.Addr).
				Int("max_inflight", cfg.Server.MaxInFlight).
				Dur("request_budget", cfg.Pipeline.RequestBudget).
				Msg("server starting")

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
				log.Info().Msg("shutdown signal received, draining connections")
			}

			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(sctx); err != nil {
				log.Error().Err(err).Msg("http shutdown")
			}
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("background jobs did not finish in time")
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Override server.addr")
	return cmd
}
