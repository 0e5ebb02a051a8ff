package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pricewatch/chat"
	"pricewatch/handlers"
	"pricewatch/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger, the chat bot and the sweep scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		r := mux.NewRouter()
		r.Use(middleware.LoggingMiddleware)
		handlers.NewHandlers(p.sweeper, p.repo, p.catalog).
			RegisterRoutes(r, middleware.TriggerLimit(cfg.Server.TriggerRate))

		c := cors.New(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		})

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           c.Handler(r),
			ReadHeaderTimeout: 10 * time.Second,
		}

		queries := chat.NewQueryHandler(p.catalog, p.repo, p.transport, p.renderer, cfg.Telegram.ChatID)

		if cfg.Scraper.Autostart {
			if err := p.sweeper.Arm(); err != nil {
				return err
			}
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("🌐 server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "http server")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			return p.transport.Poll(gctx, queries.Handle)
		})

		return g.Wait()
	},
}
