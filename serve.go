package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-client/internal/feed"
	"social-client/internal/handlers"
	"social-client/internal/middleware"
	"social-client/internal/observability"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local control API a UI process drives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			me, err := a.profile(ctx)
			if err != nil {
				return err
			}

			if a.cfg.Environment == "production" {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery())
			router.Use(otelgin.Middleware(a.cfg.Otel.ServiceName))
			router.Use(observability.HTTPMetricsMiddleware())
			router.Use(middleware.RequestID())

			router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
			router.GET("/metrics", gin.WrapH(promhttp.Handler()))

			protected := router.Group("/", middleware.BearerAuth(a.cfg.Server.Token), handlers.LocalUser(me.ID.String()))

			controller := a.newFeed(feed.NewState())
			handlers.NewFeedHandler(controller, a.log).Register(protected)

			chats := handlers.NewChatHandler(me, a.api, a.newSession(me), a.log)
			chats.Register(protected)

			handlers.RegisterDebugRoutes(protected, a.audit, a.cfg.Server.DebugRoute)

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("control api listening", "addr", srv.Addr, "user_id", me.ID)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					chats.Close()
					return err
				}
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			chats.Close()
			controller.Unmount(0)
			controller.Wait()
			return err
		},
	}
}
