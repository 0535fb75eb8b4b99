package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"social-client/internal/api"
	"social-client/internal/chat"
	"social-client/internal/config"
	"social-client/internal/feed"
	"social-client/internal/logger"
	"social-client/internal/models"
	"social-client/internal/observability"
	"social-client/internal/rabbitmq"
	"social-client/internal/store"
	"social-client/internal/telemetry"
	"social-client/internal/tracing"
	"social-client/internal/ws"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	api       *api.Client
	lastSeen  store.LastSeenStore
	publisher rabbitmq.Publisher
	audit     *telemetry.AuditEmitter
	shutdown  tracing.ShutdownFunc
}

func newApp(cmd *cobra.Command) (*app, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	log := logger.Init(cfg.Log.Level)
	ctx := cmd.Context()

	shutdown, err := tracing.Init(ctx, cfg.Otel.Endpoint, cfg.Otel.ServiceName)
	if err != nil {
		return nil, err
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	observability.SetPublisher(publisher)
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher))

	lastSeen, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		PebbleDir:   cfg.Store.PebbleDir,
		PostgresDSN: cfg.Store.PostgresDSN,
	}, log)
	if err != nil {
		_ = publisher.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	client := api.New(api.Options{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Cookie:    cfg.API.Cookie,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
		Logger:    logger.Component(log, "api"),
	})

	return &app{
		cfg:       cfg,
		log:       log,
		api:       client,
		lastSeen:  lastSeen,
		publisher: publisher,
		audit:     telemetry.NewAuditEmitter(publisher, "audit", cfg.Otel.ServiceName, cfg.Environment, log),
		shutdown:  shutdown,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	a.api.Close()
	if err := a.lastSeen.Close(); err != nil {
		a.log.Warn("close last-seen store", "error", err)
	}
	observability.SetPublisher(nil)
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("close publisher", "error", err)
	}
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("tracing shutdown", "error", err)
	}
}

func (a *app) profile(ctx context.Context) (models.User, error) {
	me, err := a.api.GetProfile(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("load profile: %w", err)
	}
	return me, nil
}

func (a *app) dialer(local models.User) chat.Dialer {
	return chat.DialerFunc(func(ctx context.Context) (chat.Channel, error) {
		header := http.Header{}
		if a.cfg.API.Token != "" {
			header.Set("Authorization", "Bearer "+a.cfg.API.Token)
		}
		if a.cfg.API.Cookie != "" {
			header.Set("Cookie", a.cfg.API.Cookie)
		}
		conn, err := ws.Dial(ctx, a.cfg.Socket.URL, header, ws.Options{
			UserID:     local.ID.String(),
			AckTimeout: a.cfg.Socket.AckTimeout,
			Logger:     a.log,
		})
		if err != nil {
			return nil, err
		}
		info := conn.Info()
		a.log.Info("realtime channel open", "conn_id", info.ConnID, "url", info.URL, "user_id", info.UserID)
		return conn, nil
	})
}

func (a *app) newSession(local models.User) func() *chat.Session {
	dialer := a.dialer(local)
	return func() *chat.Session {
		return chat.New(a.api, dialer, a.lastSeen,
			chat.WithLogger(a.log),
			chat.WithRollback(a.cfg.Chat.RollbackOnFailure),
			chat.WithAuditor(a.audit),
		)
	}
}

func (a *app) newFeed(state *feed.State) *feed.Controller {
	return feed.New(state, a.api,
		feed.WithPageSize(a.cfg.Feed.PageSize),
		feed.WithLookupConcurrency(a.cfg.Feed.LookupConcurrency),
		feed.WithLogger(a.log),
	)
}
