package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/smarthome/internal/db"
	"github.com/nkiryanov/smarthome/internal/handlers"
	"github.com/nkiryanov/smarthome/internal/logger"
	"github.com/nkiryanov/smarthome/internal/repository/postgres"
	"github.com/nkiryanov/smarthome/internal/service/auth"
	"github.com/nkiryanov/smarthome/internal/service/auth/cookie"
	"github.com/nkiryanov/smarthome/internal/service/auth/ledger"
	"github.com/nkiryanov/smarthome/internal/service/auth/signer"
	"github.com/nkiryanov/smarthome/internal/service/notify"
	"github.com/nkiryanov/smarthome/internal/service/notify/mqtt"
	"github.com/nkiryanov/smarthome/internal/service/notify/telegram"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	dispatcher *notify.Dispatcher
	logger     logger.Logger

	// Release resources in reverse order of acquiring
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// Initialize logger
	app.logger, err = logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Fail fast on bad secret before touching database
	sig, err := signer.New(signer.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating signer: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, pool.Close)

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize notifications
	sender, err := newSender(c, app.logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating notifier: %w", err)
	}
	if p, ok := sender.(*mqtt.Publisher); ok {
		app.closers = append(app.closers, p.Close)
	}
	app.dispatcher = notify.NewDispatcher(notify.DispatcherConfig{}, sender, app.logger.WithGroup("notify"))

	// Initialize services
	l := ledger.New(storage.Token(), nil)
	app.closers = append(app.closers, l.Close)

	cookies := cookie.New(cookie.Config{
		AccessName:  c.AccessCookieName,
		RefreshName: c.RefreshCookieName,
		AccessTTL:   c.AccessTTL,
		RefreshTTL:  c.RefreshTTL,
	})

	authService, err := auth.NewService(
		auth.Config{AccessTTL: c.AccessTTL, RefreshTTL: c.RefreshTTL},
		storage,
		sig,
		l,
		cookies,
		app.dispatcher,
		app.logger.WithGroup("auth"),
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	app.Handler = handlers.NewRouter(authService, app.logger)

	return app, nil
}

func newSender(c *Config, l logger.Logger) (notify.Sender, error) {
	switch c.Notifier {
	case NotifierTelegram:
		return telegram.NewClient(telegram.Config{
			APIURL:      c.TelegramAPIURL,
			BotToken:    c.TelegramBotToken,
			AdminChatID: c.TelegramAdminChatID,
		}, l.WithGroup("telegram"))
	case NotifierMQTT:
		return mqtt.Connect(mqtt.Config{
			Broker:      c.MQTTBroker,
			ClientID:    c.MQTTClientID,
			Username:    c.MQTTUsername,
			Password:    c.MQTTPassword,
			TopicPrefix: c.MQTTTopicPrefix,
		})
	default:
		return notify.NopSender{}, nil
	}
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.Close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Notifications are delivered until server stops
	dispatcherDone := s.dispatcher.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-dispatcherDone

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *ServerApp) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
