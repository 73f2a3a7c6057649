package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sms-support-server/internal/carrier"
	"sms-support-server/internal/config"
	"sms-support-server/internal/db"
	"sms-support-server/internal/events"
	"sms-support-server/internal/handlers"
	"sms-support-server/internal/locks"
	"sms-support-server/internal/realtime"
	"sms-support-server/internal/services"
	"sms-support-server/pkg/logger"
	"sms-support-server/router"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	shutdownTimeout  = 5 * time.Second
	redisDialTimeout = 3 * time.Second
	lockKeyPrefix    = "support:phone-lock:"
)

// Server is the HTTP server plus the resources it owns
type Server struct {
	*http.Server
	closers []func() error
}

// Close stops the listener and releases every resource, newest first
func (s *Server) Close() error {
	err := s.Server.Close()
	return errors.Join(err, s.closeResources())
}

func (s *Server) closeResources() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// SetupServer initializes and returns a configured HTTP server
func SetupServer(cfg *config.Config) (_ *Server, err error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{}
	defer func() {
		if err != nil {
			_ = s.closeResources()
		}
	}()

	// Initialize database
	database, err := db.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.closers = append(s.closers, database.Close)

	locker, err := newLocker(cfg, s)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg, s)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	customerRepo := db.NewCustomerRepository(database)
	conversationRepo := db.NewConversationRepository(database)
	messageRepo := db.NewMessageRepository(database)
	agentRepo := db.NewAgentRepository(database)

	// Initialize services
	hub := realtime.NewHub()
	customerService := services.NewCustomerService(customerRepo)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, customerService, locker)
	messageService := services.NewMessageService(messageRepo, conversationRepo)
	deliveryService := services.NewDeliveryService(conversationService, messageRepo, newGateway(cfg), hub, publisher, cfg.Carrier.SendTimeout)
	authService := services.NewAuthService(agentRepo, cfg)

	// Seed database if enabled
	if cfg.Seed.Enable {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err = authService.EnsureAdmin(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to seed database: %w", err)
		}
	}

	r := router.NewRouter(cfg, router.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Messages:  handlers.NewMessageHandler(deliveryService, conversationService, messageService),
		Customers: handlers.NewCustomerHandler(customerService),
		Webhooks:  handlers.NewWebhookHandler(deliveryService),
		Realtime:  realtime.NewServer(hub, authService.Authenticate, cfg.Realtime.OutboxSize, cfg.Server.AllowedOrigins),
		Ping:      database.GetDB().PingContext,
	}, version)

	// Create server with security timeouts. No WriteTimeout: it would cut
	// long-lived WebSocket sessions.
	s.Server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// newLocker serializes first contact per phone across processes when redis is
// configured, and in process otherwise
func newLocker(cfg *config.Config, srv *Server) (locks.Locker, error) {
	if cfg.Redis.Addr == "" {
		return locks.NewKeyedMutex(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	srv.closers = append(srv.closers, client.Close)

	logger.Info("Using redis phone locks", zap.String("addr", cfg.Redis.Addr))
	return locks.NewRedisLocker(client, lockKeyPrefix, cfg.Redis.LockTTL), nil
}

func newPublisher(cfg *config.Config, srv *Server) (events.Publisher, error) {
	if cfg.AMQP.URL == "" {
		return events.NopPublisher{}, nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, publisher.Close)

	logger.Info("Publishing message events", zap.String("exchange", cfg.AMQP.Exchange))
	return publisher, nil
}

func newGateway(cfg *config.Config) carrier.Gateway {
	if cfg.SandboxCarrier() {
		logger.Warn("No carrier credentials configured, using sandbox carrier")
		return carrier.NewSandboxGateway()
	}
	return carrier.NewTwilioGateway(carrier.TwilioConfig{
		BaseURL:    cfg.Carrier.BaseURL,
		AccountSID: cfg.Carrier.AccountSID,
		AuthToken:  cfg.Carrier.AuthToken,
		FromNumber: cfg.Carrier.FromNumber,
		Timeout:    cfg.Carrier.SendTimeout,
	}, nil)
}

// StartServer starts the HTTP server and handles graceful shutdown
func StartServer(srv *Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return StartServerWithContext(ctx, srv)
}

// StartServerWithContext starts the HTTP server with a context for shutdown control
func StartServerWithContext(ctx context.Context, srv *Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			_ = srv.closeResources()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	shutdownErr := srv.Shutdown(ctxShutdown)
	closeErr := srv.closeResources()
	if shutdownErr != nil {
		return fmt.Errorf("server shutdown failed: %w", shutdownErr)
	}
	return closeErr
}
