package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"visionmatch/internal/config"
	"visionmatch/internal/database"
	"visionmatch/internal/handlers"
	"visionmatch/internal/metrics"
	"visionmatch/internal/middlewares"
	"visionmatch/internal/notify"
	"visionmatch/internal/repositories"
	"visionmatch/internal/routes"
	"visionmatch/internal/services"
	"visionmatch/internal/utils"
)

// Server owns the HTTP server and every connection it was wired with.
type Server struct {
	HTTP *http.Server

	logger   *slog.Logger
	pool     *pgxpool.Pool
	gdb      *gorm.DB
	rdb      *redis.Client
	nats     *notify.NATSNotifier
	requests *services.RequestService
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.closeConnections()
		}
	}()

	if err := database.EnsureDatabaseExists(ctx, cfg.Database); err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	if err := database.RunMigrations(ctx, pool); err != nil {
		return nil, err
	}
	gdb, err := database.OpenGorm(cfg.Database)
	if err != nil {
		return nil, err
	}
	s.gdb = gdb

	s.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// Fail fast with a clear message when Redis is unreachable.
	{
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.NATS.URL != "" {
		n, err := notify.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, err
		}
		s.nats = n
		notifier = n
		logger.Info("publishing notifications to nats", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	} else {
		logger.Warn("NATS_URL not set, e-mail notifications are disabled")
	}

	var gateway services.Gateway
	if cfg.Razorpay.Enabled() {
		gateway = services.NewRazorpayGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	} else {
		logger.Warn("razorpay credentials not set, escrow payments are disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Dependency injection
	userRepo := repositories.NewUserRepository(gdb)
	redisRepo := repositories.NewRedisRepository(s.rdb)
	requestRepo := repositories.NewRequestRepository(pool)
	messageRepo := repositories.NewMessageRepository(pool)
	paymentRepo := repositories.NewPaymentRepository(pool)
	bookingRepo := repositories.NewBookingRepository(pool)
	balanceRepo := repositories.NewBalanceRepository(pool)

	tokens := utils.NewTokenManager(cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authService := services.NewAuthService(userRepo, redisRepo, tokens, logger)
	s.requests = services.NewRequestService(requestRepo, userRepo, notifier, m, logger)
	negotiationService := services.NewNegotiationService(requestRepo, messageRepo, m, logger)
	paymentService := services.NewPaymentService(requestRepo, paymentRepo, bookingRepo, balanceRepo, gateway, logger)

	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(logger), middlewares.Metrics(m))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService, cfg.Auth.SecureCookies),
		Requests:    handlers.NewRequestHandler(s.requests),
		Negotiation: handlers.NewNegotiationHandler(negotiationService),
		Payments:    handlers.NewPaymentHandler(paymentService),
	}, middlewares.Authenticate(tokens, redisRepo), registry)

	s.HTTP = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	ok = true
	return s, nil
}

// Shutdown stops accepting requests, waits for in-flight notifications and
// closes the connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.HTTP.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.requests.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, fmt.Errorf("notifications still pending: %w", ctx.Err()))
	}

	s.closeConnections()
	return err
}

func (s *Server) closeConnections() {
	if s.nats != nil {
		s.nats.Close()
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.logger.Warn("failed to close redis", "error", err)
		}
	}
	if s.gdb != nil {
		if sqlDB, err := s.gdb.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.logger.Warn("failed to close gorm connection", "error", err)
			}
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
