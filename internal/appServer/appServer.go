package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postline/postline/config"
	repository "github.com/postline/postline/internal/database/postgres"
	"github.com/postline/postline/internal/service"
	"github.com/postline/postline/internal/transport"
	"github.com/postline/postline/internal/worker"

	"github.com/postline/postline/pkg/deadletter"
	"github.com/postline/postline/pkg/lock"
	"github.com/postline/postline/pkg/postgres"
	"github.com/postline/postline/pkg/redis"
	"github.com/postline/postline/pkg/retry"
	"github.com/postline/postline/pkg/scheduler"
	"github.com/postline/postline/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12}, // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	postRepo := repository.NewPostRepository(db)

	// Initialize Telegram delivery adapter
	var sender service.Sender
	if cfg.Telegram.BotToken != "" {
		sender = telegram.NewBot(cfg.Telegram.BotToken)
		logrus.Info("Telegram bot initialized")
	} else {
		logrus.Warn("Telegram bot token not provided, dispatching disabled")
	}

	// Redis backs the tick lock and the write-back dead letter journal.
	// Both degrade gracefully when redis is not configured.
	var tickLock *lock.TickLock
	var journal *deadletter.Journal
	if cfg.Redis.URL != "" {
		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()

		tickLock = lock.NewTickLock(redisClient, "postline:dispatch:lock", 2*time.Minute)
		journal = deadletter.NewJournal(redisClient, "postline:dispatch:dlq")
		logrus.Info("Redis tick lock and dead letter journal initialized")
	}

	retryMgr := retry.NewRetryManager(cfg.Dispatch.WritebackRetries, time.Second)

	// Initialize services
	postService := service.NewPostService(postRepo)
	dispatchService := service.NewDispatchService(postRepo, sender, tickLock, journal, retryMgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Self-rescheduling dispatch mode (external cron is preferred in
	// production; this ticker stops with the process). Starts disarmed
	// unless enabled in config; /dispatch/schedule arms it at runtime.
	interval := time.Duration(cfg.Dispatch.Interval) * time.Second
	if interval < transport.MinDispatchInterval {
		interval = transport.MinDispatchInterval
	}
	dispatchScheduler := scheduler.NewScheduler(dispatchService, interval, cfg.Dispatch.SelfSchedule)
	go dispatchScheduler.Start(ctx)

	// Reconcile worker sweeps posts stuck in 'sending'
	reconcileWorker := worker.NewReconcileWorker(
		postRepo,
		time.Duration(cfg.Dispatch.ReconcileInterval)*time.Minute,
		time.Duration(cfg.Dispatch.StuckThreshold)*time.Minute,
	)
	go reconcileWorker.Start(ctx)

	// Initialize handlers
	postHandler := transport.NewPostHandler(postService)
	dispatchHandler := transport.NewDispatchHandler(dispatchService, dispatchScheduler, journal)

	// Setup HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(postHandler, dispatchHandler, cfg.Dispatch.Secret, cfg.Server.Timeout)); err != nil {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
