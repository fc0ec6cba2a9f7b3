package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/MSalah73/zero2prod/internal/config"
	"github.com/MSalah73/zero2prod/internal/database"
	"github.com/MSalah73/zero2prod/internal/delivery"
	"github.com/MSalah73/zero2prod/internal/domain"
	"github.com/MSalah73/zero2prod/internal/email"
	"github.com/MSalah73/zero2prod/internal/handler"
	"github.com/MSalah73/zero2prod/internal/idempotency"
	"github.com/MSalah73/zero2prod/internal/metrics"
	"github.com/MSalah73/zero2prod/internal/publish"
	"github.com/MSalah73/zero2prod/internal/server"
)

// Run initializes and starts the full service: HTTP API, delivery workers,
// and the idempotency sweeper. It blocks until SIGINT/SIGTERM.
func Run() error {
	cfg, dbConn, m, err := bootstrap()
	if err != nil {
		return err
	}

	store := idempotency.NewStore(dbConn, cfg.Idempotency)
	publishService := publish.NewService(store, m)

	sender, err := newEmailClient(cfg.Email)
	if err != nil {
		return err
	}

	sweeper := idempotency.NewSweeper(store, cfg.Idempotency, m)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start idempotency sweeper: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workersDone := startWorkers(ctx, dbConn, sender, m, cfg.Worker)

	h := handler.NewHandlers(dbConn, publishService)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdownSignal()

	logrus.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()
	workersDone.Wait()
	sweeper.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Service stopped gracefully")
	return nil
}

// RunWorker starts delivery workers without the HTTP API. It blocks until
// SIGINT/SIGTERM.
func RunWorker() error {
	cfg, dbConn, m, err := bootstrap()
	if err != nil {
		return err
	}

	sender, err := newEmailClient(cfg.Email)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workersDone := startWorkers(ctx, dbConn, sender, m, cfg.Worker)

	waitForShutdownSignal()

	logrus.Info("Shutting down workers...")
	cancel()
	workersDone.Wait()

	logrus.Info("Workers stopped gracefully")
	return nil
}

func bootstrap() (*config.Config, *gorm.DB, *metrics.Metrics, error) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting newsletter delivery service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return cfg, dbConn, metrics.NewMetrics(), nil
}

func newEmailClient(cfg config.EmailConfig) (*email.Client, error) {
	sender, err := domain.ParseSubscriberEmail(cfg.SenderEmail)
	if err != nil {
		return nil, fmt.Errorf("invalid sender email: %w", err)
	}
	client, err := email.NewClient(cfg.BaseURL, sender, cfg.AuthorizationToken, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create email client: %w", err)
	}
	return client, nil
}

func startWorkers(ctx context.Context, dbConn *gorm.DB, sender delivery.Sender, m *metrics.Metrics, cfg config.WorkerConfig) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < cfg.Count; i++ {
		worker := delivery.NewWorker(dbConn, sender, m, cfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}
	logrus.Infof("Started %d delivery workers", cfg.Count)
	return &wg
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
