package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NegusBas/In/config"
	"github.com/NegusBas/In/handlers"
	"github.com/NegusBas/In/store"
	"github.com/NegusBas/In/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Ensure both data paths satisfy the handler contract at compile time
var (
	_ handlers.Store  = (*store.Store)(nil)
	_ handlers.Store  = (*workflows.ChatWorkflows)(nil)
	_ workflows.Store = (*store.Store)(nil)
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Connect to the database and bring the schema up to date
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(ctx, store.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Logger:          logger,
	})
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.Error(err),
			zap.String("driver", cfg.Database.Driver))
	}
	defer st.Close()

	var data handlers.Store = st
	if cfg.DBOS.Enabled {
		dbosCtx, err := dbos.NewDBOSContext(context.Background(), dbos.Config{
			DatabaseURL: cfg.Database.URL,
			AppName:     cfg.DBOS.AppName,
		})
		if err != nil {
			logger.Fatal("Failed to initialize DBOS", zap.Error(err))
		}

		// Workflows must be registered before Launch
		chatWorkflows := workflows.NewChatWorkflows(st, dbosCtx)
		chatWorkflows.Register()

		if err := dbos.Launch(dbosCtx); err != nil {
			logger.Fatal("Failed to launch DBOS", zap.Error(err))
		}
		defer dbos.Shutdown(dbosCtx, cfg.Server.ShutdownTimeout)
		logger.Info("DBOS initialized - durable writes enabled")

		data = chatWorkflows
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.NewChatHandler(data, logger, cfg.DBOS.Enabled), logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      cors.AllowAll().Handler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	if err := serve(srv, sigChan, cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Error("Server stopped", zap.Error(err))
	}
}

// serve runs srv until a signal arrives on stop or the listener fails.
// It returns instead of exiting so the caller's deferred cleanup runs.
func serve(srv *http.Server, stop <-chan os.Signal, shutdownTimeout time.Duration, logger *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case sig := <-stop:
		logger.Info("Graceful shutdown", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
