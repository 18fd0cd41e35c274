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

	"bitwise74/account-api/app"
	"bitwise74/account-api/config"
	"bitwise74/account-api/db"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func openStore(ctx context.Context, cfg db.Config) (store.Store, error) {
	if cfg.Type == "mongo" {
		mdb, err := db.NewMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}

		s := store.NewMongo(mdb, cfg.Timeout)
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}

		return s, nil
	}

	gdb, err := db.NewSQL(cfg)
	if err != nil {
		return nil, err
	}

	return store.NewGorm(gdb, cfg.Timeout), nil
}

func run() error {
	cfg, err := config.Setup()
	if err != nil {
		return err
	}

	log, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open %s store, %w", cfg.DB.Type, err)
	}
	defer s.Close(context.Background())

	d, err := internal.NewDeps(cfg, s)
	if err != nil {
		return err
	}

	// Refresh tokens are long lived, so dead sessions pile up slowly
	cleanup, err := service.TokenCleanup(cfg.CleanupSchedule, s)
	if err != nil {
		return err
	}
	defer cleanup.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("Server starting", zap.Int("port", cfg.Port), zap.String("store", cfg.DB.Type))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		zap.L().Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly, %w", err)
		}
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
