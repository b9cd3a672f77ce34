// Package server wires configuration, storage, object store, change fan-out
// and the HTTP API into a runnable application with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/marinelog/internal/logging"
	"github.com/dmitrijs2005/marinelog/internal/server/config"
	"github.com/dmitrijs2005/marinelog/internal/server/httpapi"
	"github.com/dmitrijs2005/marinelog/internal/server/notifier"
	"github.com/dmitrijs2005/marinelog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/marinelog/internal/server/services"
)

// PruneInterval is how often expired refresh tokens are purged.
const PruneInterval = time.Hour

type App struct {
	config   *config.Config
	logger   logging.Logger
	zap      *zap.Logger
	db       *sql.DB
	notifier notifier.Notifier
	redis    *notifier.Redis
	users    *services.UserService
	handler  http.Handler
}

// NewApp connects to PostgreSQL, applies migrations and builds the services.
// Redis is only dialed when an address is configured.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	zl, err := logging.NewZap(c.LogLevel, c.LogFormat, "marinelog-server")
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	logger := logging.NewZapLogger(zl)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, zap: zl, db: db}

	if c.RedisAddr != "" {
		client, err := notifier.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = notifier.NewRedis(client, logger)
		app.notifier = app.redis
	} else {
		app.notifier = notifier.NewHub()
	}

	store, err := services.NewS3Store(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	app.users = services.NewUserService(db, rm, c)
	app.handler = httpapi.NewRouter(httpapi.Deps{
		Users:    app.users,
		Records:  services.NewRecordService(db, rm, app.notifier, logger.With("module", "records")),
		Photos:   services.NewPhotoService(store, c),
		Notifier: app.notifier,
		Health:   db,
		Logger:   logger.With("module", "http"),
	})

	return app, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (app *App) Run(ctx context.Context) error {
	defer app.close()

	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	if app.redis != nil {
		if err := app.redis.Start(gctx); err != nil {
			return fmt.Errorf("redis subscribe error: %w", err)
		}
	}

	g.Go(func() error {
		app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	g.Go(func() error {
		app.pruneTokens(gctx)
		return nil
	})

	return g.Wait()
}

func (app *App) pruneTokens(ctx context.Context) {
	ticker := time.NewTicker(PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.users.PruneExpiredTokens(ctx)
			if err != nil {
				app.logger.Warn(ctx, "refresh token pruning failed", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "pruned expired refresh tokens", "count", n)
			}
		}
	}
}

func (app *App) close() {
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err.Error())
	}
	_ = app.zap.Sync()
}
