package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"creatorhub/database"
	"creatorhub/internal/auth"
	"creatorhub/internal/config"
	"creatorhub/internal/handlers"
	"creatorhub/internal/logger"
	"creatorhub/internal/middleware"
	"creatorhub/internal/repositories"
	"creatorhub/internal/routes"
	"creatorhub/internal/services"
	"creatorhub/internal/storage"
	"creatorhub/internal/throttle"
	"creatorhub/internal/validator"
	"creatorhub/internal/workers"
	"creatorhub/pkg/apperrors"
	"creatorhub/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const tokenIssuer = "creatorhub"

// App owns every long-lived dependency of the server process.
type App struct {
	cfg    *config.Config
	db     *gorm.DB
	redis  redis.UniversalClient
	hub    *ws.Manager
	worker *workers.PresenceWorker
	server *http.Server
}

// Run builds the application, serves until SIGINT/SIGTERM and returns the
// process exit code.
func Run(cfg *config.Config) int {
	apperrors.SetDebug(cfg.IsDevelopment())
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := New(cfg)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		return 1
	}

	if err := a.worker.ResetOnStartup(context.Background()); err != nil {
		logger.Error("Failed to reset presence", "error", err)
		a.close()
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error { return a.worker.Run(gctx) })
	g.Go(func() error {
		logger.Info(fmt.Sprintf("Server starting on %s", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
		return nil
	})

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"server": func(ctx context.Context) error {
				logger.Info("Shutting down HTTP server")
				// Sockets are hijacked and not tracked by Shutdown.
				a.hub.CloseAll()
				err := a.server.Shutdown(ctx)
				a.waitDrained(ctx)
				cancel()
				if gerr := g.Wait(); err == nil {
					err = gerr
				}
				a.close()
				return err
			},
		},
	)

	code := <-wait
	logger.Info("Application exited", "code", code)
	return code
}

// New wires storage, services, the realtime hub and the router.
func New(cfg *config.Config) (*App, error) {
	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	db, err := database.Open(cfg.Database, cfg.Server.Env)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("Database connected")

	a := &App{cfg: cfg, db: db}

	var (
		store throttle.Store = throttle.NewMemoryStore()
		relay ws.Relay
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			a.close()
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		store = throttle.NewRedisStore(client, cfg.Redis.Prefix)
		relay = ws.NewRedisRelay(client, cfg.Redis.Channel)
		logger.Info("Redis connected", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	} else {
		logger.Warn("Redis disabled: throttling is per instance and events stay local")
	}

	storageInstance, err := storage.NewStorage(storage.Config{
		Type:      cfg.Storage.Type,
		BasePath:  cfg.Storage.BasePath,
		BaseURL:   cfg.Storage.BaseURL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type)

	serviceContainer := services.NewServiceContainer(cfg, storageInstance)
	customValidator := validator.New()

	tokens := auth.NewTokenManager(cfg.JWT.Secret, tokenIssuer)
	resolver := auth.NewJWTResolver(tokens, repositories.NewUserRepository())

	a.hub = ws.NewManager(relay)
	coord := ws.NewCoordinator(db, serviceContainer, resolver, a.hub, store, customValidator, ws.Options{
		SendBuffer:     cfg.Chat.SendBuffer,
		SendInterval:   cfg.Chat.SendInterval,
		TypingInterval: cfg.Chat.TypingInterval,
	})
	wsHandler := ws.NewWebSocketHandler(coord, cfg.Server.AllowedOrigins)

	appHandlers := handlers.NewAppHandlers(customValidator, serviceContainer, a.hub, db, cfg.Chat.HistoryPageSize)

	ginRouter := initializeGinRouter(db, cfg.Server.AllowedOrigins)
	if local, ok := storageInstance.(*storage.LocalStorage); ok && strings.HasPrefix(cfg.Storage.BaseURL, "/") {
		ginRouter.Static(cfg.Storage.BaseURL, local.Root())
	}
	routes.RegisterRoutes(ginRouter, appHandlers, wsHandler, middleware.AuthMiddleware(resolver, db))

	a.worker = workers.NewPresenceWorker(db, serviceContainer.PresenceService, cfg.Workers.ReconcileInterval, cfg.Redis.Enabled)
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           ginRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Handler exposes the router, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// waitDrained gives closing sessions time to release their presence.
func (a *App) waitDrained(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for a.hub.SessionCount() > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("Sessions still open at shutdown", "count", a.hub.SessionCount())
			return
		case <-ticker.C:
		}
	}
}

func initializeGinRouter(db *gorm.DB, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(allowedOrigins))
	router.Use(middleware.DBMiddleware(db))
	return router
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}
}
