package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webconferencing/internal/audit"
	"webconferencing/internal/auth"
	"webconferencing/internal/calls"
	"webconferencing/internal/config"
	"webconferencing/internal/directory"
	"webconferencing/internal/httpapi"
	"webconferencing/internal/locks"
	"webconferencing/internal/presence"
	"webconferencing/internal/providers"
	"webconferencing/pkg/database/migrate"
	"webconferencing/pkg/logger"
	"webconferencing/pkg/utils"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, stop, cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	store, db, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
	}

	// Locks and provider settings are shared through Redis when several instances run.
	var locker locks.Locker = locks.NewLocal()
	var configs providers.ConfigStore = providers.NewMemoryConfigStore()
	if rdb != nil {
		locker = locks.NewRedis(rdb, cfg.Calls.LockTTL, log)
		configs = providers.NewRedisConfigStore(rdb)
	}

	var eventsRepo audit.Repository = audit.NewMemoryRepo()
	if db != nil {
		eventsRepo = audit.NewPostgresRepo(db)
	}

	dir := directory.NewMemory()
	if err := dir.LoadSeedFile(cfg.Directory.SeedFile); err != nil {
		return err
	}

	registry := providers.NewRegistry(configs, log)
	webrtc := providers.NewWebRTC(configs)
	registry.Add(webrtc)
	registry.Add(&providers.SIP{})
	var livekit *providers.LiveKit
	if cfg.LiveKitEnabled() {
		livekit = providers.NewLiveKit(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL)
		registry.Add(livekit)
	}

	listeners := presence.NewRegistry()
	dispatcher := presence.NewDispatcher(listeners, cfg.Notify.Workers, cfg.Notify.QueueSize, log)
	defer dispatcher.Close()

	engine, err := calls.NewEngine(calls.Deps{
		Store:     store,
		Directory: dir,
		IMs:       registry,
		Listeners: listeners,
		Notifier:  dispatcher,
		Locker:    locker,
		Events:    audit.NewService(eventsRepo),
		Log:       log,
	})
	if err != nil {
		return err
	}

	if cfg.Calls.PurgeOnStart {
		if _, err := engine.PurgeUserCalls(ctx); err != nil {
			return err
		}
	}

	h := httpapi.Handlers{
		Auth:       authManager,
		Calls:      engine,
		Providers:  registry,
		WebRTC:     webrtc,
		LiveKit:    livekit,
		AllowLogin: !cfg.IsProduction(),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, auth.RequireAccessToken(authManager), healthHandler(db, rdb))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket writes carry their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Calls.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	return nil
}

// openStore opens the configured call store. db is set only for postgres.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (calls.Store, *sql.DB, func(), error) {
	switch cfg.Calls.StoreDriver {
	case config.StorePostgres:
		db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.DB.MigrateOnStart {
			if err := migrate.Run(db, log); err != nil {
				_ = db.Close()
				return nil, nil, nil, err
			}
		}
		return calls.NewPostgresStore(db), db, func() { _ = db.Close() }, nil

	case config.StoreBadger:
		bdb, err := badger.Open(badger.DefaultOptions(cfg.Calls.BadgerDir).WithLogger(nil))
		if err != nil {
			return nil, nil, nil, err
		}
		return calls.NewBadgerStore(bdb), nil, func() { _ = bdb.Close() }, nil

	default:
		log.Warn("calls are kept in memory and lost on restart")
		return calls.NewMemoryStore(), nil, func() {}, nil
	}
}

func healthHandler(db *sql.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if db != nil {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "postgres": err.Error()})
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
