package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/interactive-quiz/session-engine/internal/config"
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence/memory"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/persistence/postgres"
	"github.com/interactive-quiz/session-engine/modules/interactive/infrastructure/websocket"
	"github.com/interactive-quiz/session-engine/modules/interactive/services/manager"
	"github.com/interactive-quiz/session-engine/modules/interactive/services/notify"
	"github.com/interactive-quiz/session-engine/pkg/logging"
	"github.com/interactive-quiz/session-engine/pkg/middleware"
)

// reconcileSchedule runs the Manager's conducted-drift sweep every
// minute: short enough that a Session conducted out-of-band doesn't keep
// its websocket connections open for long.
const reconcileSchedule = "*/1 * * * *"

func main() {
	conf := config.Use()
	logger := logging.New(conf.LogLevel, conf.IsProduction())

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %v", r)
			os.Exit(1)
		}
	}()

	repo, pool := buildRepository(logger, conf)

	idleCfg := session.IdleConfig{
		WaitingWarnSeconds:  int(conf.WaitingIdleWarn.Seconds()),
		WaitingForceSeconds: int(conf.WaitingIdleForce.Seconds()),
		PausedWarnSeconds:   int(conf.PausedIdleWarn.Seconds()),
		PausedForceSeconds:  int(conf.PausedIdleForce.Seconds()),
	}

	mgr := manager.New(repo, logger, idleCfg)
	if cronSched, err := mgr.StartReconciler(reconcileSchedule); err != nil {
		logger.WithError(err).Warn("reconciler not started")
	} else {
		defer cronSched.Stop()
	}

	buildNotifier(logger, conf)

	wsHandler := websocket.NewHandler(repo, mgr, logger)

	router := mux.NewRouter()
	router.Handle("/ws/{id}", middleware.RateLimit(middleware.RateLimitConfig{
		Limit:   20,
		Window:  time.Minute,
		KeyFunc: middleware.EndpointKeyFunc("ws"),
	})(wsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: conf.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(router)

	httpServer := &http.Server{
		Addr:              conf.ListenAddr,
		Handler:           corsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", conf.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	if pool != nil {
		pool.Close()
	}
}

// buildRepository prefers Postgres (C1's durable implementation);
// without a reachable DATABASE_URL it falls back to the in-memory
// repository, which keeps local development possible without standing
// up Postgres first. The returned pool is nil in the fallback case.
func buildRepository(logger *logrus.Logger, conf *config.Config) (persistence.Repository, *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, conf.StorageDSN)
	if err != nil {
		logger.WithError(err).Warn("postgres unavailable, falling back to in-memory storage")
		return memory.New(), nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.WithError(err).Warn("postgres unreachable, falling back to in-memory storage")
		pool.Close()
		return memory.New(), nil
	}
	return postgres.NewRepository(pool), pool
}

// buildNotifier wires the Telegram leader-notification path (notify.New)
// when a bot token is configured; it is a no-op addition beyond the core
// state machine, so its absence is never fatal to starting the server.
func buildNotifier(logger *logrus.Logger, conf *config.Config) *notify.Notifier {
	if conf.TelegramToken == "" {
		logger.Info("TELEGRAM_BOT_TOKEN not set, leader session-ended notifications disabled")
		return nil
	}

	sender, err := notify.NewBotSender(conf.TelegramToken)
	if err != nil {
		logger.WithError(err).Warn("telegram bot unavailable, leader notifications disabled")
		return nil
	}

	var redisClient *redis.Client
	if opts, err := redis.ParseURL(conf.RedisURL); err == nil {
		redisClient = redis.NewClient(opts)
	} else {
		logger.WithError(err).Warn("redis url invalid, notification dedupe disabled")
	}

	logger.Info("telegram leader-notification configured")
	return notify.New(sender, notify.Config{Redis: redisClient})
}
