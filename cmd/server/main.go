package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	rediscache "github.com/ignatzorin/tradehub-backend/internal/cache/redis"
	"github.com/ignatzorin/tradehub-backend/internal/config"
	"github.com/ignatzorin/tradehub-backend/internal/db"
	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
	"github.com/ignatzorin/tradehub-backend/internal/engine/fee"
	"github.com/ignatzorin/tradehub-backend/internal/fxrates"
	"github.com/ignatzorin/tradehub-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/tradehub-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/tradehub-backend/internal/http/router"
	"github.com/ignatzorin/tradehub-backend/internal/logger"
	"github.com/ignatzorin/tradehub-backend/internal/repository"
	"github.com/ignatzorin/tradehub-backend/internal/service"
	"github.com/ignatzorin/tradehub-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	logger.Init(cfg.Env)
	log := logger.Component("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("ошибка миграций: %v", err)
	}

	// Redis необязателен: без него оценки доверия считаются при каждом запросе.
	var (
		snapshots   service.TrustSnapshotStore
		invalidator service.TrustInvalidator
		redisHealth httpHandlers.Pinger
	)
	if cfg.RedisAddr != "" {
		redisCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		redisClient, err := rediscache.New(redisCtx, rediscache.ClientConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 2 * time.Second,
		})
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis недоступен, кэш оценок доверия отключён")
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.WithError(err).Warn("ошибка закрытия redis")
				}
			}()
			cache := rediscache.NewTrustSnapshotCache(redisClient, cfg.TrustSnapshotTTL)
			snapshots, invalidator, redisHealth = cache, cache, redisClient
		}
	}

	// Резервный снимок курсов.
	var fallbackRates fee.RateTable
	if snap, err := fxrates.LoadFile(cfg.FXRatesFile); err != nil {
		log.WithError(err).Warn("резервный снимок курсов не загружен")
	} else {
		fallbackRates = snap.Rates
		log.WithField("as_of", snap.AsOf).Info("резервный снимок курсов загружен")
	}

	feeEngine, err := fee.NewEngine(cfg.FeeRates)
	if err != nil {
		log.Fatalf("некорректные ставки комиссий: %v", err)
	}

	// Репозитории.
	orderRepo := repository.NewOrderRepository(dbConn)
	eventRepo := repository.NewOrderEventRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	fxRepo := repository.NewFXRateRepository(dbConn)
	trustRepo := repository.NewTrustProfileRepository(dbConn)

	// Сервисы.
	verifier := service.NewTokenVerifier(cfg.JWTSecret)
	cacheService := service.NewCacheService(ctx, time.Minute)
	feeService := service.NewFeeService(feeEngine, fxRepo, cacheService, fallbackRates, cfg.FXRatesTTL, logger.Component("fee"))
	escrowService := service.NewEscrowService(orderRepo, eventRepo, escrowRepo, escrow.NewMachine(cfg.EscrowClockSkew), logger.Component("escrow"))
	trustService := service.NewTrustService(trustRepo, snapshots, logger.Component("trust"))

	if err := feeService.BootstrapRates(ctx); err != nil {
		log.WithError(err).Warn("не удалось заполнить таблицу курсов")
	}

	// Вебсокеты.
	hub := ws.NewHub(logger.Component("ws"))
	goroutine.SafeGoWithContext(ctx, hub.Run)
	escrowService.SetNotifier(ws.NewEscrowNotifier(hub))
	if invalidator != nil {
		escrowService.SetTrustInvalidator(invalidator)
	}

	// HTTP хэндлеры.
	engine := httpRouter.SetupRouter(
		cfg,
		httpHandlers.NewFeeHandler(feeService),
		httpHandlers.NewEscrowHandler(escrowService),
		httpHandlers.NewTrustHandler(trustService),
		httpHandlers.NewWSHandler(hub, verifier, cfg.AllowedOrigins),
		httpHandlers.NewHealthHandler(dbConn, redisHealth),
		verifier,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("ошибка остановки http сервера")
		}
	})

	log.Infof("HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
