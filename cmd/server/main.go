package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/deepmine/internal/api"
	"github.com/annel0/deepmine/internal/auth"
	"github.com/annel0/deepmine/internal/cache"
	"github.com/annel0/deepmine/internal/config"
	"github.com/annel0/deepmine/internal/eventbus"
	"github.com/annel0/deepmine/internal/logging"
	"github.com/annel0/deepmine/internal/mining"
	"github.com/annel0/deepmine/internal/observability"
	"github.com/annel0/deepmine/internal/storage"
	"github.com/annel0/deepmine/internal/world"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации (по умолчанию $DEEPMINE_CONFIG)")
	adminToken := flag.Uint64("admin-token", 0, "выпустить админский токен для указанного ID игрока и выйти")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// === ЛОГИРОВАНИЕ ===
	if cfg.Logging.Dir != "" {
		logging.SetLogDir(cfg.Logging.Dir)
	}
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.ConfigureLevels(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Components)
	defer func() {
		if err := logging.CloseComponents(); err != nil {
			log.Printf("⚠️ Ошибка закрытия логов: %v", err)
		}
	}()

	tokens, err := auth.NewTokenManager(cfg.Auth.GetJWTSecret(), cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("❌ Ошибка настройки JWT: %v", err)
	}
	if *adminToken != 0 {
		if cfg.Auth.GetJWTSecret() == "" {
			log.Fatalf("❌ Для выпуска токена нужен постоянный секрет (auth.jwt_secret или DEEPMINE_JWT_SECRET)")
		}
		token, err := tokens.Generate(*adminToken, "admin", true)
		if err != nil {
			log.Fatalf("❌ Ошибка выпуска токена: %v", err)
		}
		fmt.Println(token)
		return
	}
	if cfg.Auth.GetJWTSecret() == "" {
		logging.Warn("⚠️ JWT секрет не задан: используется случайный, токены не переживут перезапуск")
	}

	if err := run(cfg, tokens); err != nil {
		logging.Error("❌ %v", err)
		_ = logging.CloseComponents()
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config, tokens *auth.TokenManager) error {
	ctx := context.Background()
	logging.Info("⛏️ Запуск DeepMine Server...")

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("⚠️ Ошибка остановки телеметрии: %v", err)
		}
	}()

	// === ХРАНИЛИЩЕ ===
	repo, err := openProgressRepo(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище прогресса: %w", err)
	}
	defer repo.Close()

	grid := world.NewGrid()
	gridRestored := false
	var gridStore *storage.GridStorage
	if cfg.Storage.GridPath != "" {
		gridStore, err = storage.NewGridStorage(cfg.Storage.GridPath)
		if err != nil {
			return fmt.Errorf("хранилище сетки: %w", err)
		}
		defer gridStore.Close()

		cells, found, err := gridStore.LoadSnapshot()
		if err != nil {
			return fmt.Errorf("загрузка сетки: %w", err)
		}
		if found {
			gridRestored = true
			skipped := grid.Restore(cells)
			logging.Info("🧱 Сетка восстановлена: %d блоков в %d чанках (пропущено %d)", len(cells)-skipped, grid.ChunkCount(), skipped)
		}
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("шина событий: %w", err)
	}
	defer bus.Close()

	listener, err := eventbus.StartLoggingListener(bus)
	if err != nil {
		return fmt.Errorf("подписка логгера событий: %w", err)
	}
	defer listener.Unsubscribe()

	exporter := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	exporter.Start()
	defer exporter.Stop()

	// === ШАХТА ===
	system, err := mining.NewSystem(cfg.Mining, mining.Deps{
		Progress: repo,
		Grid:     grid,
		Bodies:   world.NewBodies(),
		Events:   eventbus.NewMiningSink(bus),
		Metrics:  mining.NewMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("система шахт: %w", err)
	}
	defer system.Shutdown()

	if gridStore != nil {
		allocs, found, err := gridStore.LoadAllocations()
		if err != nil {
			return fmt.Errorf("загрузка слотов шахт: %w", err)
		}
		switch {
		case found:
			system.RestoreAllocations(allocs)
		case gridRestored:
			logging.Warn("⚠️ В снапшоте сетки нет слотов шахт: новые игроки могут получить слот со старыми блоками")
		}
	}

	// === REST API ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	restServer, err := api.NewRestServer(api.Config{
		Port:        restPort,
		Mines:       system,
		Progress:    repo,
		Tokens:      tokens,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("REST API: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- restServer.Start() }()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", restPort)
	logging.Info("   🪵 Уровни логов: %s", strings.Join(logging.ComponentLevels(), ", "))

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	system.Shutdown()

	if gridStore != nil {
		start := time.Now()
		if err := gridStore.SaveSnapshot(grid.Snapshot(), system.Allocations()); err != nil {
			logging.Error("❌ Ошибка сохранения сетки: %v", err)
		} else {
			logging.Info("💾 Сетка сохранена: %d блоков за %v", grid.BlockCount(), time.Since(start))
		}
	}

	logging.Info("👋 Сервер успешно остановлен")
	return nil
}

// openProgressRepo выбирает хранилище прогресса по конфигурации
func openProgressRepo(ctx context.Context, cfg config.StorageConfig) (storage.ProgressRepo, error) {
	var repo storage.ProgressRepo
	var err error

	switch cfg.Backend {
	case "", "memory":
		logging.Warn("⚠️ Прогресс игроков хранится в памяти и теряется при перезапуске")
		return storage.NewMemoryProgressRepo(), nil
	case "redis":
		repo, err = storage.NewRedisProgressRepo(ctx, storage.RedisConfig{URL: cfg.RedisURL})
	case "maria":
		repo, err = storage.NewMariaProgressRepo(ctx, cfg.MariaDSN)
	case "mongo":
		repo, err = storage.NewMongoProgressRepo(ctx, storage.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB})
	default:
		return nil, fmt.Errorf("неизвестный backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return repo, nil
	}

	cached, err := wrapWithCache(ctx, repo, cfg.Cache)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("кеш прогресса: %w", err)
	}
	return cached, nil
}

func wrapWithCache(ctx context.Context, repo storage.ProgressRepo, cfg config.ProgressCacheConfig) (storage.ProgressRepo, error) {
	var c cache.CacheRepo
	var err error
	if cfg.RedisURL != "" {
		c, err = cache.NewRedisCache(ctx, cfg.RedisURL, "deepmine:cache:")
	} else {
		c, err = cache.NewMemoryCache(cfg.MaxBytes)
	}
	if err != nil {
		return nil, err
	}

	var inv cache.CacheInvalidator
	if cfg.NATSURL != "" {
		nodeID := cfg.NodeID
		if nodeID == "" {
			nodeID = uuid.NewString()
		}
		inv, err = cache.NewNATSInvalidator(cfg.NATSURL, "", nodeID)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	cached, err := storage.NewCachedProgressRepo(repo, c, inv, cfg.TTL)
	if err != nil {
		if inv != nil {
			inv.Close()
		}
		c.Close()
		return nil, err
	}
	logging.Info("🗄️ Кеш прогресса включён (ttl=%v)", cfg.TTL)
	return cached, nil
}

// openEventBus подключает JetStream, если задан URL, иначе шину в памяти
func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
}
