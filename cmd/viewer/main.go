package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/scc-replay/internal/api"
	"github.com/annel0/scc-replay/internal/app"
	"github.com/annel0/scc-replay/internal/config"
	"github.com/annel0/scc-replay/internal/engine"
	"github.com/annel0/scc-replay/internal/eventbus"
	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/metrics"
	"github.com/annel0/scc-replay/internal/observability"
	"github.com/annel0/scc-replay/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или SCC_CONFIG)")
	filePath := flag.String("file", "", "файл записи для автозагрузки")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}

	level := logging.ParseLevel(cfg.Log.GetLevel())
	logOpts := logging.DefaultOptions()
	logOpts.Dir = cfg.Log.GetDir()
	logOpts.ConsoleLevel = level
	if cfg.Log.MaxSizeMB > 0 {
		logOpts.MaxSizeMB = cfg.Log.MaxSizeMB
	}
	if cfg.Log.MaxBackups > 0 {
		logOpts.MaxBackups = cfg.Log.MaxBackups
	}
	if cfg.Log.MaxAgeDays > 0 {
		logOpts.MaxAgeDays = cfg.Log.MaxAgeDays
	}
	logOpts.Compress = cfg.Log.Compress
	logging.Configure(logOpts)

	if err := logging.InitDefaultLogger("viewer"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("📼 Запуск SCC Replay Viewer...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === OBSERVABILITY ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.GetServiceName(), cfg.Telemetry.Enabled, logging.GetComponentLogger("telemetry"))
	if err != nil {
		logging.Warn("OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.NewEngine(reg)

	// === КЕШ ОБЪЕМОВ ===
	cache, err := storage.NewVolumeCache(cfg.Storage.GetVolumeCacheDir(), logging.GetComponentLogger("storage"))
	if err != nil {
		logging.Error("❌ Ошибка открытия кеша объемов: %v", err)
		os.Exit(1)
	}
	defer cache.Close()
	metrics.RegisterCacheStats(reg,
		func() float64 { return float64(cache.Stats().Hits) },
		func() float64 { return float64(cache.Stats().Misses) },
	)

	// === ШИНА СОБЫТИЙ ===
	bus := newEventBus(&cfg.EventBus)
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger("eventbus")); err != nil {
		logging.Warn("слушатель событий не запущен: %v", err)
	}
	go eventbus.NewMetricsExporter(bus, reg).Run(ctx)

	// === ДВИЖОК И ХОСТ ===
	opts := engine.OptionsFromConfig(cfg)
	opts.VolumeCache = cache
	opts.Logger = logging.GetEngineLogger()
	opts.Metrics = engineMetrics
	opts.Bus = bus
	viewer := app.NewViewer(engine.New(opts), app.Options{
		TickInterval: cfg.Engine.GetTickInterval(),
		Logger:       logging.GetComponentLogger("viewer"),
	})

	autoload := *filePath
	if autoload == "" {
		autoload = cfg.Engine.AutoloadPath
	}
	if autoload != "" {
		if _, err := viewer.Load(ctx, autoload); err != nil {
			logging.Error("❌ Автозагрузка %s: %v", autoload, err)
		}
	}

	// === REST API ===
	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	server := api.NewRestServer(api.Config{
		Addr:        restAddr,
		ServiceName: "scc_api",
		Viewer:      viewer,
		Registry:    reg,
		Logger:      logging.GetAPILogger(),
	})
	go func() {
		if err := server.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
			stop()
		}
	}()

	logging.Info("✅ Viewer запущен")
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)
	logging.Info("   📊 Метрики: http://localhost%s/metrics", restAddr)

	if err := viewer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("цикл тиков: %v", err)
	}

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Завершение работы...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Warn("остановка OpenTelemetry: %v", err)
	}
	logging.Info("👋 Viewer остановлен")
}

// newEventBus JetStream при заданном URL, иначе шина в памяти
func newEventBus(cfg *config.EventBusConfig) eventbus.EventBus {
	if url := cfg.GetURL(); url != "" {
		bus, err := eventbus.NewJetStreamBus(url, cfg.GetStream(), cfg.GetRetention())
		if err == nil {
			logging.Info("📨 События публикуются в JetStream %s (стрим %s)", url, cfg.GetStream())
			return bus
		}
		logging.Warn("JetStream недоступен (%v), используется шина в памяти", err)
	}
	return eventbus.NewMemoryBus(cfg.GetCapacity())
}
