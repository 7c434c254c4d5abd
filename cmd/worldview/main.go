package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/procworld/internal/api"
	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/eventbus"
	"github.com/annel0/procworld/internal/logging"
	"github.com/annel0/procworld/internal/observability"
	"github.com/annel0/procworld/internal/sim"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $PROCWORLD_CONFIG)")
	seed := flag.String("seed", "", "переопределить seed мира")
	duration := flag.Duration("duration", 0, "остановиться через указанное время (0 - работать до сигнала)")
	speed := flag.Float64("camera-speed", 12, "скорость камеры, м/с")
	flag.Parse()

	if err := logging.InitDefaultLogger("worldview"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка загрузки конфигурации: %v", err)
		os.Exit(1)
	}
	if *seed != "" {
		cfg.Terrain.Seed = *seed
	}

	level := logging.ParseLevel(cfg.Debug.LogLevel)
	logging.SetDefaultLevel(level)
	apiLog := logging.GetAPILogger()
	apiLog.SetLevels(level, logging.TRACE)
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🌍 Запуск procworld: seed=%q, чанк %.0f, радиус %d, воркеров %d",
		cfg.Terrain.Seed, cfg.Streaming.ChunkWorldSize, cfg.Streaming.RenderDistance, cfg.Streaming.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("⚠️ OpenTelemetry не инициализирован: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("⚠️ Ошибка остановки OpenTelemetry: %v", err)
		}
	}()

	// === Метрики и события ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus := eventbus.NewMemoryBus(1024)
	defer bus.Close()
	if err := eventbus.RegisterMetrics(reg, bus); err != nil {
		logging.Warn("⚠️ Метрики шины событий не зарегистрированы: %v", err)
	}
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ Логирование событий не запущено: %v", err)
	}

	// === Мир ===
	world, err := sim.New(cfg, bus, reg)
	if err != nil {
		logging.Error("❌ Ошибка создания мира: %v", err)
		os.Exit(1)
	}
	defer world.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return world.Run(gctx, flightPath(*speed))
	})

	if cfg.Debug.Enabled {
		server := api.NewRestServer(api.Config{
			Addr:     cfg.Debug.DebugAddr(),
			World:    world,
			Registry: reg,
			Logger:   apiLog,
			Service:  cfg.Telemetry.ServiceName,
		})
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
		logging.Info("   ❤️  Health check: http://localhost%s/health", cfg.Debug.DebugAddr())
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("❌ Завершение с ошибкой: %v", err)
		os.Exit(1)
	}

	snap := world.Snapshot()
	logging.Info("👋 Остановлено: %d кадров, чанков готово %d, сгенерировано %d, птиц %d",
		snap.Frame, snap.Chunks.Ready, snap.Chunks.Generated, len(snap.Birds))
}

// flightPath сценарная камера: летит вдоль X, плавно виляя по Z
func flightPath(speed float64) sim.Camera {
	return sim.CameraFunc(func(t float64) mgl64.Vec3 {
		x := t * speed
		z := 120 * math.Sin(t*0.05)
		return mgl64.Vec3{x, 0, z}
	})
}
