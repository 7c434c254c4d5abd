package sim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/creature"
	"github.com/annel0/procworld/internal/eventbus"
	"github.com/annel0/procworld/internal/flock"
	"github.com/annel0/procworld/internal/logging"
	"github.com/annel0/procworld/internal/physics"
	"github.com/annel0/procworld/internal/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrStopped цикл кадров уже остановлен
var ErrStopped = errors.New("simulation stopped")

// statsEvery период сводки в логе
const statsEvery = 5 * time.Second

// Camera источник позиции зрителя (слой ввода)
type Camera interface {
	Position(t float64) mgl64.Vec3
}

// CameraFunc адаптер функции к Camera
type CameraFunc func(t float64) mgl64.Vec3

// Position реализует Camera
func (f CameraFunc) Position(t float64) mgl64.Vec3 { return f(t) }

// Snapshot неизменяемый снимок кадра для рендера и API
type Snapshot struct {
	Frame    uint64               `json:"frame"`
	Time     float64              `json:"time"`
	Viewer   mgl64.Vec3           `json:"viewer"`
	Params   config.TerrainParams `json:"params"`
	Chunks   world.Stats          `json:"chunks"`
	Creature *creature.Pose       `json:"creature,omitempty"`
	Birds    []flock.BirdPose     `json:"birds"`
	Flocks   int                  `json:"flocks"`
}

// World владелец цикла кадров: стриминг, существо и стаи живут в одной горутине.
// Другие горутины обращаются к ним только через Exec и Snapshot.
type World struct {
	cfg      *config.Config
	manager  *world.Manager
	flocks   *flock.System
	creature *creature.Agent
	bus      eventbus.EventBus

	exec chan task
	snap atomic.Pointer[Snapshot]
	done chan struct{}

	frame     uint64
	time      float64
	viewer    mgl64.Vec3
	lastStats time.Time
}

type task struct {
	fn   func(*World)
	done chan struct{}
}

// New собирает мир. bus и reg могут быть nil.
func New(cfg *config.Config, bus eventbus.EventBus, reg prometheus.Registerer, opts ...world.Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts = append([]world.Option{world.WithEventBus(bus), world.WithRegisterer(reg)}, opts...)
	mgr, err := world.NewManager(cfg.Streaming, cfg.Vegetation, cfg.Terrain, opts...)
	if err != nil {
		return nil, err
	}

	w := &World{
		cfg:     cfg,
		manager: mgr,
		flocks:  flock.New(cfg.Flock, cfg.Terrain.Seed, bus),
		bus:     bus,
		exec:    make(chan task, 64),
		done:    make(chan struct{}),
	}
	w.snap.Store(&Snapshot{Params: cfg.Terrain})
	return w, nil
}

// Manager стриминг чанков. Доступен только из цикла кадров (внутри Exec).
func (w *World) Manager() *world.Manager { return w.manager }

// ground высота мира как GroundFunc физики
func (w *World) ground() physics.GroundFunc {
	return physics.GroundFromWorld(w.manager.GetHeightAt)
}

// ClampViewer поднимает камеру на высоту глаз над землёй. Без данных о высоте
// позиция не меняется.
func (w *World) ClampViewer(v mgl64.Vec3) mgl64.Vec3 {
	h := w.manager.GetHeightAt(v[0], v[2])
	if math.IsInf(h, 0) || math.IsNaN(h) {
		return v
	}
	if floor := h + w.cfg.Sim.EyeHeight; v[1] < floor {
		v[1] = floor
	}
	return v
}

// Frame один кадр. dt ограничивается sim.max_delta.
func (w *World) Frame(dt float64, viewer mgl64.Vec3) {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	dt = min(dt, w.cfg.Sim.MaxDelta)

	w.drainExec()

	w.viewer = viewer
	w.time += dt
	w.frame++

	w.manager.UpdateChunks(viewer[0], viewer[2])
	w.manager.Poll()

	if w.cfg.Creature.Enabled {
		w.stepCreature(dt)
	}
	w.flocks.Update(dt, viewer, w.manager)

	w.publishSnapshot()
}

func (w *World) stepCreature(dt float64) {
	if w.creature == nil {
		c := w.cfg.Creature
		// существо появляется, когда под ним есть готовая земля
		if h := w.manager.GetHeightAt(c.SpawnX, c.SpawnZ); math.IsInf(h, -1) {
			return
		}
		agent, err := creature.New(creature.ParamsFromConfig(c), c.SpawnX, c.SpawnZ, w.ground())
		if err != nil {
			logging.Error("❌ Существо не создано: %v", err)
			w.cfg.Creature.Enabled = false
			return
		}
		w.creature = agent
		logging.Info("🦎 Существо появилось в (%.1f, %.1f)", c.SpawnX, c.SpawnZ)
		w.publish(eventbus.TypeCreatureSpawn, agent.Position())
		return
	}
	w.creature.Tick(dt, w.ground())
}

func (w *World) publishSnapshot() {
	s := &Snapshot{
		Frame:  w.frame,
		Time:   w.time,
		Viewer: w.viewer,
		Params: w.manager.TerrainParams(),
		Chunks: w.manager.Stats(),
		Birds:  w.flocks.Birds(),
		Flocks: w.flocks.Flocks(),
	}
	if w.creature != nil {
		pose := w.creature.Pose(w.ground())
		s.Creature = &pose
	}
	w.snap.Store(s)
}

// Snapshot последний опубликованный кадр; безопасно из любой горутины
func (w *World) Snapshot() *Snapshot {
	return w.snap.Load()
}

// SetTerrainParams меняет рельеф; стаи и существо пересоздаются на новом мире
func (w *World) SetTerrainParams(p config.TerrainParams) bool {
	if !w.manager.SetTerrainParams(p) {
		return false
	}
	w.cfg.Terrain = p
	w.flocks.Reset(p.Seed)
	w.creature = nil
	return true
}

// SetCreatureGoal ведёт существо к мировой точке (x, z). false, если существа ещё нет.
func (w *World) SetCreatureGoal(x, z float64) bool {
	if w.creature == nil {
		return false
	}
	w.creature.SetGoal(x, z)
	logging.Debug("🎯 Цель существа: (%.1f, %.1f)", x, z)
	return true
}

// Exec выполняет fn в цикле кадров и ждёт завершения
func (w *World) Exec(ctx context.Context, fn func(*World)) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case w.exec <- t:
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-t.done:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) drainExec() {
	for {
		select {
		case t := <-w.exec:
			t.fn(w)
			close(t.done)
		default:
			return
		}
	}
}

// Run крутит кадры с частотой sim.fps до отмены ctx
func (w *World) Run(ctx context.Context, cam Camera) error {
	defer close(w.done)

	ticker := time.NewTicker(time.Second / time.Duration(w.cfg.Sim.FPS))
	defer ticker.Stop()

	logging.Info("▶️ Цикл кадров запущен: %d fps", w.cfg.Sim.FPS)
	last := time.Now()
	w.lastStats = last

	for {
		select {
		case <-ctx.Done():
			logging.Info("⏹️ Цикл кадров остановлен на кадре %d", w.frame)
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			viewer := w.ClampViewer(cam.Position(w.time + dt))
			w.Frame(dt, viewer)

			if now.Sub(w.lastStats) >= statsEvery {
				w.lastStats = now
				w.logStats()
			}
		}
	}
}

func (w *World) logStats() {
	s := w.manager.Stats()
	logging.Info("📊 Кадр %d: чанков %d (готово %d, в очереди %d, в работе %d), птиц %d, биом под камерой %s",
		w.frame, s.Tracked, s.Ready, s.Queued, s.Generating, w.flocks.Count(),
		w.manager.GetBiomeAt(w.viewer[0], w.viewer[2]))
}

// Close останавливает пул воркеров
func (w *World) Close() {
	w.manager.Close()
}

func (w *World) publish(eventType string, payload any) {
	if w.bus == nil {
		return
	}
	_ = w.bus.Publish(context.Background(), eventbus.NewEnvelope("sim", eventType, payload))
}
