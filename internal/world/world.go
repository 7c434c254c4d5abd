package world

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/eventbus"
	"github.com/annel0/procworld/internal/logging"
	"github.com/annel0/procworld/internal/vec"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var errPanic = errors.New("generator panic")

// ErrMalformedResult результат воркера не прошёл проверку
var ErrMalformedResult = errors.New("malformed generation result")

// ChunkEvent полезная нагрузка событий жизненного цикла чанка
type ChunkEvent struct {
	Coords   vec.Vec2
	State    string
	Vertices int
	Trees    int
}

// Stats снимок счётчиков менеджера
type Stats struct {
	Tracked    int
	Unloaded   int
	Queued     int
	Generating int
	Ready      int
	InFlight   int
	QueueDepth int
	PoolSize   int

	Generated uint64
	Stale     uint64
	Malformed uint64
	Evicted   uint64
}

// UpdateResult изменения набора чанков после UpdateChunks
type UpdateResult struct {
	Added   []vec.Vec2
	Evicted []vec.Vec2
}

// Manager стриминг чанков вокруг зрителя. Все методы вызываются из одной
// горутины (цикла кадров); параллельно работают только воркеры пула.
type Manager struct {
	cfg    config.StreamingConfig
	veg    config.VegetationConfig
	params config.TerrainParams
	query  *biome.Model // для GetBiomeAt

	chunks map[vec.Vec2]*Chunk
	queue  []vec.Vec2 // FIFO координат в состоянии Queued
	pool   *Pool

	viewer    vec.Vec2Float
	hasViewer bool

	metrics *Metrics
	bus     eventbus.EventBus
	stats   Stats
}

// Option настройка менеджера
type Option func(*managerOptions)

type managerOptions struct {
	factory GeneratorFactory
	reg     prometheus.Registerer
	bus     eventbus.EventBus
}

// WithGenerator подменяет генератор воркеров
func WithGenerator(f GeneratorFactory) Option {
	return func(o *managerOptions) { o.factory = f }
}

// WithRegisterer регистрирует метрики стриминга
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *managerOptions) { o.reg = reg }
}

// WithEventBus публикует события жизненного цикла чанков
func WithEventBus(bus eventbus.EventBus) Option {
	return func(o *managerOptions) { o.bus = bus }
}

// NewManager создаёт менеджер и запускает пул воркеров
func NewManager(cfg config.StreamingConfig, veg config.VegetationConfig, params config.TerrainParams, opts ...Option) (*Manager, error) {
	if cfg.ChunkWorldSize <= 0 || cfg.GridSize < 2 || cfg.Workers < 1 || cfg.RenderDistance < 0 {
		return nil, fmt.Errorf("%w: streaming %+v", config.ErrInvalidConfig, cfg)
	}

	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		cfg:     cfg,
		veg:     veg,
		params:  params,
		query:   biome.NewModel(params),
		chunks:  make(map[vec.Vec2]*Chunk),
		pool:    NewPool(cfg.Workers, o.factory),
		metrics: NewMetrics(o.reg),
		bus:     o.bus,
	}

	logging.Info("🌍 Стриминг чанков: размер %.0f, сетка %d, радиус %d (%s), воркеров %d",
		cfg.ChunkWorldSize, cfg.GridSize, cfg.RenderDistance, cfg.Shape, cfg.Workers)
	return m, nil
}

// Close останавливает пул воркеров
func (m *Manager) Close() {
	m.pool.Close()
}

// ChunkSize мировой размер чанка
func (m *Manager) ChunkSize() float64 { return m.cfg.ChunkWorldSize }

// RenderDistance радиус видимости в чанках
func (m *Manager) RenderDistance() int { return m.cfg.RenderDistance }

// TerrainParams текущие параметры рельефа
func (m *Manager) TerrainParams() config.TerrainParams { return m.params }

// inRange входит ли чанк c в радиус вокруг center
func (m *Manager) inRange(center, c vec.Vec2) bool {
	if m.cfg.Shape == "diamond" {
		return center.Manhattan(c) <= m.cfg.RenderDistance
	}
	return center.Chebyshev(c) <= m.cfg.RenderDistance
}

// NeededSet координаты чанков, нужных зрителю в мировой точке (x, z),
// упорядоченные от ближних к дальним (при равенстве по координатам)
func (m *Manager) NeededSet(viewerX, viewerZ float64) []vec.Vec2 {
	center := vec.ChunkOf(viewerX, viewerZ, m.cfg.ChunkWorldSize)
	r := m.cfg.RenderDistance

	needed := make([]vec.Vec2, 0, (2*r+1)*(2*r+1))
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			c := center.Add(vec.Vec2{X: dx, Y: dz})
			if m.inRange(center, c) {
				needed = append(needed, c)
			}
		}
	}

	sort.Slice(needed, func(i, j int) bool {
		di, dj := needed[i].DistanceTo(center), needed[j].DistanceTo(center)
		if di != dj {
			return di < dj
		}
		return needed[i].Less(needed[j])
	})
	return needed
}

// UpdateChunks приводит набор отслеживаемых чанков к нужному набору:
// лишние выгружаются в любом состоянии, новые ставятся в очередь.
func (m *Manager) UpdateChunks(viewerX, viewerZ float64) UpdateResult {
	m.viewer = vec.Vec2Float{X: viewerX, Y: viewerZ}
	m.hasViewer = true

	center := vec.ChunkOf(viewerX, viewerZ, m.cfg.ChunkWorldSize)
	var res UpdateResult

	// выгрузка
	for c, ch := range m.chunks {
		if m.inRange(center, c) {
			continue
		}
		m.evict(ch)
		res.Evicted = append(res.Evicted, c)
	}
	if len(res.Evicted) > 0 {
		m.pruneQueue()
		sort.Slice(res.Evicted, func(i, j int) bool { return res.Evicted[i].Less(res.Evicted[j]) })
	}

	// постановка новых в очередь, ближние первыми
	for _, c := range m.NeededSet(viewerX, viewerZ) {
		if _, ok := m.chunks[c]; ok {
			continue
		}
		ch := NewChunk(c, m.cfg.ChunkWorldSize)
		m.chunks[c] = ch
		m.enqueue(ch)
		res.Added = append(res.Added, c)
	}

	if len(res.Added) > 0 || len(res.Evicted) > 0 {
		logging.Debug("🧭 Зритель в чанке (%d,%d): +%d / -%d, в очереди %d",
			center.X, center.Y, len(res.Added), len(res.Evicted), len(m.queue))
	}

	m.dispatch()
	m.observe()
	return res
}

func (m *Manager) enqueue(ch *Chunk) {
	ch.State = Queued
	ch.JobID = uuid.NewString()
	m.queue = append(m.queue, ch.Coords)
}

// evict удаляет чанк из карты. Результат его задания, если он ещё считается,
// будет отброшен по промаху в карте или несовпадению JobID.
func (m *Manager) evict(ch *Chunk) {
	state := ch.State
	ch.release()
	delete(m.chunks, ch.Coords)
	m.stats.Evicted++
	m.metrics.evicted.Inc()

	logging.LogChunkEvicted(ch.Coords.X, ch.Coords.Y, state.String())
	m.publish(eventbus.TypeChunkEvicted, ChunkEvent{Coords: ch.Coords, State: state.String()})
}

// pruneQueue убирает из очереди координаты, которые больше не в состоянии Queued
func (m *Manager) pruneQueue() {
	kept := m.queue[:0]
	for _, c := range m.queue {
		if ch, ok := m.chunks[c]; ok && ch.State == Queued {
			kept = append(kept, c)
		}
	}
	m.queue = kept
}

// dispatch раздаёт задания из головы очереди свободным слотам
func (m *Manager) dispatch() {
	for len(m.queue) > 0 {
		slot := m.pool.idleSlot()
		if slot < 0 {
			return
		}

		c := m.queue[0]
		m.queue = m.queue[1:]

		ch, ok := m.chunks[c]
		if !ok || ch.State != Queued {
			continue
		}

		ch.State = Generating
		m.pool.dispatch(slot, GenerationJob{
			JobID:      ch.JobID,
			Coords:     c,
			Params:     m.params,
			ChunkSize:  m.cfg.ChunkWorldSize,
			GridSize:   m.cfg.GridSize,
			Vegetation: m.cfg.Vegetation,
			VegConfig:  m.veg,
		})
	}
}

// Poll забирает все готовые результаты без блокировки и раздаёт освободившиеся слоты.
// Возвращает число установленных чанков.
func (m *Manager) Poll() int {
	installed := 0
	for {
		select {
		case res := <-m.pool.Results():
			if m.handle(res) {
				installed++
			}
		default:
			m.dispatch()
			m.observe()
			return installed
		}
	}
}

// PollWait ждёт хотя бы один результат (или отмены ctx), затем работает как Poll
func (m *Manager) PollWait(ctx context.Context) (int, error) {
	if m.pool.InFlight() == 0 {
		return m.Poll(), nil
	}

	select {
	case res := <-m.pool.Results():
		installed := 0
		if m.handle(res) {
			installed++
		}
		return installed + m.Poll(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// handle сопоставляет результат с чанком по координатам и JobID
func (m *Manager) handle(res GenerationResult) bool {
	m.pool.complete(res.Slot)

	ch, ok := m.chunks[res.Coords]
	if !ok || ch.State != Generating || ch.JobID != res.JobID {
		m.stats.Stale++
		m.metrics.stale.Inc()
		logging.Trace("Отброшен устаревший результат для чанка (%d,%d)", res.Coords.X, res.Coords.Y)
		return false
	}

	if err := m.validate(&res); err != nil {
		m.stats.Malformed++
		m.metrics.malformed.Inc()
		ch.Retries++
		if ch.Retries > m.cfg.MaxRetries {
			logging.Error("❌ Чанк (%d,%d): генерация не удалась %d раз, оставлен пустым: %v",
				ch.Coords.X, ch.Coords.Y, ch.Retries, err)
			ch.State = Unloaded
			ch.JobID = ""
			return false
		}
		logging.Warn("⚠️ Чанк (%d,%d): некорректный результат, повтор %d: %v", ch.Coords.X, ch.Coords.Y, ch.Retries, err)
		m.enqueue(ch)
		return false
	}

	ch.Terrain = res.Terrain
	ch.Water = res.Water
	ch.Vegetation = res.Vegetation
	ch.Trees = res.Trees
	ch.Grid = res.Grid
	ch.State = Ready
	ch.Retries = 0

	m.stats.Generated++
	m.metrics.generated.Inc()
	m.metrics.duration.Observe(res.Took.Seconds())

	logging.LogChunkReady(ch.Coords.X, ch.Coords.Y, ch.VertexCount(), ch.Bytes(), res.Took)
	m.publish(eventbus.TypeChunkReady, ChunkEvent{
		Coords:   ch.Coords,
		State:    Ready.String(),
		Vertices: ch.VertexCount(),
		Trees:    len(ch.Trees),
	})
	return true
}

// validate не пускает усечённые буферы в путь рендера
func (m *Manager) validate(res *GenerationResult) error {
	if res.Err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResult, res.Err)
	}
	n := m.cfg.GridSize
	if res.Grid == nil || res.Grid.Size != n || len(res.Grid.Heights) != n*n {
		return fmt.Errorf("%w: сетка высот не %dx%d", ErrMalformedResult, n, n)
	}
	if res.Terrain == nil {
		return fmt.Errorf("%w: нет меша рельефа", ErrMalformedResult)
	}
	if want := (n - 1) * (n - 1) * 6; res.Terrain.VertexCount != want {
		return fmt.Errorf("%w: рельеф %d вершин, ожидалось %d", ErrMalformedResult, res.Terrain.VertexCount, want)
	}
	for _, g := range []interface{ Validate() error }{res.Terrain, res.Water, res.Vegetation} {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SetTerrainParams применяет новые параметры рельефа. Любое изменение
// инвалидирует все чанки; они заново ставятся в очередь вокруг зрителя.
func (m *Manager) SetTerrainParams(p config.TerrainParams) bool {
	if p == m.params {
		return false
	}
	m.params = p
	m.query = biome.NewModel(p)

	for _, ch := range m.chunks {
		m.evict(ch)
	}
	m.queue = m.queue[:0]

	logging.Info("🔄 Параметры рельефа изменены (seed=%q), все чанки сброшены", p.Seed)
	m.publish(eventbus.TypeTerrainChanged, p)

	if m.hasViewer {
		m.UpdateChunks(m.viewer.X, m.viewer.Y)
	}
	return true
}

// GetHeightAt высота поверхности в мировой точке. Если чанк не готов,
// возвращает -Inf: вызывающий не должен прижимать движение или ставить объекты.
func (m *Manager) GetHeightAt(x, z float64) float64 {
	ch, ok := m.chunks[vec.ChunkOf(x, z, m.cfg.ChunkWorldSize)]
	if !ok || ch.State != Ready || ch.Grid == nil {
		return math.Inf(-1)
	}
	return ch.Grid.HeightAt(x, z)
}

// GetBiomeAt имя доминирующего биома или "Unknown" для точки без данных
func (m *Manager) GetBiomeAt(x, z float64) string {
	ch, ok := m.chunks[vec.ChunkOf(x, z, m.cfg.ChunkWorldSize)]
	if !ok || ch.State != Ready {
		return biome.UnknownName
	}
	return m.query.DominantBiome(x, z)
}

// Chunk возвращает отслеживаемый чанк
func (m *Manager) Chunk(c vec.Vec2) (*Chunk, bool) {
	ch, ok := m.chunks[c]
	return ch, ok
}

// IsReady готов ли чанк
func (m *Manager) IsReady(c vec.Vec2) bool {
	ch, ok := m.chunks[c]
	return ok && ch.State == Ready
}

// TrackedCoords отсортированные координаты отслеживаемых чанков
func (m *Manager) TrackedCoords() []vec.Vec2 {
	out := make([]vec.Vec2, 0, len(m.chunks))
	for c := range m.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ReadyChunks готовые чанки в детерминированном порядке
func (m *Manager) ReadyChunks() []*Chunk {
	out := make([]*Chunk, 0, len(m.chunks))
	for _, c := range m.TrackedCoords() {
		if ch := m.chunks[c]; ch.State == Ready {
			out = append(out, ch)
		}
	}
	return out
}

// Stats снимок счётчиков
func (m *Manager) Stats() Stats {
	s := m.stats
	s.Tracked = len(m.chunks)
	s.Unloaded, s.Queued, s.Generating, s.Ready = 0, 0, 0, 0
	for _, ch := range m.chunks {
		switch ch.State {
		case Unloaded:
			s.Unloaded++
		case Queued:
			s.Queued++
		case Generating:
			s.Generating++
		case Ready:
			s.Ready++
		}
	}
	s.InFlight = m.pool.InFlight()
	s.QueueDepth = len(m.queue)
	s.PoolSize = m.pool.Size()
	return s
}

func (m *Manager) observe() {
	m.metrics.observeStates(m.Stats())
}

func (m *Manager) publish(eventType string, payload any) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(context.Background(), eventbus.NewEnvelope("world", eventType, payload))
}
