package world

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/mesh"
	"github.com/annel0/procworld/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatSampler плоский рельеф на высоте h
type flatSampler struct{ h float64 }

func (s flatSampler) SampleColor(x, z float64) (biome.Params, biome.Color) {
	return biome.Params{FinalHeight: s.h}, biome.Color{R: 0.3, G: 0.6, B: 0.2}
}

func flatResult(job GenerationJob) GenerationResult {
	origin := job.Coords.Origin(job.ChunkSize)
	grid := mesh.SampleGrid(flatSampler{h: 1}, origin.X, origin.Y, job.ChunkSize, job.GridSize)
	return GenerationResult{
		JobID:   job.JobID,
		Coords:  job.Coords,
		Grid:    grid,
		Terrain: mesh.BuildTerrain(grid),
	}
}

// fakeGenerator общий для всех воркеров: ждёт gate и отдаёт плоский чанк.
// Первые failFirst вызовов возвращают усечённый меш.
type fakeGenerator struct {
	gate      chan struct{}
	failFirst int64
	calls     atomic.Int64
}

func newFakeGenerator(open bool) *fakeGenerator {
	g := &fakeGenerator{gate: make(chan struct{})}
	if open {
		close(g.gate)
	}
	return g
}

func (g *fakeGenerator) Generate(ctx context.Context, job GenerationJob) GenerationResult {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return GenerationResult{JobID: job.JobID, Coords: job.Coords, Err: ctx.Err()}
	}

	res := flatResult(job)
	if g.calls.Add(1) <= g.failFirst {
		res.Terrain.Positions = res.Terrain.Positions[:len(res.Terrain.Positions)-3]
	}
	return res
}

func (g *fakeGenerator) factory() Generator { return g }

func testStreaming(radius, workers int) config.StreamingConfig {
	return config.StreamingConfig{
		ChunkWorldSize: 16,
		GridSize:       5,
		RenderDistance: radius,
		Shape:          "square",
		Workers:        workers,
		MaxRetries:     2,
	}
}

func newTestManager(t *testing.T, cfg config.StreamingConfig, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, config.Default().Vegetation, config.DefaultTerrain(), opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// drain опрашивает менеджер, пока cond не выполнится
func drain(t *testing.T, m *Manager, cond func(Stats) bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for !cond(m.Stats()) {
		require.NoError(t, ctx.Err(), "Таймаут ожидания: %+v", m.Stats())
		_, err := m.PollWait(ctx)
		require.NoError(t, err, "Менеджер не дошёл до ожидаемого состояния: %+v", m.Stats())
	}
}

func allReady(s Stats) bool { return s.Ready == s.Tracked }

func TestUpdateChunks_TrackedMatchesNeeded(t *testing.T) {
	gen := newFakeGenerator(false)
	m := newTestManager(t, testStreaming(3, 4), WithGenerator(gen.factory))

	res := m.UpdateChunks(8, 8)
	assert.Len(t, res.Added, 49)
	assert.Empty(t, res.Evicted)

	needed := m.NeededSet(8, 8)
	tracked := m.TrackedCoords()
	assert.ElementsMatch(t, needed, tracked, "Набор отслеживаемых чанков должен совпадать с нужным")

	s := m.Stats()
	assert.Equal(t, 4, s.Generating, "В работе не больше размера пула")
	assert.Equal(t, 45, s.Queued)
	assert.Equal(t, 4, s.InFlight)
	assert.Equal(t, 45, s.QueueDepth)

	// ближние чанки уходят в работу первыми
	ch, ok := m.Chunk(vec.Vec2{X: 0, Y: 0})
	require.True(t, ok)
	assert.Equal(t, Generating, ch.State, "Чанк зрителя генерируется первым")
}

func TestUpdateChunks_InFlightNeverExceedsPool(t *testing.T) {
	gen := newFakeGenerator(true)
	m := newTestManager(t, testStreaming(3, 4), WithGenerator(gen.factory))
	m.UpdateChunks(0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for !allReady(m.Stats()) {
		s := m.Stats()
		require.LessOrEqual(t, s.InFlight, 4)
		require.LessOrEqual(t, s.Generating, 4)
		_, err := m.PollWait(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 49, m.Stats().Ready)
	assert.Equal(t, uint64(49), m.Stats().Generated)
}

func TestUpdateChunks_MoveEvictsAndAdds(t *testing.T) {
	gen := newFakeGenerator(true)
	m := newTestManager(t, testStreaming(3, 4), WithGenerator(gen.factory))
	m.UpdateChunks(8, 8)
	drain(t, m, allReady)

	res := m.UpdateChunks(5*16+8, 8)
	assert.Len(t, res.Evicted, 35, "Пять столбцов по семь чанков выходят из радиуса")
	assert.Len(t, res.Added, 35)
	assert.Len(t, m.TrackedCoords(), 49)

	for _, c := range res.Evicted {
		_, ok := m.Chunk(c)
		assert.False(t, ok, "Выгруженный чанк (%d,%d) не должен отслеживаться", c.X, c.Y)
	}

	// сохранённые столбцы остаются готовыми
	ch, ok := m.Chunk(vec.Vec2{X: 3, Y: 0})
	require.True(t, ok)
	assert.Equal(t, Ready, ch.State)

	drain(t, m, allReady)
	assert.Equal(t, uint64(35), m.Stats().Evicted)
}

func TestUpdateChunks_DiamondShape(t *testing.T) {
	gen := newFakeGenerator(false)
	cfg := testStreaming(2, 2)
	cfg.Shape = "diamond"
	m := newTestManager(t, cfg, WithGenerator(gen.factory))

	res := m.UpdateChunks(0, 0)
	assert.Len(t, res.Added, 13)
	_, ok := m.Chunk(vec.Vec2{X: 2, Y: 1})
	assert.False(t, ok, "Угловой чанк вне ромба")
	_, ok = m.Chunk(vec.Vec2{X: 1, Y: 1})
	assert.True(t, ok)
}

func TestQueries_UnknownUntilReady(t *testing.T) {
	gen := newFakeGenerator(false)
	m := newTestManager(t, testStreaming(0, 1), WithGenerator(gen.factory))
	m.UpdateChunks(8, 8)

	assert.True(t, math.IsInf(m.GetHeightAt(8, 8), -1), "Высота неготового чанка должна быть -Inf")
	assert.Equal(t, biome.UnknownName, m.GetBiomeAt(8, 8))
	assert.False(t, m.IsReady(vec.Vec2{}))

	close(gen.gate)
	drain(t, m, allReady)
	assert.True(t, m.IsReady(vec.Vec2{}))

	assert.InDelta(t, 1.0, m.GetHeightAt(8, 8), 1e-9)
	assert.NotEqual(t, biome.UnknownName, m.GetBiomeAt(8, 8))
	assert.True(t, math.IsInf(m.GetHeightAt(100, 100), -1), "Точка вне отслеживаемых чанков")
}

func TestGetHeightAt_ExactAtVertices(t *testing.T) {
	cfg := testStreaming(0, 1)
	cfg.GridSize = 9
	cfg.Vegetation = true
	m := newTestManager(t, cfg)
	m.UpdateChunks(8, 8)
	drain(t, m, allReady)

	model := biome.NewModel(config.DefaultTerrain())
	step := cfg.ChunkWorldSize / float64(cfg.GridSize-1)
	for j := 0; j < cfg.GridSize; j++ {
		for i := 0; i < cfg.GridSize; i++ {
			x, z := float64(i)*step, float64(j)*step
			if i == cfg.GridSize-1 || j == cfg.GridSize-1 {
				// крайний ряд принадлежит соседнему чанку
				continue
			}
			assert.Equal(t, model.Height(x, z), m.GetHeightAt(x, z), "Высота в вершине (%d,%d) должна совпадать с полем", i, j)
		}
	}
}

func TestPoll_DiscardsStaleResult(t *testing.T) {
	gen := newFakeGenerator(false)
	m := newTestManager(t, testStreaming(0, 1), WithGenerator(gen.factory))

	m.UpdateChunks(8, 8)
	require.Equal(t, 1, m.Stats().Generating)

	// уходим: старое задание ещё в воркере
	res := m.UpdateChunks(10*16+8, 8)
	require.Len(t, res.Evicted, 1)
	assert.Equal(t, 1, m.Stats().InFlight, "Слот занят до прихода результата")

	close(gen.gate)
	drain(t, m, allReady)

	s := m.Stats()
	assert.Equal(t, uint64(1), s.Stale, "Результат выгруженного чанка должен быть отброшен")
	assert.Equal(t, uint64(1), s.Generated)
	_, ok := m.Chunk(vec.Vec2{X: 0, Y: 0})
	assert.False(t, ok)
}

func TestPoll_RetriesMalformedResult(t *testing.T) {
	gen := newFakeGenerator(true)
	gen.failFirst = 1
	m := newTestManager(t, testStreaming(0, 1), WithGenerator(gen.factory))

	m.UpdateChunks(8, 8)
	drain(t, m, allReady)

	s := m.Stats()
	assert.Equal(t, uint64(1), s.Malformed)
	assert.Equal(t, uint64(1), s.Generated)
	assert.Equal(t, int64(2), gen.calls.Load())
}

func TestPoll_GivesUpAfterMaxRetries(t *testing.T) {
	gen := newFakeGenerator(true)
	gen.failFirst = 100
	m := newTestManager(t, testStreaming(0, 1), WithGenerator(gen.factory))

	m.UpdateChunks(8, 8)
	drain(t, m, func(s Stats) bool { return s.Unloaded == 1 })

	s := m.Stats()
	assert.Equal(t, uint64(3), s.Malformed, "Одна попытка и два повтора")
	assert.Equal(t, 0, s.Ready)
	assert.True(t, math.IsInf(m.GetHeightAt(8, 8), -1))
}

func TestSetTerrainParams_InvalidatesEverything(t *testing.T) {
	gen := newFakeGenerator(true)
	m := newTestManager(t, testStreaming(1, 2), WithGenerator(gen.factory))
	m.UpdateChunks(8, 8)
	drain(t, m, allReady)

	assert.False(t, m.SetTerrainParams(config.DefaultTerrain()), "Те же параметры ничего не меняют")

	p := config.DefaultTerrain()
	p.Seed = "другой"
	require.True(t, m.SetTerrainParams(p))
	assert.Equal(t, p, m.TerrainParams())

	s := m.Stats()
	assert.Equal(t, 9, s.Tracked, "Чанки заново поставлены в очередь вокруг зрителя")
	assert.Equal(t, 0, s.Ready)

	drain(t, m, allReady)
	assert.Equal(t, uint64(18), m.Stats().Generated)
}

func TestSetTerrainParams_OldJobBecomesStale(t *testing.T) {
	gen := newFakeGenerator(false)
	m := newTestManager(t, testStreaming(0, 1), WithGenerator(gen.factory))
	m.UpdateChunks(8, 8)

	p := config.DefaultTerrain()
	p.Scale = 2
	require.True(t, m.SetTerrainParams(p))

	close(gen.gate)
	drain(t, m, allReady)
	assert.Equal(t, uint64(1), m.Stats().Stale)
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	gen := newFakeGenerator(true)
	m := newTestManager(t, testStreaming(1, 2), WithGenerator(gen.factory), WithRegisterer(reg))

	m.UpdateChunks(8, 8)
	drain(t, m, allReady)
	m.Poll()

	assert.Equal(t, 9.0, testutil.ToFloat64(m.metrics.generated))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.metrics.chunks.WithLabelValues("Ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.metrics.inflight))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestNewManager_RejectsInvalid(t *testing.T) {
	_, err := NewManager(testStreaming(-1, 1), config.Default().Vegetation, config.DefaultTerrain())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
