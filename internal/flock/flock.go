package flock

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/eventbus"
	"github.com/annel0/procworld/internal/logging"
	"github.com/annel0/procworld/internal/noise"
	"github.com/annel0/procworld/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// Веса поведений
const (
	weightSeparation = 1.5
	weightAlignment  = 1.0
	weightCohesion   = 0.6
	weightGoal       = 0.25
	weightAvoid      = 3.0
	terrainPush      = 4.0

	wingBase  = 6.0 // рад/с
	wingSpeed = 0.5
	spawnSpan = 3.0 // разброс птиц стаи вокруг точки появления
)

// Terrain то, что стаям нужно знать о мире
type Terrain interface {
	GetHeightAt(x, z float64) float64
	IsReady(c vec.Vec2) bool
	ChunkSize() float64
	RenderDistance() int
}

// Bird одна птица. Интегрируется явным Эйлером с явной скоростью.
type Bird struct {
	ID    int
	Flock int
	Pos   mgl64.Vec3
	Vel   mgl64.Vec3
	Phase float64 // фаза взмаха крыльев
}

// BirdPose данные для отрисовки птицы
type BirdPose struct {
	Pos     mgl64.Vec3
	Forward mgl64.Vec3
	Phase   float64
	Flock   int
}

// FlockEvent полезная нагрузка событий стаи
type FlockEvent struct {
	FlockID int
	Size    int
	Chunk   vec.Vec2
	Pos     mgl64.Vec3
}

type flockRecord struct {
	id     int
	chunk  vec.Vec2
	birds  int
	offset float64 // фаза орбиты
}

// System все стаи вокруг зрителя
type System struct {
	cfg  config.FlockConfig
	seed uint64
	rng  *rand.Rand
	bus  eventbus.EventBus

	birds     []Bird
	scratch   []Bird
	flocks map[int]*flockRecord
	// activated не чистится при уходе зрителя: иначе вернувшийся чанк
	// бросил бы жребий заново. Растёт с пройденным путём (на чанк одна
	// запись, 64 м на чанк), сбрасывается в Reset.
	activated map[vec.Vec2]struct{}

	nextFlockID int
	nextBirdID  int
	time        float64
}

// New создаёт систему стай. bus может быть nil.
func New(cfg config.FlockConfig, seed string, bus eventbus.EventBus) *System {
	h := noise.SeedHash(seed + "_flock")
	return &System{
		cfg:       cfg,
		seed:      h,
		rng:       rand.New(rand.NewPCG(h, h^0xda3e39cb94b95bdb)),
		bus:       bus,
		flocks:    make(map[int]*flockRecord),
		activated: make(map[vec.Vec2]struct{}),
	}
}

// Reset убирает всех птиц и забывает активированные чанки (новые параметры рельефа)
func (s *System) Reset(seed string) {
	*s = *New(s.cfg, seed, s.bus)
}

// Update один тик: активация чанков, шаг boids, отсев
func (s *System) Update(dt float64, viewer mgl64.Vec3, t Terrain) {
	if !s.cfg.Enabled || dt <= 0 {
		return
	}
	s.time += dt

	s.activate(viewer, t)
	s.step(dt, viewer, t)
	s.cull(viewer, t)
}

// activate бросает жребий для чанков, впервые готовых в активном радиусе
func (s *System) activate(viewer mgl64.Vec3, t Terrain) {
	center := vec.ChunkOf(viewer[0], viewer[2], t.ChunkSize())
	r := s.cfg.ActiveRadius

	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			c := center.Add(vec.Vec2{X: dx, Y: dz})
			if _, done := s.activated[c]; done || !t.IsReady(c) {
				continue
			}
			s.activated[c] = struct{}{}

			roll := noise.HashUnit(s.seed, int64(c.X), int64(c.Y), int64(s.nextFlockID))
			if roll < s.cfg.SpawnChance {
				s.spawn(c, viewer, t)
			}
		}
	}
}

// spawn ставит стаю в кольце [SpawnMinRadius, SpawnMaxRadius] вокруг зрителя
// со смещением к внутреннему краю. Над водой и без высоты стая не появляется.
func (s *System) spawn(c vec.Vec2, viewer mgl64.Vec3, t Terrain) {
	id := s.nextFlockID
	h := func(salt int64) float64 {
		return noise.HashUnit(s.seed, int64(c.X), int64(c.Y), int64(id), salt)
	}

	span := s.cfg.MaxFlockSize - s.cfg.MinFlockSize + 1
	size := s.cfg.MinFlockSize + int(h(1)*float64(span))
	size = min(size, s.cfg.MaxBirds-len(s.birds))
	if size <= 0 {
		return
	}

	angle := h(2) * 2 * math.Pi
	radius := s.cfg.SpawnMinRadius + (s.cfg.SpawnMaxRadius-s.cfg.SpawnMinRadius)*(1-math.Sqrt(h(3)))
	x := viewer[0] + math.Cos(angle)*radius
	z := viewer[2] + math.Sin(angle)*radius

	ground := t.GetHeightAt(x, z)
	if !finite(ground) || ground <= biome.WaterLevel {
		return
	}

	s.nextFlockID++
	origin := mgl64.Vec3{x, ground + s.cfg.CruiseAltitude, z}
	heading := mgl64.Vec3{-math.Sin(angle), 0, math.Cos(angle)}

	for i := 0; i < size; i++ {
		jitter := mgl64.Vec3{
			(h(int64(10+3*i)) - 0.5) * 2 * spawnSpan,
			(h(int64(11+3*i)) - 0.5) * spawnSpan,
			(h(int64(12+3*i)) - 0.5) * 2 * spawnSpan,
		}
		s.birds = append(s.birds, Bird{
			ID:    s.nextBirdID,
			Flock: id,
			Pos:   origin.Add(jitter),
			Vel:   heading.Mul(s.cfg.MaxSpeed * 0.5),
			Phase: h(int64(13+3*i)) * 2 * math.Pi,
		})
		s.nextBirdID++
	}
	s.flocks[id] = &flockRecord{id: id, chunk: c, birds: size, offset: angle}

	logging.LogFlockSpawned(id, size, origin[0], origin[1], origin[2])
	s.publish(eventbus.TypeFlockSpawned, FlockEvent{FlockID: id, Size: size, Chunk: c, Pos: origin})
}

// step O(n²) boids по снимку состояния на начало тика
func (s *System) step(dt float64, viewer mgl64.Vec3, t Terrain) {
	s.scratch = append(s.scratch[:0], s.birds...)
	cfg := &s.cfg

	for i := range s.birds {
		b := &s.birds[i]
		self := &s.scratch[i]

		var sep, ali, coh mgl64.Vec3
		nSep, nAli, nCoh := 0, 0, 0
		for j := range s.scratch {
			if j == i {
				continue
			}
			o := &s.scratch[j]
			d := o.Pos.Sub(self.Pos)
			dist := d.Len()
			if dist > 0 && dist < cfg.SeparationRadius {
				sep = sep.Sub(d.Mul(1 / dist))
				nSep++
			}
			if dist < cfg.AlignmentRadius {
				ali = ali.Add(o.Vel)
				nAli++
			}
			if dist < cfg.CohesionRadius {
				coh = coh.Add(o.Pos)
				nCoh++
			}
		}

		var acc mgl64.Vec3
		if nSep > 0 {
			desired := safeNormalize(sep).Mul(cfg.MaxSpeed)
			acc = acc.Add(desired.Sub(self.Vel).Mul(weightSeparation))
		}
		if nAli > 0 {
			avg := ali.Mul(1 / float64(nAli))
			acc = acc.Add(avg.Sub(self.Vel).Mul(weightAlignment))
		}
		if nCoh > 0 {
			centroid := coh.Mul(1 / float64(nCoh))
			acc = acc.Add(centroid.Sub(self.Pos).Mul(weightCohesion))
		}

		goal := s.orbitPoint(b.Flock, viewer, t)
		acc = acc.Add(goal.Sub(self.Pos).Mul(weightGoal))

		if away := self.Pos.Sub(viewer); away.Len() < cfg.PersonalSpace {
			push := 1 - away.Len()/cfg.PersonalSpace
			acc = acc.Add(safeNormalize(away).Mul(cfg.MaxSpeed * push * weightAvoid))
		}

		if g := t.GetHeightAt(self.Pos[0], self.Pos[2]); finite(g) {
			if deficit := cfg.MinAltitude - (self.Pos[1] - g); deficit > 0 {
				acc[1] += deficit * terrainPush
			}
		}

		acc = acc.Add(mgl64.Vec3{s.jitter(), s.jitter(), s.jitter()}.Mul(cfg.Noise))
		acc = clampLen(acc, cfg.MaxAccel)

		b.Vel = clampLen(b.Vel.Add(acc.Mul(dt)), cfg.MaxSpeed)
		b.Pos = b.Pos.Add(b.Vel.Mul(dt))
		b.Phase = math.Mod(b.Phase+dt*(wingBase+wingSpeed*b.Vel.Len()), 2*math.Pi)
	}
}

// orbitPoint цель стаи: точка, медленно обходящая зрителя на крейсерской высоте
func (s *System) orbitPoint(flockID int, viewer mgl64.Vec3, t Terrain) mgl64.Vec3 {
	offset := 0.0
	if f, ok := s.flocks[flockID]; ok {
		offset = f.offset
	}
	a := offset + s.time*s.cfg.OrbitSpeed
	x := viewer[0] + math.Cos(a)*s.cfg.OrbitRadius
	z := viewer[2] + math.Sin(a)*s.cfg.OrbitRadius

	base := viewer[1]
	if g := t.GetHeightAt(x, z); finite(g) {
		base = max(g, biome.WaterLevel)
	}
	return mgl64.Vec3{x, base + s.cfg.CruiseAltitude, z}
}

// cull убирает птиц за радиусом видимости и сверх лимита
func (s *System) cull(viewer mgl64.Vec3, t Terrain) {
	limit := float64(t.RenderDistance()+1) * t.ChunkSize()

	kept := s.birds[:0]
	for _, b := range s.birds {
		far := mgl64.Vec2{b.Pos[0] - viewer[0], b.Pos[2] - viewer[2]}.Len() > limit
		if far || len(kept) >= s.cfg.MaxBirds || !finiteVec(b.Pos) {
			s.flocks[b.Flock].birds--
			continue
		}
		kept = append(kept, b)
	}
	s.birds = kept

	var gone []int
	for id, f := range s.flocks {
		if f.birds <= 0 {
			gone = append(gone, id)
		}
	}
	sort.Ints(gone)
	for _, id := range gone {
		f := s.flocks[id]
		delete(s.flocks, id)
		logging.Debug("🐦 Стая %d улетела", id)
		s.publish(eventbus.TypeFlockRemoved, FlockEvent{FlockID: id, Chunk: f.chunk})
	}
}

// Birds позы птиц для рендера
func (s *System) Birds() []BirdPose {
	out := make([]BirdPose, len(s.birds))
	for i, b := range s.birds {
		out[i] = BirdPose{
			Pos:     b.Pos,
			Forward: safeNormalize(b.Vel),
			Phase:   b.Phase,
			Flock:   b.Flock,
		}
	}
	return out
}

// Count число живых птиц
func (s *System) Count() int { return len(s.birds) }

// Flocks число живых стай
func (s *System) Flocks() int { return len(s.flocks) }

// Activated число чанков, для которых уже брошен жребий
func (s *System) Activated() int { return len(s.activated) }

func (s *System) jitter() float64 {
	return s.rng.Float64()*2 - 1
}

func (s *System) publish(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(context.Background(), eventbus.NewEnvelope("flock", eventType, payload))
}

func safeNormalize(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-9 || !finite(l) {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}

func clampLen(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	l := v.Len()
	if l <= limit || l == 0 {
		return v
	}
	return v.Mul(limit / l)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
