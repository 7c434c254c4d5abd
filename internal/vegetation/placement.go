package vegetation

import (
	"math"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/noise"
	"github.com/annel0/procworld/internal/vec"
)

// соли производных хешей одного кандидата
const (
	saltJitterX = iota
	saltJitterZ
	saltPriority
	saltThin
	saltSpecies
	saltSize
	saltTilt
	saltYaw
	saltTreeSeed
	saltColor
)

const densityWavelength = 300.0

// Sampler источник параметров биома; *biome.Model удовлетворяет ему
type Sampler interface {
	Sample(x, z float64) biome.Params
}

// HeightFunc высота поверхности, на которую ставится растение
type HeightFunc func(x, z float64) float64

// PlacedTree одно размещённое растение. Неизменяемо после размещения.
type PlacedTree struct {
	WorldX        float64
	WorldY        float64
	WorldZ        float64
	Species       Species
	Size          float64
	Tilt          float64 // наклон от вертикали, радианы
	Yaw           float64 // направление наклона, радианы
	TrunkColor    biome.Color
	LeafColor     biome.Color
	PriorityHash  uint64
	SpacingRadius float64
	Seed          uint64 // сид формы для построителя меша
}

// Placer расставляет растительность приоритетным Пуассоновским диском
type Placer struct {
	sampler  Sampler
	seedHash uint64
	cfg      config.VegetationConfig
	density  *noise.Detail
}

// NewPlacer создаёт расстановщик для сида мира
func NewPlacer(sampler Sampler, seed string, cfg config.VegetationConfig) *Placer {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 16
	}
	if cfg.CandidatesPerCell < 1 {
		cfg.CandidatesPerCell = 1
	}
	return &Placer{
		sampler:  sampler,
		seedHash: noise.SeedHash(seed + "_vegetation"),
		cfg:      cfg,
		density:  noise.NewDetail(seed, "vegetationDensity", 2),
	}
}

// Intensity интенсивность растительности λ в [0, 1] для выборки биома в точке (x, z).
// Океан как доминирующий биом и точки под водой дают 0.
func (p *Placer) Intensity(bp *biome.Params, x, z float64) float64 {
	if bp.Dominant() == biome.Ocean || bp.FinalHeight <= biome.WaterLevel {
		return 0
	}

	lambda := 0.0
	for i, w := range bp.Weights {
		lambda += w * Profiles[i].Density
	}

	if k := p.cfg.DensityNoise; k > 0 {
		mod := p.density.Unit(x/densityWavelength, z/densityWavelength)
		lambda *= 1 - k + k*mod*2
	}
	return noise.Clamp(lambda, 0, 1)
}

// speciesWeights веса видов: вес профиля, смешанный RBF, умноженный на пригодность
func speciesWeights(bp *biome.Params, height float64) ([NumSpecies]float64, float64) {
	var w [NumSpecies]float64
	total := 0.0
	for s := range Catalog {
		pw := 0.0
		for b, bw := range bp.Weights {
			pw += bw * Profiles[b].Weights[s]
		}
		if pw <= 0 {
			continue
		}
		w[s] = pw * Catalog[s].Suitability(bp.Temperature, bp.Moisture, height)
		total += w[s]
	}
	return w, total
}

func pickSpecies(w *[NumSpecies]float64, total, u float64) Species {
	target := u * total
	acc := 0.0
	last := Species(0)
	for s, ws := range w {
		if ws <= 0 {
			continue
		}
		acc += ws
		last = Species(s)
		if target < acc {
			return last
		}
	}
	return last
}

// Place расставляет растения в чанке. Результат - чистая функция сида,
// координат чанка и поля биомов; порядок элементов детерминирован.
// height задаёт высоту установки (сетка чанка); nil - высота из поля биомов.
func (p *Placer) Place(coords vec.Vec2, chunkSize float64, height HeightFunc) []PlacedTree {
	origin := coords.Origin(chunkSize)
	cell := p.cfg.CellSize
	k := p.cfg.CandidatesPerCell

	cx0 := int64(math.Floor(origin.X / cell))
	cz0 := int64(math.Floor(origin.Y / cell))
	cx1 := int64(math.Ceil((origin.X + chunkSize) / cell))
	cz1 := int64(math.Ceil((origin.Y + chunkSize) / cell))

	var placed []PlacedTree
	for cz := cz0; cz < cz1; cz++ {
		for cx := cx0; cx < cx1; cx++ {
			for i := int64(0); i < int64(k); i++ {
				t, ok := p.candidate(cx, cz, i, origin, chunkSize, height)
				if !ok {
					continue
				}
				placed = resolve(placed, t)
			}
		}
	}
	return placed
}

// candidate строит и прореживает одного кандидата ячейки
func (p *Placer) candidate(cx, cz, i int64, origin vec.Vec2Float, chunkSize float64, height HeightFunc) (PlacedTree, bool) {
	sh := p.seedHash
	cell := p.cfg.CellSize

	x := (float64(cx) + noise.HashUnit(sh, cx, cz, i, saltJitterX)) * cell
	z := (float64(cz) + noise.HashUnit(sh, cx, cz, i, saltJitterZ)) * cell
	if x < origin.X || x >= origin.X+chunkSize || z < origin.Y || z >= origin.Y+chunkSize {
		return PlacedTree{}, false
	}

	bp := p.sampler.Sample(x, z)

	// неоднородное прореживание
	lambda := p.Intensity(&bp, x, z)
	if lambda <= 0 || noise.HashUnit(sh, cx, cz, i, saltThin) >= lambda {
		return PlacedTree{}, false
	}

	y := bp.FinalHeight
	if height != nil {
		y = height(x, z)
		if math.IsInf(y, 0) || math.IsNaN(y) {
			return PlacedTree{}, false
		}
	}

	w, total := speciesWeights(&bp, y)
	if total <= 0 {
		return PlacedTree{}, false
	}
	species := pickSpecies(&w, total, noise.HashUnit(sh, cx, cz, i, saltSpecies))
	info := &Catalog[species]

	size := noise.HashRange(info.SizeMin, info.SizeMax, sh, cx, cz, i, saltSize)
	shade := 0.85 + 0.3*noise.HashUnit(sh, cx, cz, i, saltColor)

	return PlacedTree{
		WorldX:        x,
		WorldY:        y,
		WorldZ:        z,
		Species:       species,
		Size:          size,
		Tilt:          info.MaxTilt * noise.HashUnit(sh, cx, cz, i, saltTilt),
		Yaw:           noise.HashRange(0, 2*math.Pi, sh, cx, cz, i, saltYaw),
		TrunkColor:    info.Trunk,
		LeafColor:     info.Leaf.Scale(shade),
		PriorityHash:  noise.Hash64(sh, cx, cz, i, saltPriority),
		SpacingRadius: info.MinSpacing * size,
		Seed:          noise.Hash64(sh, cx, cz, i, saltTreeSeed),
	}, true
}

// resolve применяет правило приоритетного диска: кандидат принимается, только если
// его приоритет выше, чем у всех конфликтующих; тогда они удаляются.
func resolve(placed []PlacedTree, c PlacedTree) []PlacedTree {
	conflicts := 0
	for i := range placed {
		e := &placed[i]
		if !conflict(e, &c) {
			continue
		}
		if e.PriorityHash >= c.PriorityHash {
			// при равенстве остаётся уже принятое
			return placed
		}
		conflicts++
	}

	if conflicts > 0 {
		kept := placed[:0]
		for _, e := range placed {
			if !conflict(&e, &c) {
				kept = append(kept, e)
			}
		}
		placed = kept
	}
	return append(placed, c)
}

func conflict(a, b *PlacedTree) bool {
	r := max(a.SpacingRadius, b.SpacingRadius)
	dx := a.WorldX - b.WorldX
	dz := a.WorldZ - b.WorldZ
	return dx*dx+dz*dz < r*r
}
