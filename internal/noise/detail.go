package noise

import (
	"github.com/aquilax/go-perlin"
)

const (
	detailAlpha = 2.0 // затухание амплитуды между октавами
	detailBeta  = 2.0 // рост частоты между октавами
)

// Detail фрактальный шум (fBm) на основе шума Перлина
type Detail struct {
	p    *perlin.Perlin
	norm float64
}

// NewDetail создаёт fBm с заданным числом октав, сид выводится из seed + "_" + name
func NewDetail(seed, name string, octaves int) *Detail {
	if octaves < 1 {
		octaves = 1
	}
	rnd := SeedRng(seed + "_" + name)
	s := int64(Uint32(rnd))<<32 | int64(Uint32(rnd))

	// сумма весов октав 1 + 1/alpha + 1/alpha^2 + ...
	norm := 0.0
	w := 1.0
	for i := 0; i < octaves; i++ {
		norm += w
		w /= detailAlpha
	}

	return &Detail{
		p:    perlin.NewPerlin(detailAlpha, detailBeta, int32(octaves), s),
		norm: norm,
	}
}

// Eval возвращает значение fBm в [-1, 1]
func (d *Detail) Eval(x, y float64) float64 {
	if !finite(x) || !finite(y) {
		return 0
	}
	// базовый шум Перлина редко выходит за ±0.7, поэтому нормируем с запасом
	return Clamp(d.p.Noise2D(x, y)/d.norm*1.4, -1, 1)
}

// Unit возвращает fBm, отображённый в [0, 1]
func (d *Detail) Unit(x, y float64) float64 {
	return Clamp(0.5+0.5*d.Eval(x, y), 0, 1)
}
