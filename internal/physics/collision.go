package physics

import (
	"math"
)

// GroundFunc высота земли в точке (x, y) плоскости физики. -Inf или NaN - данных нет.
type GroundFunc func(x, y float64) float64

// Flat земля постоянной высоты
func Flat(h float64) GroundFunc {
	return func(x, y float64) float64 { return h }
}

// IsGrounded проверяет, касается ли частица земли
func IsGrounded(p *Particle, ground GroundFunc) bool {
	g := ground(p.Pos[0], p.Pos[1])
	if !finite(g) {
		return false
	}
	return p.Pos[2] <= g+p.Radius+1e-6
}

// Collide поднимает частицы, ушедшие под землю. Prev тоже прижимается,
// поэтому вертикальная скорость гасится и отскока нет.
// Точки без данных о высоте не трогаются.
func Collide(s *Skeleton, ground GroundFunc) {
	if ground == nil {
		return
	}
	for i := range s.Particles {
		p := &s.Particles[i]
		if p.Pinned {
			continue
		}

		g := ground(p.Pos[0], p.Pos[1])
		if !finite(g) {
			continue
		}

		floor := g + p.Radius
		if p.Pos[2] < floor {
			p.Pos[2] = floor
			p.Prev[2] = floor
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
