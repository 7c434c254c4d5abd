package physics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// minConstraintLen ниже этой длины ограничение пропускается (нет направления)
const minConstraintLen = 1e-9

// Particle точка Verlet: скорость неявно хранится как Pos - Prev
type Particle struct {
	Pos    mgl64.Vec3
	Prev   mgl64.Vec3
	Radius float64 // для коллизии с землёй и отрисовки сустава
	Pinned bool    // кинематическая точка: интегратор и релаксация её не двигают
}

// Constraint ограничение расстояния между двумя частицами
type Constraint struct {
	A, B int
	Rest float64
}

// Skeleton граф частиц и ограничений (не дерево: трапециевидные конечности делят суставы)
type Skeleton struct {
	Particles   []Particle
	Constraints []Constraint

	Friction   float64 // множитель неявной скорости, ~0.96
	Gravity    float64 // ускорение вниз за тик
	Iterations int     // итераций релаксации
}

// NewSkeleton создаёт пустой скелет
func NewSkeleton(friction, gravity float64, iterations int) *Skeleton {
	if iterations < 1 {
		iterations = 1
	}
	return &Skeleton{
		Friction:   friction,
		Gravity:    gravity,
		Iterations: iterations,
	}
}

// AddParticle добавляет неподвижную частицу и возвращает её индекс
func (s *Skeleton) AddParticle(pos mgl64.Vec3, radius float64) int {
	s.Particles = append(s.Particles, Particle{Pos: pos, Prev: pos, Radius: radius})
	return len(s.Particles) - 1
}

// Connect связывает две частицы с длиной покоя, равной текущему расстоянию
func (s *Skeleton) Connect(a, b int) int {
	rest := s.Particles[a].Pos.Sub(s.Particles[b].Pos).Len()
	s.Constraints = append(s.Constraints, Constraint{A: a, B: b, Rest: rest})
	return len(s.Constraints) - 1
}

// Integrate шаг Verlet: pos' = pos + (pos - prev)·friction, prev = pos
func (s *Skeleton) Integrate() {
	for i := range s.Particles {
		p := &s.Particles[i]
		if p.Pinned {
			p.Prev = p.Pos
			continue
		}
		vel := p.Pos.Sub(p.Prev).Mul(s.Friction)
		vel[2] -= s.Gravity
		p.Prev = p.Pos
		p.Pos = p.Pos.Add(vel)
	}
}

// Relax симметрично сдвигает концы каждого ограничения к длине покоя.
// Закреплённый конец не двигается, вся поправка уходит второму.
func (s *Skeleton) Relax() {
	for it := 0; it < s.Iterations; it++ {
		for _, c := range s.Constraints {
			a, b := &s.Particles[c.A], &s.Particles[c.B]
			if a.Pinned && b.Pinned {
				continue
			}

			delta := b.Pos.Sub(a.Pos)
			d := delta.Len()
			if d < minConstraintLen {
				continue
			}
			corr := delta.Mul((d - c.Rest) / d)

			switch {
			case a.Pinned:
				b.Pos = b.Pos.Sub(corr)
			case b.Pinned:
				a.Pos = a.Pos.Add(corr)
			default:
				half := corr.Mul(0.5)
				a.Pos = a.Pos.Add(half)
				b.Pos = b.Pos.Sub(half)
			}
		}
	}
}

// Step полный тик: интегрирование, релаксация, коллизия с землёй
func (s *Skeleton) Step(ground GroundFunc) {
	s.Integrate()
	s.Relax()
	Collide(s, ground)
}

// Pin жёстко ставит частицу в pos и делает её кинематической
func (s *Skeleton) Pin(i int, pos mgl64.Vec3) {
	p := &s.Particles[i]
	p.Pos = pos
	p.Prev = pos
	p.Pinned = true
}

// Stretch максимальное отношение текущей длины ограничения к длине покоя
func (s *Skeleton) Stretch() float64 {
	worst := 0.0
	for _, c := range s.Constraints {
		if c.Rest < minConstraintLen {
			continue
		}
		d := s.Particles[c.A].Pos.Sub(s.Particles[c.B].Pos).Len()
		worst = max(worst, d/c.Rest)
	}
	return worst
}
