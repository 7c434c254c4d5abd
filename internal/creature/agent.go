package creature

import (
	"math"
	"math/rand/v2"

	"github.com/annel0/procworld/internal/physics"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	spineRadius = 0.35
	headRadius  = 0.3
	kneeRadius  = 0.12
	footRadius  = 0.1

	blinkFrames = 6 // тиков с закрытыми глазами
	goalReached = 1.0

	reachShare = 0.95 // стопа не ставится дальше этой доли выпрямленной ноги
)

// leg опора: стоп кинематическая, закреплена в footPos между шагами
type leg struct {
	hip, knee, foot int

	forward float64 // смещение стойки вдоль корпуса относительно корня
	side    float64 // вправо (+) или влево (-)
	reach   float64 // предел от бедра до стопы, reachShare длины покоя ноги

	footPos mgl64.Vec3
}

// Agent существо на Verlet-скелете с шаговой походкой. Все координаты
// внутри - в системе физики (Z вверх); наружу отдаются через Pose.
type Agent struct {
	params Params
	skel   *physics.Skeleton

	spine   []int
	head    int
	legs    []leg
	visible []int // индексы ограничений, которые рисуются как конечности

	root       mgl64.Vec2 // виртуальная точка, ведущая тело вперёд
	heading    float64
	throttle   float64 // доля Speed, задаётся состоянием
	goal       *mgl64.Vec2
	state      State
	bodyHeight float64

	rng        *rand.Rand
	blinkTimer int
	blinkLeft  int

	ticks uint64
	steps uint64
}

// New собирает существо стоящим на земле в точке (x, y) плоскости физики
func New(p Params, x, y float64, ground physics.GroundFunc) (*Agent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		params:     p,
		skel:       physics.NewSkeleton(p.Friction, p.Gravity, p.Iterations),
		root:       mgl64.Vec2{x, y},
		bodyHeight: p.LegLength * 0.75,
		rng:        rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)),
	}
	a.heading = a.rng.Float64() * 2 * math.Pi
	a.blinkTimer = 60 + a.rng.IntN(180)

	g0 := ground(x, y)
	if !finite(g0) {
		g0 = 0
	}
	a.build(g0, ground)
	a.setState(newWanderState(a))
	return a, nil
}

func (a *Agent) frame() (fwd, right mgl64.Vec3) {
	s, c := math.Sincos(a.heading)
	return mgl64.Vec3{c, s, 0}, mgl64.Vec3{s, -c, 0}
}

func (a *Agent) build(g0 float64, ground physics.GroundFunc) {
	p := a.params
	s := a.skel
	fwd, right := a.frame()
	base := mgl64.Vec3{a.root[0], a.root[1], g0 + a.bodyHeight}

	a.spine = make([]int, p.Segments)
	for i := range a.spine {
		taper := 1 - 0.4*float64(i)/float64(p.Segments)
		a.spine[i] = s.AddParticle(base.Sub(fwd.Mul(float64(i)*p.SegmentLength)), spineRadius*taper)
	}
	for i := 1; i < len(a.spine); i++ {
		a.visible = append(a.visible, s.Connect(a.spine[i-1], a.spine[i]))
	}
	// распорки через один сустав держат изгиб позвоночника
	for i := 2; i < len(a.spine); i++ {
		s.Connect(a.spine[i-2], a.spine[i])
	}

	headPos := s.Particles[a.spine[0]].Pos.Add(fwd.Mul(p.SegmentLength * 0.8)).Add(physics.Up.Mul(0.4))
	a.head = s.AddParticle(headPos, headRadius)
	a.visible = append(a.visible, s.Connect(a.spine[0], a.head))
	s.Connect(a.spine[1], a.head)

	for k := 0; k < p.LegPairs; k++ {
		at := 0
		if p.LegPairs > 1 {
			at = k * (p.Segments - 1) / (p.LegPairs - 1)
		}
		brace := at + 1
		if brace >= len(a.spine) {
			brace = at - 1
		}

		for _, side := range []float64{-1, 1} {
			l := leg{
				hip:     a.spine[at],
				forward: -float64(at) * p.SegmentLength,
				side:    side * p.LegLength * 0.6,
			}
			hipPos := s.Particles[l.hip].Pos
			kneePos := hipPos.Add(right.Mul(side * p.LegLength * 0.45)).Add(physics.Up.Mul(p.LegLength * 0.15))
			l.knee = s.AddParticle(kneePos, kneeRadius)

			l.footPos = a.ground(a.stanceTarget(&l, fwd, right), g0, ground)
			l.foot = s.AddParticle(l.footPos, footRadius)
			s.Pin(l.foot, l.footPos)

			upper, lower := s.Connect(l.hip, l.knee), s.Connect(l.knee, l.foot)
			a.visible = append(a.visible, upper, lower)
			l.reach = (s.Constraints[upper].Rest + s.Constraints[lower].Rest) * reachShare
			// трапеция: колено держится за соседний сустав позвоночника
			s.Connect(l.knee, a.spine[brace])

			a.legs = append(a.legs, l)
		}
	}
}

// stanceTarget желаемая точка стопы в плоскости
func (a *Agent) stanceTarget(l *leg, fwd, right mgl64.Vec3) mgl64.Vec2 {
	return mgl64.Vec2{
		a.root[0] + fwd[0]*l.forward + right[0]*l.side,
		a.root[1] + fwd[1]*l.forward + right[1]*l.side,
	}
}

// ground ставит точку на землю; без данных о высоте остаётся fallback
func (a *Agent) ground(pt mgl64.Vec2, fallback float64, ground physics.GroundFunc) mgl64.Vec3 {
	h := ground(pt[0], pt[1])
	if !finite(h) {
		h = fallback
	}
	return mgl64.Vec3{pt[0], pt[1], h + footRadius}
}

// SetGoal направляет существо к точке плоскости физики
func (a *Agent) SetGoal(x, y float64) {
	a.goal = &mgl64.Vec2{x, y}
}

// ClearGoal возвращает существо к блужданию
func (a *Agent) ClearGoal() {
	a.goal = nil
}

// HasGoal есть ли активная цель
func (a *Agent) HasGoal() bool { return a.goal != nil }

// Behavior имя текущего состояния поведения
func (a *Agent) Behavior() string {
	if a.state == nil {
		return ""
	}
	return a.state.Name()
}

// Tick один шаг симуляции. dt ограничивается MaxDelta.
func (a *Agent) Tick(dt float64, ground physics.GroundFunc) {
	if dt <= 0 || math.IsNaN(dt) {
		return
	}
	dt = min(dt, MaxDelta)

	a.think(dt)
	fwd, right := a.frame()
	a.advanceRoot(dt, fwd)
	stepped := a.gait(fwd, right, ground)
	a.posture(fwd, ground)

	a.skel.Step(ground)
	if stepped {
		// переставленная стопа резко меняет длину ноги, даём суставам догнать
		a.skel.Relax()
		physics.Collide(a.skel, ground)
	}
	for i := range a.legs {
		a.skel.Pin(a.legs[i].foot, a.legs[i].footPos)
	}

	a.blink()
	a.ticks++
}

// advanceRoot двигает корень со скоростью Speed, не давая ему уйти от тела дальше 0.75 сегмента
func (a *Agent) advanceRoot(dt float64, fwd mgl64.Vec3) {
	a.root = a.root.Add(mgl64.Vec2{fwd[0], fwd[1]}.Mul(a.params.Speed * a.throttle * dt))

	c := a.center()
	lead := a.root.Sub(c)
	if limit := a.params.SegmentLength * 0.75; lead.Len() > limit {
		a.root = c.Add(lead.Normalize().Mul(limit))
	}
}

// gait шаговая IK: за тик шагает не больше одной ноги, остальные стоят.
// Шагает нога с наибольшим отставанием: стопа дальше StepRadius от стойки
// или бедро дальше полной длины ноги.
func (a *Agent) gait(fwd, right mgl64.Vec3, ground physics.GroundFunc) bool {
	worst, lag := -1, 1.0
	for i := range a.legs {
		l := &a.legs[i]
		target := a.stanceTarget(l, fwd, right)
		cur := mgl64.Vec2{l.footPos[0], l.footPos[1]}
		hip := a.skel.Particles[l.hip].Pos

		r := max(cur.Sub(target).Len()/a.params.StepRadius, hip.Sub(l.footPos).Len()*reachShare/l.reach)
		if r > lag {
			worst, lag = i, r
		}
	}

	if worst >= 0 {
		l := &a.legs[worst]
		lead := a.params.StepRadius * 0.5 * a.rng.Float64()
		next := a.stanceTarget(l, fwd, right).Add(mgl64.Vec2{fwd[0], fwd[1]}.Mul(lead))
		hip := a.skel.Particles[l.hip].Pos
		l.footPos = withinReach(hip, a.ground(next, l.footPos[2]-footRadius, ground), l.reach)
		a.steps++
	}
	for i := range a.legs {
		a.skel.Pin(a.legs[i].foot, a.legs[i].footPos)
	}
	return worst >= 0
}

// withinReach подтягивает точку к бедру, если до неё не достать ногой.
// На обрыве стопа повисает над землёй, но ограничения ноги не рвутся.
func withinReach(hip, foot mgl64.Vec3, reach float64) mgl64.Vec3 {
	d := foot.Sub(hip)
	if n := d.Len(); n > reach && n > 0 {
		return hip.Add(d.Mul(reach / n))
	}
	return foot
}

// posture мышечный подъём тела и плавное ведение головы
func (a *Agent) posture(fwd mgl64.Vec3, ground physics.GroundFunc) {
	for _, i := range a.spine {
		a.skel.Particles[i].Prev[2] -= a.params.Muscle
	}
	head := &a.skel.Particles[a.head]
	head.Prev[2] -= a.params.Muscle

	target := mgl64.Vec3{a.root[0], a.root[1], 0}.Add(fwd.Mul(a.params.SegmentLength * 0.8))
	g := ground(target[0], target[1])
	if finite(g) {
		target[2] = g + a.bodyHeight + 0.4
	} else {
		target[2] = head.Pos[2]
	}

	// сдвиг без добавления скорости: Prev двигается вместе с Pos
	shift := target.Sub(head.Pos).Mul(a.params.HeadEase)
	head.Pos = head.Pos.Add(shift)
	head.Prev = head.Prev.Add(shift)
}

func (a *Agent) blink() {
	if a.blinkLeft > 0 {
		a.blinkLeft--
		return
	}
	a.blinkTimer--
	if a.blinkTimer <= 0 {
		a.blinkLeft = blinkFrames
		a.blinkTimer = 60 + a.rng.IntN(240)
	}
}

// center положение плеч в плоскости
func (a *Agent) center() mgl64.Vec2 {
	p := a.skel.Particles[a.spine[0]].Pos
	return mgl64.Vec2{p[0], p[1]}
}

// Position положение плеч в координатах рендера
func (a *Agent) Position() mgl64.Vec3 {
	return physics.ToRender(a.skel.Particles[a.spine[0]].Pos)
}

// Skeleton скелет для проверок и отладки
func (a *Agent) Skeleton() *physics.Skeleton { return a.skel }

// Steps число сделанных шагов
func (a *Agent) Steps() uint64 { return a.steps }

// Ticks число тиков
func (a *Agent) Ticks() uint64 { return a.ticks }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
