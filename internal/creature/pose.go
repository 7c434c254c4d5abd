package creature

import (
	"math"

	"github.com/annel0/procworld/internal/physics"
	"github.com/go-gl/mathgl/mgl64"
)

// Joint сустав для отрисовки
type Joint struct {
	Pos    mgl64.Vec3
	Radius float64
}

// Limb сегмент конечности или позвоночника; ширина у концов - радиусы суставов
type Limb struct {
	A, B   mgl64.Vec3
	W0, W1 float64
}

// Pose снимок позы в координатах рендера (Y вверх)
type Pose struct {
	Joints     []Joint
	Limbs      []Limb
	Head       mgl64.Vec3
	Forward    mgl64.Vec3
	EyesClosed bool
	Grounded   int    // стоп на земле
	Behavior   string // idle | wander | seek
}

// Pose строит позу для слоя рендера. Буферы новые, их можно хранить.
func (a *Agent) Pose(ground physics.GroundFunc) Pose {
	ps := a.skel.Particles
	pose := Pose{
		Joints:     make([]Joint, len(ps)),
		Limbs:      make([]Limb, 0, len(a.visible)),
		Head:       physics.ToRender(ps[a.head].Pos),
		EyesClosed: a.blinkLeft > 0,
		Behavior:   a.Behavior(),
	}

	for i := range ps {
		pose.Joints[i] = Joint{Pos: physics.ToRender(ps[i].Pos), Radius: ps[i].Radius}
	}
	for _, ci := range a.visible {
		c := a.skel.Constraints[ci]
		pose.Limbs = append(pose.Limbs, Limb{
			A:  pose.Joints[c.A].Pos,
			B:  pose.Joints[c.B].Pos,
			W0: ps[c.A].Radius,
			W1: ps[c.B].Radius,
		})
	}

	s, c := math.Sincos(a.heading)
	pose.Forward = physics.ToRender(mgl64.Vec3{c, s, 0})

	if ground != nil {
		for i := range a.legs {
			if physics.IsGrounded(&ps[a.legs[i].foot], ground) {
				pose.Grounded++
			}
		}
	}
	return pose
}
