package physics

import "github.com/go-gl/mathgl/mgl64"

// Физика существа работает в системе с осью Z вверх, рендер и мир - с осью Y вверх.
// Переход между ними делается только здесь.

// ToRender переводит точку физики (x, y, z↑) в координаты рендера (x, y↑, z)
func ToRender(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{p[0], p[2], p[1]}
}

// FromRender обратное преобразование
func FromRender(r mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{r[0], r[2], r[1]}
}

// Up единичный вектор вверх в системе физики
var Up = mgl64.Vec3{0, 0, 1}

// HeightFunc запрос высоты мира в координатах рендера (x, z)
type HeightFunc func(x, z float64) float64

// GroundFromWorld оборачивает запрос высоты мира в GroundFunc физики:
// плоскость (x, y) физики совпадает с плоскостью (x, z) мира.
func GroundFromWorld(h HeightFunc) GroundFunc {
	return func(x, y float64) float64 { return h(x, y) }
}
