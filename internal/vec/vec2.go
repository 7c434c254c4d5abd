package vec

import "math"

// Vec2 представляет целочисленные 2D координаты (координаты чанка).
// Y хранит ось Z мира: сетка чанков лежит в горизонтальной плоскости XZ.
type Vec2 struct {
	X, Y int
}

// ChunkOf возвращает координаты чанка, которому принадлежит мировая точка (x, z).
// Используется floor, а не усечение: точка (-0.5, 0) лежит в чанке (-1, 0).
func ChunkOf(worldX, worldZ, chunkSize float64) Vec2 {
	return Vec2{
		X: int(math.Floor(worldX / chunkSize)),
		Y: int(math.Floor(worldZ / chunkSize)),
	}
}

// Origin возвращает мировые координаты угла чанка
func (v Vec2) Origin(chunkSize float64) Vec2Float {
	return Vec2Float{X: float64(v.X) * chunkSize, Y: float64(v.Y) * chunkSize}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Chebyshev возвращает max(|dx|, |dy|) - "квадратный" радиус
func (v Vec2) Chebyshev(other Vec2) int {
	return max(absInt(v.X-other.X), absInt(v.Y-other.Y))
}

// Manhattan возвращает |dx| + |dy| - "ромбовидный" радиус
func (v Vec2) Manhattan(other Vec2) int {
	return absInt(v.X-other.X) + absInt(v.Y-other.Y)
}

// DistanceTo вычисляет евклидово расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Less задаёт детерминированный порядок: сначала X, затем Y
func (v Vec2) Less(other Vec2) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	return v.Y < other.Y
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
