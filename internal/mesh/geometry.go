package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/procworld/internal/biome"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrMalformedGeometry геометрия не прошла проверку длины буферов или содержит NaN/Inf
var ErrMalformedGeometry = errors.New("malformed geometry")

// up нормаль по умолчанию для вырожденных треугольников
var up = mgl64.Vec3{0, 1, 0}

// Geometry набор треугольников без общих вершин (flat shading).
// Каждые три вершины образуют треугольник.
type Geometry struct {
	Positions   []float32
	Normals     []float32
	Colors      []float32
	VertexCount int
}

// NewGeometry создаёт пустую геометрию с запасом на triangles треугольников
func NewGeometry(triangles int) *Geometry {
	n := triangles * 9
	return &Geometry{
		Positions: make([]float32, 0, n),
		Normals:   make([]float32, 0, n),
		Colors:    make([]float32, 0, n),
	}
}

// Validate проверяет, что длины буферов совпадают с объявленным числом вершин
func (g *Geometry) Validate() error {
	if g == nil {
		return nil
	}
	want := g.VertexCount * 3
	switch {
	case g.VertexCount < 0 || g.VertexCount%3 != 0:
		return fmt.Errorf("%w: число вершин %d не кратно 3", ErrMalformedGeometry, g.VertexCount)
	case len(g.Positions) != want:
		return fmt.Errorf("%w: positions %d, ожидалось %d", ErrMalformedGeometry, len(g.Positions), want)
	case len(g.Normals) != want:
		return fmt.Errorf("%w: normals %d, ожидалось %d", ErrMalformedGeometry, len(g.Normals), want)
	case len(g.Colors) != want:
		return fmt.Errorf("%w: colors %d, ожидалось %d", ErrMalformedGeometry, len(g.Colors), want)
	}
	for i, v := range g.Positions {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: позиция %d не конечна", ErrMalformedGeometry, i/3)
		}
	}
	for i, v := range g.Normals {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: нормаль %d не конечна", ErrMalformedGeometry, i/3)
		}
	}
	return nil
}

// Bytes размер буферов в байтах
func (g *Geometry) Bytes() int {
	if g == nil {
		return 0
	}
	return (len(g.Positions) + len(g.Normals) + len(g.Colors)) * 4
}

// TriangleCount число треугольников
func (g *Geometry) TriangleCount() int {
	if g == nil {
		return 0
	}
	return g.VertexCount / 3
}

// Append дописывает другую геометрию в конец
func (g *Geometry) Append(o *Geometry) {
	if o == nil {
		return
	}
	g.Positions = append(g.Positions, o.Positions...)
	g.Normals = append(g.Normals, o.Normals...)
	g.Colors = append(g.Colors, o.Colors...)
	g.VertexCount += o.VertexCount
}

func (g *Geometry) vertex(p, n mgl64.Vec3, c biome.Color) {
	g.Positions = append(g.Positions, float32(p[0]), float32(p[1]), float32(p[2]))
	g.Normals = append(g.Normals, float32(n[0]), float32(n[1]), float32(n[2]))
	g.Colors = append(g.Colors, float32(c.R), float32(c.G), float32(c.B))
	g.VertexCount++
}

// Triangle добавляет треугольник с нормалью грани (p1-p0)×(p2-p0)
func (g *Geometry) Triangle(p0, p1, p2 mgl64.Vec3, c biome.Color) {
	n := FaceNormal(p0, p1, p2)
	g.vertex(p0, n, c)
	g.vertex(p1, n, c)
	g.vertex(p2, n, c)
}

// triangleOutward добавляет треугольник, развёрнутый нормалью от точки center
func (g *Geometry) triangleOutward(p0, p1, p2, center mgl64.Vec3, c biome.Color) {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	centroid := p0.Add(p1).Add(p2).Mul(1.0 / 3.0)
	if n.Dot(centroid.Sub(center)) < 0 {
		p1, p2 = p2, p1
	}
	g.Triangle(p0, p1, p2, c)
}

// FaceNormal нормаль грани; вырожденный треугольник получает (0, 1, 0)
func FaceNormal(p0, p1, p2 mgl64.Vec3) mgl64.Vec3 {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	l := n.Len()
	if l < 1e-12 || math.IsNaN(l) || math.IsInf(l, 0) {
		return up
	}
	return n.Mul(1 / l)
}
