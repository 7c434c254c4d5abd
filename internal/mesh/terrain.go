package mesh

import (
	"math"

	"github.com/annel0/procworld/internal/biome"
	"github.com/go-gl/mathgl/mgl64"
)

// waterColor цвет плоскости воды
var waterColor = biome.Color{R: 0.15, G: 0.35, B: 0.55}

// Grid квадратная сетка высот и цветов чанка, row-major: индекс = z*Size + x
type Grid struct {
	Size    int // вершин на сторону
	Step    float64
	OriginX float64
	OriginZ float64
	Heights []float64
	Colors  []biome.Color
}

// ColorSampler источник высоты и цвета; *biome.Model удовлетворяет ему
type ColorSampler interface {
	SampleColor(x, z float64) (biome.Params, biome.Color)
}

// SampleGrid вычисляет сетку size×size вершин, покрывающую чанк со стороной chunkSize.
// Крайние вершины совпадают с вершинами соседних чанков, поэтому швов нет.
func SampleGrid(s ColorSampler, originX, originZ, chunkSize float64, size int) *Grid {
	g := &Grid{
		Size:    size,
		Step:    chunkSize / float64(size-1),
		OriginX: originX,
		OriginZ: originZ,
		Heights: make([]float64, size*size),
		Colors:  make([]biome.Color, size*size),
	}
	for j := 0; j < size; j++ {
		z := originZ + float64(j)*g.Step
		for i := 0; i < size; i++ {
			x := originX + float64(i)*g.Step
			p, c := s.SampleColor(x, z)
			g.Heights[j*size+i] = p.FinalHeight
			g.Colors[j*size+i] = c
		}
	}
	return g
}

// At высота вершины (i, j)
func (g *Grid) At(i, j int) float64 {
	return g.Heights[j*g.Size+i]
}

// MinHeight минимальная высота сетки
func (g *Grid) MinHeight() float64 {
	m := math.Inf(1)
	for _, h := range g.Heights {
		m = math.Min(m, h)
	}
	return m
}

// HeightAt билинейная интерполяция высоты. В вершине сетки возвращает
// сохранённое значение без погрешности. Точки вне сетки прижимаются к краю.
func HeightAt(heights []float64, size int, originX, originZ, step, x, z float64) float64 {
	if size < 2 || len(heights) < size*size {
		return math.Inf(-1)
	}
	fx := (x - originX) / step
	fz := (z - originZ) / step

	i, tx := cell(fx, size)
	j, tz := cell(fz, size)

	h00 := heights[j*size+i]
	h10 := heights[j*size+i+1]
	h01 := heights[(j+1)*size+i]
	h11 := heights[(j+1)*size+i+1]

	return lerpExact(lerpExact(h00, h10, tx), lerpExact(h01, h11, tx), tz)
}

// HeightAt высота в мировой точке по сетке
func (g *Grid) HeightAt(x, z float64) float64 {
	return HeightAt(g.Heights, g.Size, g.OriginX, g.OriginZ, g.Step, x, z)
}

func cell(f float64, size int) (int, float64) {
	if math.IsNaN(f) {
		return 0, 0
	}
	i := int(math.Floor(f))
	switch {
	case i < 0:
		return 0, 0
	case i >= size-1:
		return size - 2, 1
	}
	return i, f - float64(i)
}

func lerpExact(a, b, t float64) float64 {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return a + (b-a)*t
}

// BuildTerrain строит flat-shaded меш сетки: два треугольника на ячейку,
// у каждого собственные три вершины, нормаль грани и усреднённый цвет.
func BuildTerrain(g *Grid) *Geometry {
	n := g.Size - 1
	geom := NewGeometry(n * n * 2)

	pos := func(i, j int) mgl64.Vec3 {
		return mgl64.Vec3{g.OriginX + float64(i)*g.Step, g.At(i, j), g.OriginZ + float64(j)*g.Step}
	}
	col := func(i, j int) biome.Color {
		return g.Colors[j*g.Size+i]
	}

	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a, b, c, d := pos(i, j), pos(i+1, j), pos(i, j+1), pos(i+1, j+1)
			ca, cb, cc, cd := col(i, j), col(i+1, j), col(i, j+1), col(i+1, j+1)

			geom.Triangle(a, c, b, average(ca, cc, cb))
			geom.Triangle(b, c, d, average(cb, cc, cd))
		}
	}
	return geom
}

// BuildWater плоскость воды над чанком, если сетка опускается ниже уровня воды; иначе nil
func BuildWater(g *Grid) *Geometry {
	if g.MinHeight() >= biome.WaterLevel {
		return nil
	}
	size := g.Step * float64(g.Size-1)
	y := biome.WaterLevel
	a := mgl64.Vec3{g.OriginX, y, g.OriginZ}
	b := mgl64.Vec3{g.OriginX + size, y, g.OriginZ}
	c := mgl64.Vec3{g.OriginX, y, g.OriginZ + size}
	d := mgl64.Vec3{g.OriginX + size, y, g.OriginZ + size}

	geom := NewGeometry(2)
	geom.Triangle(a, c, b, waterColor)
	geom.Triangle(b, c, d, waterColor)
	return geom
}

func average(a, b, c biome.Color) biome.Color {
	return biome.Color{
		R: (a.R + b.R + c.R) / 3,
		G: (a.G + b.G + c.G) / 3,
		B: (a.B + b.B + c.B) / 3,
	}
}
