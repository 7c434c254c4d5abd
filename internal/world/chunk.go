package world

import (
	"github.com/annel0/procworld/internal/mesh"
	"github.com/annel0/procworld/internal/vec"
	"github.com/annel0/procworld/internal/vegetation"
)

// ChunkState состояние жизненного цикла чанка
type ChunkState int

const (
	Unloaded ChunkState = iota
	Queued
	Generating
	Ready
)

// String возвращает имя состояния
func (s ChunkState) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Queued:
		return "Queued"
	case Generating:
		return "Generating"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Chunk квадратный участок мира. Принадлежит только Manager;
// после Ready сетка высот - единственный источник высот в его границах.
type Chunk struct {
	Coords vec.Vec2      // Координаты чанка (Y - ось Z мира)
	Origin vec.Vec2Float // Мировые координаты угла
	State  ChunkState
	JobID  string // Ожидаемый результат; чужие ID отбрасываются

	Retries int // Неудачных попыток генерации подряд

	Terrain    *mesh.Geometry
	Water      *mesh.Geometry
	Vegetation *mesh.Geometry
	Trees      []vegetation.PlacedTree
	Grid       *mesh.Grid
}

// NewChunk создаёт чанк в состоянии Unloaded
func NewChunk(coords vec.Vec2, chunkSize float64) *Chunk {
	return &Chunk{
		Coords: coords,
		Origin: coords.Origin(chunkSize),
		State:  Unloaded,
	}
}

// VertexCount общее число вершин всех мешей чанка
func (c *Chunk) VertexCount() int {
	n := 0
	for _, g := range []*mesh.Geometry{c.Terrain, c.Water, c.Vegetation} {
		if g != nil {
			n += g.VertexCount
		}
	}
	return n
}

// TriangleCount общее число треугольников всех мешей чанка
func (c *Chunk) TriangleCount() int {
	return c.Terrain.TriangleCount() + c.Water.TriangleCount() + c.Vegetation.TriangleCount()
}

// Bytes общий размер буферов чанка
func (c *Chunk) Bytes() int {
	return c.Terrain.Bytes() + c.Water.Bytes() + c.Vegetation.Bytes()
}

// release освобождает геометрию и сетку высот
func (c *Chunk) release() {
	c.Terrain = nil
	c.Water = nil
	c.Vegetation = nil
	c.Trees = nil
	c.Grid = nil
	c.State = Unloaded
	c.JobID = ""
}
