package world

import (
	"context"
	"time"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/mesh"
	"github.com/annel0/procworld/internal/vec"
	"github.com/annel0/procworld/internal/vegetation"
)

// GenerationJob сообщение воркеру: всё, что нужно для генерации, передаётся по значению
type GenerationJob struct {
	JobID      string
	Coords     vec.Vec2
	Params     config.TerrainParams
	ChunkSize  float64
	GridSize   int
	Vegetation bool
	VegConfig  config.VegetationConfig
}

// GenerationResult ответ воркера. Буферы принадлежат получателю.
type GenerationResult struct {
	JobID  string
	Coords vec.Vec2
	Slot   int

	Terrain    *mesh.Geometry
	Water      *mesh.Geometry
	Vegetation *mesh.Geometry
	Trees      []vegetation.PlacedTree
	Grid       *mesh.Grid

	Took time.Duration
	Err  error
}

// Generator чистая функция генерации чанка. Каждый воркер получает свой экземпляр.
type Generator interface {
	Generate(ctx context.Context, job GenerationJob) GenerationResult
}

// GeneratorFactory создаёт генератор для одного воркера
type GeneratorFactory func() Generator

// ChunkGenerator генератор по умолчанию: поле биомов -> сетка -> меши -> растительность.
// Кеширует модель для последних параметров, поэтому не разделяется между воркерами.
type ChunkGenerator struct {
	params config.TerrainParams
	veg    config.VegetationConfig
	model  *biome.Model
	placer *vegetation.Placer
}

// NewChunkGenerator создаёт генератор с пустым кешем
func NewChunkGenerator() Generator {
	return &ChunkGenerator{}
}

func (g *ChunkGenerator) prepare(job *GenerationJob) {
	if g.model == nil || g.params != job.Params {
		g.params = job.Params
		g.model = biome.NewModel(job.Params)
		g.placer = nil
	}
	if g.placer == nil || g.veg != job.VegConfig {
		g.veg = job.VegConfig
		g.placer = vegetation.NewPlacer(g.model, job.Params.Seed, job.VegConfig)
	}
}

// Generate строит сетку высот, меш рельефа, воду и растительность чанка
func (g *ChunkGenerator) Generate(ctx context.Context, job GenerationJob) GenerationResult {
	start := time.Now()
	res := GenerationResult{JobID: job.JobID, Coords: job.Coords}

	g.prepare(&job)
	origin := job.Coords.Origin(job.ChunkSize)

	grid := mesh.SampleGrid(g.model, origin.X, origin.Y, job.ChunkSize, job.GridSize)
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	res.Grid = grid
	res.Terrain = mesh.BuildTerrain(grid)
	res.Water = mesh.BuildWater(grid)

	if job.Vegetation {
		res.Trees = g.placer.Place(job.Coords, job.ChunkSize, grid.HeightAt)
		if len(res.Trees) > 0 {
			res.Vegetation, _ = mesh.BuildVegetation(res.Trees, job.VegConfig.MaxLeaves)
		}
	}

	res.Took = time.Since(start)
	return res
}
