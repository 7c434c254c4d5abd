package mesh

import (
	"math"
	"testing"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/vegetation"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// planeSampler высота как линейная функция координат
type planeSampler struct {
	a, b, c float64
}

func (s planeSampler) SampleColor(x, z float64) (biome.Params, biome.Color) {
	h := s.a*x + s.b*z + s.c
	return biome.Params{FinalHeight: h}, biome.Color{R: x / 64, G: z / 64, B: 0.5}
}

func TestBuildTerrain_FlatGrid(t *testing.T) {
	g := SampleGrid(planeSampler{c: 5}, 0, 0, 64, 5)
	geom := BuildTerrain(g)

	require.NoError(t, geom.Validate())
	assert.Equal(t, 4*4*2*3, geom.VertexCount, "Каждый треугольник имеет три собственные вершины")

	for i := 0; i < geom.VertexCount; i++ {
		assert.InDelta(t, 0.0, geom.Normals[i*3], 1e-6)
		assert.InDelta(t, 1.0, geom.Normals[i*3+1], 1e-6, "Нормаль плоской сетки направлена вверх")
		assert.InDelta(t, 0.0, geom.Normals[i*3+2], 1e-6)
		assert.InDelta(t, 5.0, geom.Positions[i*3+1], 1e-6)
	}
}

func TestBuildTerrain_SlopeNormals(t *testing.T) {
	g := SampleGrid(planeSampler{a: 1}, 0, 0, 16, 3)
	geom := BuildTerrain(g)
	require.NoError(t, geom.Validate())

	want := mgl64.Vec3{-1, 1, 0}.Normalize()
	for i := 0; i < geom.VertexCount; i++ {
		assert.InDelta(t, want[0], geom.Normals[i*3], 1e-6)
		assert.InDelta(t, want[1], geom.Normals[i*3+1], 1e-6)
		assert.InDelta(t, want[2], geom.Normals[i*3+2], 1e-6)
	}
}

func TestBuildTerrain_FaceColorIsAveraged(t *testing.T) {
	g := SampleGrid(planeSampler{}, 0, 0, 64, 2)
	geom := BuildTerrain(g)
	require.Equal(t, 6, geom.VertexCount)

	// первый треугольник (a, c, b): R = (0 + 0 + 1)/3, G = (0 + 1 + 0)/3
	for v := 0; v < 3; v++ {
		assert.InDelta(t, 1.0/3, geom.Colors[v*3], 1e-6)
		assert.InDelta(t, 1.0/3, geom.Colors[v*3+1], 1e-6)
	}
	// второй (b, c, d): R = (1 + 0 + 1)/3, G = (0 + 1 + 1)/3
	for v := 3; v < 6; v++ {
		assert.InDelta(t, 2.0/3, geom.Colors[v*3], 1e-6)
		assert.InDelta(t, 2.0/3, geom.Colors[v*3+1], 1e-6)
	}
}

func TestHeightAt_ExactAtVertices(t *testing.T) {
	g := SampleGrid(planeSampler{a: 0.37, b: -1.3, c: 2.1}, 128, -64, 64, 33)

	for j := 0; j < g.Size; j++ {
		for i := 0; i < g.Size; i++ {
			x := g.OriginX + float64(i)*g.Step
			z := g.OriginZ + float64(j)*g.Step
			require.Equal(t, g.At(i, j), g.HeightAt(x, z), "Вершина (%d,%d)", i, j)
		}
	}
}

func TestHeightAt_MidpointOfEqualNeighbors(t *testing.T) {
	g := &Grid{Size: 3, Step: 2, Heights: []float64{
		1.7, 1.7, 3,
		4, 5, 6,
		7, 8, 9,
	}}
	assert.Equal(t, 1.7, g.HeightAt(1, 0))
	assert.InDelta(t, 4.5, g.HeightAt(1, 2), 1e-12)
	assert.InDelta(t, (1.7+1.7+4+5)/4, g.HeightAt(1, 1), 1e-12)
}

func TestHeightAt_ClampsAndGuards(t *testing.T) {
	g := &Grid{Size: 2, Step: 1, Heights: []float64{1, 2, 3, 4}}
	assert.Equal(t, 1.0, g.HeightAt(-5, -5))
	assert.Equal(t, 4.0, g.HeightAt(10, 10))
	assert.True(t, math.IsInf(HeightAt(nil, 2, 0, 0, 1, 0, 0), -1), "Пустая сетка даёт -Inf")
}

func TestBuildWater(t *testing.T) {
	dry := SampleGrid(planeSampler{c: 3}, 0, 0, 64, 3)
	assert.Nil(t, BuildWater(dry))

	wet := SampleGrid(planeSampler{a: 0.1, c: -2}, 0, 0, 64, 3)
	w := BuildWater(wet)
	require.NotNil(t, w)
	require.NoError(t, w.Validate())
	assert.Equal(t, 6, w.VertexCount)
	for i := 0; i < w.VertexCount; i++ {
		assert.Equal(t, float32(biome.WaterLevel), w.Positions[i*3+1])
		assert.Equal(t, float32(1), w.Normals[i*3+1])
	}
}

func TestValidate_RejectsMalformed(t *testing.T) {
	g := SampleGrid(planeSampler{c: 1}, 0, 0, 64, 3)
	good := BuildTerrain(g)
	require.NoError(t, good.Validate())

	truncated := *good
	truncated.Positions = truncated.Positions[:len(truncated.Positions)-3]
	assert.ErrorIs(t, truncated.Validate(), ErrMalformedGeometry)

	wrongCount := *good
	wrongCount.VertexCount++
	assert.ErrorIs(t, wrongCount.Validate(), ErrMalformedGeometry)

	nan := *good
	nan.Positions = append([]float32(nil), good.Positions...)
	nan.Positions[4] = float32(math.NaN())
	assert.ErrorIs(t, nan.Validate(), ErrMalformedGeometry)

	var nilGeom *Geometry
	assert.NoError(t, nilGeom.Validate())
	assert.Equal(t, 0, nilGeom.Bytes())
}

func TestFaceNormal_Degenerate(t *testing.T) {
	p := mgl64.Vec3{1, 2, 3}
	assert.Equal(t, up, FaceNormal(p, p, p))
	assert.Equal(t, up, FaceNormal(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0}))
}

func testTree(species vegetation.Species, seed uint64) vegetation.PlacedTree {
	info := vegetation.Catalog[species]
	return vegetation.PlacedTree{
		WorldX: 10, WorldY: 4, WorldZ: -3,
		Species: species, Size: 1, Tilt: 0.05, Yaw: 1.2,
		TrunkColor: info.Trunk, LeafColor: info.Leaf,
		Seed: seed,
	}
}

func TestBuildTree_Deterministic(t *testing.T) {
	a, sa := BuildTree(testTree(vegetation.Oak, 42), 48)
	b, sb := BuildTree(testTree(vegetation.Oak, 42), 48)
	c, _ := BuildTree(testTree(vegetation.Oak, 43), 48)

	require.NoError(t, a.Validate())
	assert.Equal(t, a, b, "Одинаковый сид даёт одинаковое дерево")
	assert.Equal(t, sa, sb)
	assert.NotEqual(t, a.Positions, c.Positions, "Разные сиды дают разные деревья")
}

func TestBuildTree_LeafCap(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		_, s := BuildTree(testTree(vegetation.Oak, seed), 5)
		assert.LessOrEqual(t, s.Leaves, 5, "Лимит листьев на дерево")
		assert.Greater(t, s.Branches, 1)
	}

	_, s := BuildTree(testTree(vegetation.Oak, 1), 48)
	assert.Greater(t, s.Leaves, 5, "Дуб глубины 4 имеет много концевых веток")
	assert.LessOrEqual(t, s.Leaves, 48)
}

func TestBuildTree_GrassIsSingleTuft(t *testing.T) {
	g, s := BuildTree(testTree(vegetation.Grass, 9), 48)
	require.NoError(t, g.Validate())
	assert.Equal(t, 1, s.Branches)
	assert.Equal(t, 1, s.Leaves, "Лист только на конце ветки глубины 1")
}

func TestBuildTree_StaysNearBase(t *testing.T) {
	tree := testTree(vegetation.Pine, 7)
	g, _ := BuildTree(tree, 48)
	info := vegetation.Catalog[vegetation.Pine]

	// дерево не может уйти дальше суммы длин всех уровней
	reach := info.Length * (1 + childLenMax + childLenMax*childLenMax + 1) * 1.5
	for i := 0; i < g.VertexCount; i++ {
		dx := float64(g.Positions[i*3]) - tree.WorldX
		dy := float64(g.Positions[i*3+1]) - tree.WorldY
		dz := float64(g.Positions[i*3+2]) - tree.WorldZ
		require.Less(t, math.Sqrt(dx*dx+dy*dy+dz*dz), reach)
	}
}

func TestBuildVegetation_Merges(t *testing.T) {
	trees := []vegetation.PlacedTree{testTree(vegetation.Oak, 1), testTree(vegetation.Bush, 2)}
	merged, stats := BuildVegetation(trees, 48)
	require.NoError(t, merged.Validate())

	a, sa := BuildTree(trees[0], 48)
	b, sb := BuildTree(trees[1], 48)
	assert.Equal(t, a.VertexCount+b.VertexCount, merged.VertexCount)
	assert.Equal(t, sa.Leaves+sb.Leaves, stats.Leaves)
	assert.Equal(t, a.Bytes()+b.Bytes(), merged.Bytes())
	assert.Equal(t, a.TriangleCount()+b.TriangleCount(), merged.TriangleCount())

	// второе дерево лежит в объединённом буфере сразу за первым
	assert.Equal(t, a.Positions, merged.Positions[:len(a.Positions)])
	assert.Equal(t, b.Colors, merged.Colors[len(a.Colors):])
}

func TestGeometry_AppendAndTriangleCount(t *testing.T) {
	g := NewGeometry(6)
	c := biome.Color{R: 0.2, G: 0.6, B: 0.1}
	g.Triangle(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 0, 0}, c)
	require.Equal(t, 1, g.TriangleCount())

	o := NewGeometry(3)
	o.Triangle(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 1}, mgl64.Vec3{1, 1, 0}, c)
	g.Append(o)
	g.Append(nil)

	assert.Equal(t, 2, g.TriangleCount())
	assert.Equal(t, 6, g.VertexCount)
	assert.Len(t, g.Positions, 18)
	assert.Len(t, g.Normals, 18)
	assert.Len(t, g.Colors, 18)
	require.NoError(t, g.Validate())

	var empty *Geometry
	assert.Equal(t, 0, empty.TriangleCount())
}
