package mesh

import (
	"math"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/noise"
	"github.com/annel0/procworld/internal/vegetation"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	subSegments   = 4    // прямых отрезков на ветку
	jitterAmp     = 0.08 // боковое блуждание относительно длины ветки
	jitterDamping = 0.5  // затухание смещения обратно к прямой
	taper         = 0.35 // сужение ветки от основания к концу
	minBranchLen  = 0.15
	maxTreeDepth  = 5

	coneTrunk = 25.0 * math.Pi / 180 // предельный угол у ствола
	coneCrown = 60.0 * math.Pi / 180 // предельный угол у кроны
	coneLimit = 80.0 * math.Pi / 180

	childLenMin = 0.62
	childLenMax = 0.78

	segBranching = -1 // индекс "сегмента" для решений о ветвлении
)

// соли хешей внутри одного (depth, branch, segment)
const (
	saltRight = iota
	saltForward
	saltChildren
	saltAngle
	saltAzimuth
	saltLength
	saltLeaf
)

// TreeStats сводка построенного дерева
type TreeStats struct {
	Branches int
	Leaves   int
}

type treeBuilder struct {
	geom      *Geometry
	seed      uint64
	info      *vegetation.SpeciesInfo
	maxDepth  int
	maxLeaves int
	trunk     biome.Color
	leaf      biome.Color
	stats     TreeStats
}

func (b *treeBuilder) h(depth, branch, segment int, salt int64) float64 {
	return noise.HashUnit(b.seed, int64(depth), int64(branch), int64(segment), salt)
}

// BuildTree строит рекурсивное фрактальное дерево. Форма полностью определяется
// сидом размещения: все случайные решения берутся из хеша (seed, depth, branch, segment).
func BuildTree(t vegetation.PlacedTree, maxLeaves int) (*Geometry, TreeStats) {
	geom := NewGeometry(256)
	info := &vegetation.Catalog[0]
	if t.Species >= 0 && int(t.Species) < vegetation.NumSpecies {
		info = &vegetation.Catalog[t.Species]
	}
	depth := min(max(info.Depth, 1), maxTreeDepth)

	b := &treeBuilder{
		geom:      geom,
		seed:      t.Seed,
		info:      info,
		maxDepth:  depth,
		maxLeaves: maxLeaves,
		trunk:     t.TrunkColor,
		leaf:      t.LeafColor,
	}

	// наклон ствола: поворот вертикали вокруг горизонтальной оси, заданной Yaw
	axis := mgl64.Vec3{math.Cos(t.Yaw), 0, math.Sin(t.Yaw)}
	dir := mgl64.QuatRotate(t.Tilt, axis).Rotate(up)

	base := mgl64.Vec3{t.WorldX, t.WorldY, t.WorldZ}
	size := t.Size
	if size <= 0 {
		size = 1
	}
	b.branch(base, dir, info.Length*size, info.Width*size, depth, 0)
	return geom, b.stats
}

// branch рисует ветку из subSegments отрезков и рекурсивно порождает 2–3 дочерних
func (b *treeBuilder) branch(base, dir mgl64.Vec3, length, width float64, depth, index int) {
	b.stats.Branches++
	right, forward := basis(dir)

	segLen := length / subSegments
	amp := jitterAmp * length
	offset := mgl64.Vec3{}
	pos := base

	for s := 0; s < subSegments; s++ {
		ideal := base.Add(dir.Mul(segLen * float64(s+1)))
		jitter := right.Mul((b.h(depth, index, s, saltRight) - 0.5) * 2 * amp).
			Add(forward.Mul((b.h(depth, index, s, saltForward) - 0.5) * 2 * amp))
		offset = offset.Mul(jitterDamping).Add(jitter)

		next := ideal.Add(offset)
		w0 := width * (1 - taper*float64(s)/subSegments)
		w1 := width * (1 - taper*float64(s+1)/subSegments)
		b.prism(pos, next, w0, w1)
		pos = next
	}
	tip := pos

	if depth == 1 {
		b.leafCluster(tip, dir, depth, index)
		return
	}

	children := 2
	if b.h(depth, index, segBranching, saltChildren) >= 0.5 {
		children = 3
	}

	// конус: узкий у ствола, широкий у кроны
	t := 0.0
	if b.maxDepth > 1 {
		t = float64(b.maxDepth-depth) / float64(b.maxDepth-1)
	}
	limit := math.Min(noise.Lerp(coneTrunk, coneCrown, t)*b.info.Spread, coneLimit)
	childWidth := width * (1 - taper)

	for i := 0; i < children; i++ {
		childIndex := index*4 + i + 1
		childLen := length * noise.Lerp(childLenMin, childLenMax, b.h(depth, childIndex, segBranching, saltLength))
		if childLen < minBranchLen {
			continue
		}

		angle := limit * (0.5 + 0.5*b.h(depth, childIndex, segBranching, saltAngle))
		azimuth := 2*math.Pi*float64(i)/float64(children) + (b.h(depth, childIndex, segBranching, saltAzimuth)-0.5)*0.8

		// ось наклона: right, повёрнутый вокруг dir на azimuth
		tiltAxis := mgl64.QuatRotate(azimuth, dir).Rotate(right)
		childDir := mgl64.QuatRotate(angle, tiltAxis).Rotate(dir)

		b.branch(tip, safeNormalize(childDir, dir), childLen, childWidth, depth-1, childIndex)
	}
}

// prism трёхгранная усечённая призма от a до b
func (b *treeBuilder) prism(a, c mgl64.Vec3, w0, w1 float64) {
	axis := c.Sub(a)
	if axis.Len() < 1e-9 {
		return
	}
	right, forward := basis(safeNormalize(axis, up))
	center := a.Add(c).Mul(0.5)

	var lo, hi [3]mgl64.Vec3
	for k := 0; k < 3; k++ {
		ang := 2 * math.Pi * float64(k) / 3
		r := right.Mul(math.Cos(ang)).Add(forward.Mul(math.Sin(ang)))
		lo[k] = a.Add(r.Mul(w0 * 0.5))
		hi[k] = c.Add(r.Mul(w1 * 0.5))
	}
	for k := 0; k < 3; k++ {
		n := (k + 1) % 3
		b.geom.triangleOutward(lo[k], lo[n], hi[k], center, b.trunk)
		b.geom.triangleOutward(lo[n], hi[n], hi[k], center, b.trunk)
	}
}

// leafCluster вытянутый вдоль ветки бокс на конце ветки
func (b *treeBuilder) leafCluster(tip, dir mgl64.Vec3, depth, index int) {
	if b.stats.Leaves >= b.maxLeaves {
		return
	}
	b.stats.Leaves++

	right, forward := basis(dir)
	s := b.info.LeafSize * (0.8 + 0.4*b.h(depth, index, segBranching, saltLeaf))
	hw := right.Mul(s * 0.5)
	hd := forward.Mul(s * 0.5)
	hl := dir.Mul(s * 0.5 * b.info.LeafStretch)
	center := tip.Add(hl.Mul(0.5))

	var corners [8]mgl64.Vec3
	for k := 0; k < 8; k++ {
		p := center
		p = p.Add(hw.Mul(sign(k & 1)))
		p = p.Add(hd.Mul(sign(k & 2)))
		p = p.Add(hl.Mul(sign(k & 4)))
		corners[k] = p
	}

	faces := [6][4]int{
		{0, 1, 3, 2}, {4, 5, 7, 6}, // -l, +l
		{0, 1, 5, 4}, {2, 3, 7, 6}, // -d, +d
		{0, 2, 6, 4}, {1, 3, 7, 5}, // -w, +w
	}
	for _, f := range faces {
		b.geom.triangleOutward(corners[f[0]], corners[f[1]], corners[f[2]], center, b.leaf)
		b.geom.triangleOutward(corners[f[0]], corners[f[2]], corners[f[3]], center, b.leaf)
	}
}

// BuildVegetation объединяет деревья чанка в одну геометрию
func BuildVegetation(trees []vegetation.PlacedTree, maxLeaves int) (*Geometry, TreeStats) {
	geom := NewGeometry(len(trees) * 128)
	var total TreeStats
	for _, t := range trees {
		tree, s := BuildTree(t, maxLeaves)
		geom.Append(tree)
		total.Branches += s.Branches
		total.Leaves += s.Leaves
	}
	return geom, total
}

// basis два единичных вектора, перпендикулярных dir и друг другу
func basis(dir mgl64.Vec3) (right, forward mgl64.Vec3) {
	helper := up
	if math.Abs(dir[1]) > 0.99 {
		helper = mgl64.Vec3{1, 0, 0}
	}
	right = safeNormalize(dir.Cross(helper), mgl64.Vec3{1, 0, 0})
	forward = safeNormalize(right.Cross(dir), mgl64.Vec3{0, 0, 1})
	return right, forward
}

func safeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-12 || math.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / l)
}

func sign(bit int) float64 {
	if bit != 0 {
		return 1
	}
	return -1
}
