package vegetation

import (
	"math"

	"github.com/annel0/procworld/internal/biome"
	"github.com/annel0/procworld/internal/noise"
)

// Species вид растения
type Species int

const (
	Oak Species = iota
	Pine
	Birch
	Acacia
	Bush
	Grass

	NumSpecies = 6
)

// String возвращает имя вида
func (s Species) String() string {
	if s < 0 || int(s) >= NumSpecies {
		return "unknown"
	}
	return Catalog[s].Name
}

// SpeciesInfo параметры вида: среда обитания, размеры и форма кроны
type SpeciesInfo struct {
	Name       string
	MinSpacing float64 // радиус Пуассона при Size = 1
	SizeMin    float64
	SizeMax    float64
	MaxTilt    float64 // радианы

	TempIdeal  float64
	TempRange  float64
	MoistIdeal float64
	MoistRange float64
	MinHeight  float64 // над уровнем воды
	MaxHeight  float64

	Trunk biome.Color
	Leaf  biome.Color

	// форма для построителя меша
	Depth       int     // глубина рекурсии ветвей
	Length      float64 // длина ствола
	Width       float64 // толщина ствола у основания
	Spread      float64 // множитель конуса ветвления
	LeafSize    float64
	LeafStretch float64
}

// Catalog каталог видов, порядок совпадает с Species
var Catalog = [NumSpecies]SpeciesInfo{
	{
		Name: "oak", MinSpacing: 18, SizeMin: 0.8, SizeMax: 1.3, MaxTilt: 0.08,
		TempIdeal: 0.55, TempRange: 0.25, MoistIdeal: 0.6, MoistRange: 0.3, MinHeight: 0.5, MaxHeight: 80,
		Trunk: biome.Color{R: 0.36, G: 0.25, B: 0.16}, Leaf: biome.Color{R: 0.24, G: 0.50, B: 0.18},
		Depth: 4, Length: 4.5, Width: 0.55, Spread: 1.0, LeafSize: 1.3, LeafStretch: 1.6,
	},
	{
		Name: "pine", MinSpacing: 14, SizeMin: 0.8, SizeMax: 1.4, MaxTilt: 0.05,
		TempIdeal: 0.3, TempRange: 0.25, MoistIdeal: 0.5, MoistRange: 0.35, MinHeight: 1, MaxHeight: 160,
		Trunk: biome.Color{R: 0.30, G: 0.20, B: 0.14}, Leaf: biome.Color{R: 0.12, G: 0.32, B: 0.18},
		Depth: 3, Length: 6.5, Width: 0.45, Spread: 0.6, LeafSize: 1.1, LeafStretch: 2.2,
	},
	{
		Name: "birch", MinSpacing: 12, SizeMin: 0.7, SizeMax: 1.1, MaxTilt: 0.12,
		TempIdeal: 0.45, TempRange: 0.25, MoistIdeal: 0.65, MoistRange: 0.25, MinHeight: 0.5, MaxHeight: 90,
		Trunk: biome.Color{R: 0.85, G: 0.84, B: 0.78}, Leaf: biome.Color{R: 0.45, G: 0.62, B: 0.22},
		Depth: 4, Length: 5.0, Width: 0.35, Spread: 0.8, LeafSize: 1.0, LeafStretch: 1.4,
	},
	{
		Name: "acacia", MinSpacing: 22, SizeMin: 0.8, SizeMax: 1.2, MaxTilt: 0.15,
		TempIdeal: 0.85, TempRange: 0.2, MoistIdeal: 0.2, MoistRange: 0.25, MinHeight: 0.5, MaxHeight: 60,
		Trunk: biome.Color{R: 0.45, G: 0.33, B: 0.22}, Leaf: biome.Color{R: 0.52, G: 0.55, B: 0.20},
		Depth: 3, Length: 4.0, Width: 0.4, Spread: 1.4, LeafSize: 1.6, LeafStretch: 0.6,
	},
	{
		Name: "bush", MinSpacing: 6, SizeMin: 0.6, SizeMax: 1.2, MaxTilt: 0.2,
		TempIdeal: 0.5, TempRange: 0.4, MoistIdeal: 0.5, MoistRange: 0.45, MinHeight: 0.3, MaxHeight: 120,
		Trunk: biome.Color{R: 0.32, G: 0.24, B: 0.16}, Leaf: biome.Color{R: 0.28, G: 0.45, B: 0.20},
		Depth: 2, Length: 1.2, Width: 0.15, Spread: 1.5, LeafSize: 0.8, LeafStretch: 1.0,
	},
	{
		Name: "grass", MinSpacing: 3, SizeMin: 0.5, SizeMax: 1.0, MaxTilt: 0.3,
		TempIdeal: 0.55, TempRange: 0.35, MoistIdeal: 0.45, MoistRange: 0.4, MinHeight: 0.2, MaxHeight: 100,
		Trunk: biome.Color{R: 0.35, G: 0.50, B: 0.20}, Leaf: biome.Color{R: 0.40, G: 0.62, B: 0.25},
		Depth: 1, Length: 0.6, Width: 0.05, Spread: 1.0, LeafSize: 0.35, LeafStretch: 2.0,
	},
}

// Suitability пригодность среды для вида в [0, 1]
func (s *SpeciesInfo) Suitability(t, m, height float64) float64 {
	h := height - biome.WaterLevel
	if h < s.MinHeight || h > s.MaxHeight {
		return 0
	}
	dt := (t - s.TempIdeal) / s.TempRange
	dm := (m - s.MoistIdeal) / s.MoistRange
	climate := math.Exp(-(dt*dt + dm*dm))

	// мягкое затухание у верхней границы высот
	top := 1 - noise.Smoothstep(s.MaxHeight*0.8, s.MaxHeight, h)
	return climate * top
}

// Profile профиль растительности биома
type Profile struct {
	Density float64 // потолок интенсивности λ
	Weights [NumSpecies]float64
}

// Profiles профили по биомам, порядок совпадает с biome.ID
var Profiles = [biome.NumPresets]Profile{
	biome.Ocean:     {Density: 0},
	biome.Plains:    {Density: 0.25, Weights: [NumSpecies]float64{Oak: 0.3, Birch: 0.1, Bush: 0.3, Grass: 0.6}},
	biome.Forest:    {Density: 0.85, Weights: [NumSpecies]float64{Oak: 0.6, Pine: 0.4, Birch: 0.5, Bush: 0.2, Grass: 0.2}},
	biome.Desert:    {Density: 0.06, Weights: [NumSpecies]float64{Acacia: 0.5, Bush: 0.3, Grass: 0.1}},
	biome.Mountains: {Density: 0.35, Weights: [NumSpecies]float64{Pine: 0.8, Birch: 0.2, Bush: 0.2, Grass: 0.2}},
	biome.Tundra:    {Density: 0.12, Weights: [NumSpecies]float64{Pine: 0.5, Bush: 0.4, Grass: 0.4}},
}
