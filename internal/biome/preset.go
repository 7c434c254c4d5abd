package biome

// Color цвет RGB в линейном пространстве [0, 1]
type Color struct {
	R, G, B float64
}

// Lerp смешивает два цвета
func (c Color) Lerp(o Color, t float64) Color {
	return Color{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
	}
}

// Scale умножает цвет на скаляр
func (c Color) Scale(k float64) Color {
	return Color{R: c.R * k, G: c.G * k, B: c.B * k}
}

func (c Color) add(o Color) Color {
	return Color{R: c.R + o.R, G: c.G + o.G, B: c.B + o.B}
}

// ID индекс биома в каталоге Presets
type ID int

const (
	Ocean ID = iota
	Plains
	Forest
	Desert
	Mountains
	Tundra

	NumPresets = 6
)

// UnknownName метка для точек без данных
const UnknownName = "Unknown"

// String возвращает имя биома
func (id ID) String() string {
	if id < 0 || int(id) >= NumPresets {
		return UnknownName
	}
	return Presets[id].Name
}

// Preset статическая запись каталога биомов
type Preset struct {
	Name          string
	Temperature   float64 // целевая температура в [0, 1]
	Moisture      float64 // целевая влажность в [0, 1]
	MountainScale float64
	DetailScale   float64
	SeaLevel      float64 // высота при C = 0
	InlandPlateau float64 // высота при C = 1
	Surface       Color
	Deep          Color // цвет дна ниже уровня воды
	Rock          Color
}

// Presets каталог из шести биомов, порядок совпадает с ID
var Presets = [NumPresets]Preset{
	{
		Name: "ocean", Temperature: 0.55, Moisture: 0.95,
		MountainScale: 10, DetailScale: 4, SeaLevel: -45, InlandPlateau: -12,
		Surface: Color{0.76, 0.70, 0.50}, Deep: Color{0.10, 0.22, 0.35}, Rock: Color{0.35, 0.35, 0.38},
	},
	{
		Name: "plains", Temperature: 0.55, Moisture: 0.45,
		MountainScale: 40, DetailScale: 6, SeaLevel: -6, InlandPlateau: 14,
		Surface: Color{0.45, 0.66, 0.30}, Deep: Color{0.30, 0.38, 0.30}, Rock: Color{0.48, 0.45, 0.40},
	},
	{
		Name: "forest", Temperature: 0.50, Moisture: 0.70,
		MountainScale: 60, DetailScale: 9, SeaLevel: -4, InlandPlateau: 20,
		Surface: Color{0.22, 0.45, 0.20}, Deep: Color{0.20, 0.30, 0.25}, Rock: Color{0.40, 0.38, 0.34},
	},
	{
		Name: "desert", Temperature: 0.85, Moisture: 0.15,
		MountainScale: 35, DetailScale: 5, SeaLevel: -3, InlandPlateau: 12,
		Surface: Color{0.86, 0.76, 0.50}, Deep: Color{0.55, 0.48, 0.35}, Rock: Color{0.66, 0.50, 0.36},
	},
	{
		Name: "mountains", Temperature: 0.30, Moisture: 0.50,
		MountainScale: 220, DetailScale: 16, SeaLevel: 0, InlandPlateau: 45,
		Surface: Color{0.42, 0.48, 0.36}, Deep: Color{0.28, 0.32, 0.30}, Rock: Color{0.46, 0.44, 0.43},
	},
	{
		Name: "tundra", Temperature: 0.10, Moisture: 0.40,
		MountainScale: 90, DetailScale: 8, SeaLevel: -5, InlandPlateau: 18,
		Surface: Color{0.72, 0.74, 0.70}, Deep: Color{0.35, 0.40, 0.45}, Rock: Color{0.50, 0.50, 0.52},
	},
}

// snowColor цвет снежных шапок
var snowColor = Color{0.95, 0.96, 0.98}

// blended значения пресетов, смешанные весами RBF
type blended struct {
	mountainScale float64
	detailScale   float64
	seaLevel      float64
	inlandPlateau float64
	surface       Color
	deep          Color
	rock          Color
}

func blend(w *[NumPresets]float64) blended {
	var b blended
	for i := range Presets {
		p := &Presets[i]
		wi := w[i]
		if wi == 0 {
			continue
		}
		b.mountainScale += p.MountainScale * wi
		b.detailScale += p.DetailScale * wi
		b.seaLevel += p.SeaLevel * wi
		b.inlandPlateau += p.InlandPlateau * wi
		b.surface = b.surface.add(p.Surface.Scale(wi))
		b.deep = b.deep.add(p.Deep.Scale(wi))
		b.rock = b.rock.add(p.Rock.Scale(wi))
	}
	return b
}
