package biome

import (
	"math"

	"github.com/annel0/procworld/internal/config"
	"github.com/annel0/procworld/internal/noise"
)

// Длины волн управляющих полей в мировых единицах (до деления на scale)
const (
	continentalWavelength = 4000.0
	erosionWavelength     = 2500.0
	temperatureWavelength = 3000.0
	moistureWavelength    = 2200.0
	warpWavelength        = 600.0
	warpStrength          = 120.0
	rangesWavelength      = 6000.0
	rangeVarWavelength    = 1500.0
	riverWavelength       = 1800.0
)

const (
	// WaterLevel уровень воды в мировых единицах
	WaterLevel = 0.0

	sigmaMin  = 0.1
	sigmaMax  = 0.4
	sigmaGain = 8e-5 // σ = sigmaGain / |∇(T,M)|
	gradStep  = 8.0  // шаг центральной разности для градиента климата

	reliefExponent = 1.8
	detailOctaves  = 4

	riverDepth     = 10.0
	riverBandStart = 0.93
	riverBandEnd   = 0.99

	snowStart = 90.0
	snowFull  = 140.0
)

// Params результат выборки поля в точке. Вычисляется заново при каждом вызове.
type Params struct {
	Continentalness float64
	Erosion         float64
	Temperature     float64
	Moisture        float64
	MountainMask    float64
	Relief          float64
	Detail          float64
	WarpedX         float64
	WarpedY         float64
	BaseHeight      float64
	FinalHeight     float64

	// Sigma ширина RBF ядра, использованная в этой точке
	Sigma float64
	// Weights нормированные веса пресетов (сумма = 1)
	Weights [NumPresets]float64
}

// Dominant возвращает биом с максимальным весом; при равенстве побеждает меньший ID
func (p *Params) Dominant() ID {
	best := ID(0)
	for i := 1; i < NumPresets; i++ {
		if p.Weights[i] > p.Weights[best] {
			best = ID(i)
		}
	}
	return best
}

// Model поле биомов для одного набора параметров рельефа.
// Неизменяема после создания: каждый воркер может держать свою копию.
type Model struct {
	params config.TerrainParams

	continental *noise.Field
	erosion     *noise.Field
	temperature *noise.Field
	moisture    *noise.Field
	warpX       *noise.Field
	warpZ       *noise.Field
	relief      *noise.Field
	ranges      *noise.Field
	rangeVar    *noise.Field
	river       *noise.Field
	detail      *noise.Detail
}

// NewModel создаёт модель; каждое поле получает собственный сид seed + "_" + имя
func NewModel(p config.TerrainParams) *Model {
	if p.Scale <= 0 {
		p.Scale = 1
	}
	s := p.Seed
	return &Model{
		params:      p,
		continental: noise.NewField(s, "continental"),
		erosion:     noise.NewField(s, "erosion"),
		temperature: noise.NewField(s, "temperature"),
		moisture:    noise.NewField(s, "moisture"),
		warpX:       noise.NewField(s, "warpX"),
		warpZ:       noise.NewField(s, "warpZ"),
		relief:      noise.NewField(s, "relief"),
		ranges:      noise.NewField(s, "ranges"),
		rangeVar:    noise.NewField(s, "rangeVar"),
		river:       noise.NewField(s, "river"),
		detail:      noise.NewDetail(s, "detail", detailOctaves),
	}
}

// TerrainParams возвращает параметры, из которых построена модель
func (m *Model) TerrainParams() config.TerrainParams {
	return m.params
}

func (m *Model) climate(sx, sz float64) (t, mo float64) {
	t = m.temperature.Unit(sx/temperatureWavelength, sz/temperatureWavelength)
	mo = m.moisture.Unit(sx/moistureWavelength, sz/moistureWavelength)
	return t, mo
}

// sigma оценивает ширину ядра по градиенту климатических полей:
// крутой градиент даёт узкое σ, пологий - широкое.
func (m *Model) sigma(sx, sz float64) float64 {
	tx1, mx1 := m.climate(sx+gradStep, sz)
	tx0, mx0 := m.climate(sx-gradStep, sz)
	tz1, mz1 := m.climate(sx, sz+gradStep)
	tz0, mz0 := m.climate(sx, sz-gradStep)

	inv := 1 / (2 * gradStep)
	dtx, dtz := (tx1-tx0)*inv, (tz1-tz0)*inv
	dmx, dmz := (mx1-mx0)*inv, (mz1-mz0)*inv
	grad := math.Sqrt(dtx*dtx + dtz*dtz + dmx*dmx + dmz*dmz)

	if grad <= 0 || math.IsNaN(grad) {
		return sigmaMax
	}
	return noise.Clamp(sigmaGain/grad, sigmaMin, sigmaMax)
}

// Weights считает нормированные RBF веса пресетов в точке (T, M) климата
func Weights(t, m, sigma float64) [NumPresets]float64 {
	var w [NumPresets]float64
	sigma = noise.Clamp(sigma, sigmaMin, sigmaMax)
	inv := 1 / (2 * sigma * sigma)

	sum := 0.0
	nearest, nearestD2 := 0, math.Inf(1)
	for i := range Presets {
		dt := t - Presets[i].Temperature
		dm := m - Presets[i].Moisture
		d2 := dt*dt + dm*dm
		if d2 < nearestD2 {
			nearest, nearestD2 = i, d2
		}
		w[i] = math.Exp(-d2 * inv)
		sum += w[i]
	}

	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		// при σ >= sigmaMin сюда не попадаем, но без весов высоту не посчитать
		w = [NumPresets]float64{}
		w[nearest] = 1
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// Sample вычисляет все управляющие поля и высоту в мировой точке (x, z)
func (m *Model) Sample(x, z float64) Params {
	var p Params
	sx := x / m.params.Scale
	sz := z / m.params.Scale

	p.Continentalness = m.continental.Unit(sx/continentalWavelength, sz/continentalWavelength)
	p.Erosion = m.erosion.Unit(sx/erosionWavelength, sz/erosionWavelength)
	p.Temperature, p.Moisture = m.climate(sx, sz)

	// искажение области
	p.WarpedX = sx + m.warpX.Eval(sx/warpWavelength, sz/warpWavelength)*warpStrength
	p.WarpedY = sz + m.warpZ.Eval(sx/warpWavelength, sz/warpWavelength)*warpStrength
	wx, wz := p.WarpedX, p.WarpedY

	p.Relief = m.relief.Ridged(wx*m.params.BaseFrequency, wz*m.params.BaseFrequency)
	p.Detail = m.detail.Unit(wx*m.params.DetailFrequency, wz*m.params.DetailFrequency)
	p.MountainMask = m.mountainMask(wx, wz, p.Continentalness, p.Erosion)

	p.Sigma = m.sigma(sx, sz)
	p.Weights = Weights(p.Temperature, p.Moisture, p.Sigma)
	b := blend(&p.Weights)

	p.BaseHeight = noise.Lerp(b.seaLevel, b.inlandPlateau, p.Continentalness)
	p.FinalHeight = p.BaseHeight +
		math.Pow(p.Relief, reliefExponent)*p.MountainMask*b.mountainScale*m.params.BaseAmplitude +
		p.Detail*b.detailScale*m.params.DetailAmplitude -
		m.riverCarve(wx, wz, p.Continentalness, p.Erosion)

	return p
}

// mountainMask где проходят хребты: низкочастотное поле через smoothstep
// плюс вторичная вариация, ослабленное эрозией и у побережья
func (m *Model) mountainMask(wx, wz, c, e float64) float64 {
	r := m.ranges.Unit(wx/rangesWavelength, wz/rangesWavelength)
	v := m.rangeVar.Eval(wx/rangeVarWavelength, wz/rangeVarWavelength)

	mask := noise.Smoothstep(0.45, 0.75, r) + 0.15*v
	mask *= 1 - 0.5*e
	mask *= noise.Smoothstep(0.25, 0.45, c)
	return noise.Clamp(mask, 0, 1)
}

// riverCarve глубина речной долины: узкая полоса около нуля шума, пропорционально C
func (m *Model) riverCarve(wx, wz, c, e float64) float64 {
	n := m.river.Eval(wx/riverWavelength, wz/riverWavelength)
	band := noise.Smoothstep(riverBandStart, riverBandEnd, 1-math.Abs(n))
	return riverDepth * band * c * (0.6 + 0.4*e)
}

// Height возвращает только итоговую высоту
func (m *Model) Height(x, z float64) float64 {
	p := m.Sample(x, z)
	return p.FinalHeight
}

// Color цвет поверхности для уже вычисленной выборки.
// Все смеси непрерывны по высоте и весам, жёстких переключений нет.
func (m *Model) Color(p *Params) Color {
	b := blend(&p.Weights)
	h := p.FinalHeight

	c := b.surface.Lerp(b.deep, noise.Smoothstep(WaterLevel+2, WaterLevel-8, h))

	rock := noise.Clamp(math.Pow(p.Relief, reliefExponent)*p.MountainMask*1.4, 0, 1)
	c = c.Lerp(b.rock, rock*0.8)

	snow := noise.Smoothstep(snowStart, snowFull, h) * (1 - 0.5*p.Temperature)
	c = c.Lerp(snowColor, snow)

	return c.Scale(0.9 + 0.2*p.Detail)
}

// SampleColor = Sample + Color
func (m *Model) SampleColor(x, z float64) (Params, Color) {
	p := m.Sample(x, z)
	return p, m.Color(&p)
}

// DominantBiome возвращает имя доминирующего биома (только для подписей и выбора видов)
func (m *Model) DominantBiome(x, z float64) string {
	p := m.Sample(x, z)
	return p.Dominant().String()
}
