package noise

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// Noise2D градиентный шум: (x, y) -> [-1, 1]
type Noise2D func(x, y float64) float64

// CreateNoise2D строит функцию градиентного шума, таблица перестановок которой
// выводится из генератора rnd (два 32-битных слова образуют сид OpenSimplex).
func CreateNoise2D(rnd RandomFn) Noise2D {
	hi := int64(Uint32(rnd))
	lo := int64(Uint32(rnd))
	n := opensimplex.New(hi<<32 | lo)

	return func(x, y float64) float64 {
		if !finite(x) || !finite(y) {
			return 0
		}
		return Clamp(n.Eval2(x, y), -1, 1)
	}
}

// Field именованное шумовое поле. Неизменяемо после создания,
// безопасно для одновременного чтения из нескольких воркеров.
type Field struct {
	name string
	eval Noise2D
}

// NewField создаёт поле с сидом seed + "_" + name, так что поля с разными именами не коррелируют
func NewField(seed, name string) *Field {
	return &Field{
		name: name,
		eval: CreateNoise2D(SeedRng(seed + "_" + name)),
	}
}

// Name возвращает имя поля
func (f *Field) Name() string { return f.name }

// Eval возвращает сырое значение шума в [-1, 1]
func (f *Field) Eval(x, y float64) float64 {
	return f.eval(x, y)
}

// Unit возвращает 0.5 + 0.5·n, ограниченное [0, 1]
func (f *Field) Unit(x, y float64) float64 {
	return Clamp(0.5+0.5*f.eval(x, y), 0, 1)
}

// Ridged возвращает 1 - |n|: гребни там, где шум пересекает ноль
func (f *Field) Ridged(x, y float64) float64 {
	return 1 - math.Abs(f.eval(x, y))
}

// Clamp ограничивает v отрезком [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp линейная интерполяция
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Smoothstep эрмитова ступенька между edge0 и edge1
func Smoothstep(edge0, edge1, x float64) float64 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
