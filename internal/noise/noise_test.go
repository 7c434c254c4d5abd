package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedRng_Deterministic(t *testing.T) {
	a := SeedRng("terrain-42")
	b := SeedRng("terrain-42")
	for i := 0; i < 1000; i++ {
		va, vb := a(), b()
		require.Equal(t, va, vb, "Шаг %d: одинаковый сид должен давать одинаковую последовательность", i)
		require.GreaterOrEqual(t, va, 0.0)
		require.Less(t, va, 1.0)
	}
}

func TestSeedRng_DifferentSeedsDiverge(t *testing.T) {
	a := SeedRng("terrain-42")
	b := SeedRng("terrain-43")

	same := 0
	for i := 0; i < 100; i++ {
		if a() == b() {
			same++
		}
	}
	assert.Less(t, same, 5, "Разные сиды должны давать разные последовательности")
}

func TestSeedRng_Distribution(t *testing.T) {
	rnd := SeedRng("distribution")
	const n = 20000
	var buckets [10]int
	for i := 0; i < n; i++ {
		buckets[int(rnd()*10)]++
	}
	for i, c := range buckets {
		assert.InDelta(t, n/10, c, n/10*0.15, "Корзина %d заметно неравномерна", i)
	}
}

func TestUint32_RoundTrip(t *testing.T) {
	rnd := SeedRng("words")
	for i := 0; i < 100; i++ {
		w := Uint32(rnd)
		assert.Equal(t, float64(w)/4294967296.0*4294967296.0, float64(w))
	}
}

func TestField_RangeAndDeterminism(t *testing.T) {
	f1 := NewField("terrain-42", "continental")
	f2 := NewField("terrain-42", "continental")
	other := NewField("terrain-42", "erosion")

	differs := false
	for i := 0; i < 500; i++ {
		x := float64(i)*13.7 - 2000
		y := float64(i)*-7.3 + 511
		v := f1.Eval(x, y)
		assert.Equal(t, v, f2.Eval(x, y))
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)

		u := f1.Unit(x, y)
		assert.GreaterOrEqual(t, u, 0.0)
		assert.LessOrEqual(t, u, 1.0)

		r := f1.Ridged(x, y)
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)

		if other.Eval(x, y) != v {
			differs = true
		}
	}
	assert.True(t, differs, "Поля с разными именами не должны совпадать")
	assert.Equal(t, "continental", f1.Name())
}

func TestField_NonFiniteInput(t *testing.T) {
	f := NewField("s", "x")
	assert.Equal(t, 0.0, f.Eval(math.NaN(), 0))
	assert.Equal(t, 0.0, f.Eval(0, math.Inf(1)))
	assert.Equal(t, 0.0, f.Eval(math.Inf(-1), math.NaN()))
}

func TestField_LargeCoordinates(t *testing.T) {
	f := NewField("s", "far")
	v := f.Eval(1e9, -1e9)
	assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
}

func TestDetail_RangeAndDeterminism(t *testing.T) {
	d1 := NewDetail("terrain-42", "detail", 4)
	d2 := NewDetail("terrain-42", "detail", 4)
	for i := 0; i < 300; i++ {
		x := float64(i)*0.173 + 0.31
		y := float64(i)*-0.091 + 0.77
		v := d1.Eval(x, y)
		assert.Equal(t, v, d2.Eval(x, y))
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 0.0, d1.Eval(math.NaN(), 1))
}

func TestHash64_OrderMatters(t *testing.T) {
	s := SeedHash("terrain-42")
	assert.Equal(t, Hash64(s, 1, 2, 3), Hash64(s, 1, 2, 3))
	assert.NotEqual(t, Hash64(s, 1, 2, 3), Hash64(s, 3, 2, 1))
	assert.NotEqual(t, Hash64(s, 1, 2), Hash64(s+1, 1, 2))
	// длинный ключ тоже детерминирован
	long := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, Hash64(s, long...), Hash64(s, long...))
	assert.NotEqual(t, Hash64(s, long...), Hash64(s, long[:9]...))
}

func TestHashUnit_Range(t *testing.T) {
	s := SeedHash("unit")
	for i := int64(0); i < 2000; i++ {
		u := HashUnit(s, i)
		require.GreaterOrEqual(t, u, 0.0)
		require.Less(t, u, 1.0)
		r := HashRange(-3, 5, s, i)
		require.GreaterOrEqual(t, r, -3.0)
		require.Less(t, r, 5.0)
	}
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, Smoothstep(0, 1, -1))
	assert.Equal(t, 1.0, Smoothstep(0, 1, 2))
	assert.InDelta(t, 0.5, Smoothstep(0, 1, 0.5), 1e-12)
	assert.Equal(t, 1.0, Smoothstep(1, 1, 1), "Вырожденный интервал не должен делить на ноль")
}

func BenchmarkField_Eval(b *testing.B) {
	f := NewField("bench", "continental")
	for i := 0; i < b.N; i++ {
		f.Eval(float64(i)*0.37, float64(i)*0.11)
	}
}
