package noise

import (
	"github.com/cespare/xxhash/v2"
)

// RandomFn возвращает следующее псевдослучайное число в [0, 1)
type RandomFn func() float64

// HashString сворачивает строку в 32-битное состояние.
// xxhash64 даёт лавинный эффект, старшая и младшая половины смешиваются через xor.
func HashString(s string) uint32 {
	h := xxhash.Sum64String(s)
	return uint32(h) ^ uint32(h>>32)
}

// SeedRng создаёт детерминированный генератор из строки-сида.
// Одна и та же строка всегда даёт одну и ту же последовательность.
func SeedRng(seed string) RandomFn {
	state := HashString(seed)
	return func() float64 {
		// mulberry32, период 2^32
		state += 0x6D2B79F5
		t := state
		t = (t ^ t>>15) * (t | 1)
		t ^= t + (t^t>>7)*(t|61)
		return float64(t^t>>14) / 4294967296.0
	}
}

// Uint32 извлекает 32-битное слово из генератора.
// Значения mulberry32 кратны 2^-32, поэтому преобразование обратимо.
func Uint32(rnd RandomFn) uint32 {
	return uint32(rnd() * 4294967296.0)
}
