package noise

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// SeedHash переводит строку-сид в 64-битный ключ для позиционных хешей
func SeedHash(seed string) uint64 {
	return xxhash.Sum64String(seed)
}

// Hash64 детерминированно хеширует ключ и набор целых (координаты, индексы, соль).
// Порядок аргументов значим.
func Hash64(seed uint64, parts ...int64) uint64 {
	var buf [8 * 8]byte
	b := buf[:0]
	b = binary.LittleEndian.AppendUint64(b, seed)
	for _, p := range parts {
		if len(b)+8 > cap(b) {
			// длинные ключи сворачиваем по частям
			seed = xxhash.Sum64(b)
			b = binary.LittleEndian.AppendUint64(buf[:0], seed)
		}
		b = binary.LittleEndian.AppendUint64(b, uint64(p))
	}
	return xxhash.Sum64(b)
}

// Unit переводит хеш в равномерное число [0, 1) по старшим 53 битам
func Unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

// HashUnit = Unit(Hash64(...))
func HashUnit(seed uint64, parts ...int64) float64 {
	return Unit(Hash64(seed, parts...))
}

// HashRange возвращает детерминированное число в [lo, hi)
func HashRange(lo, hi float64, seed uint64, parts ...int64) float64 {
	return lo + (hi-lo)*HashUnit(seed, parts...)
}
