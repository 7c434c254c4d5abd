package creature

import (
	"errors"
	"fmt"

	"github.com/annel0/procworld/internal/config"
)

// ErrInvalidParams параметры существа вне допустимых диапазонов
var ErrInvalidParams = errors.New("invalid creature params")

// MaxDelta верхняя граница шага симуляции, секунды
const MaxDelta = 0.05

// maxStepShare доля StepRadius, которую корень может пройти за MaxDelta
const maxStepShare = 0.5

// Params типизированные параметры сборки и поведения существа
type Params struct {
	Segments      int     // частиц позвоночника
	SegmentLength float64 // длина сегмента позвоночника
	LegPairs      int
	LegLength     float64
	StepRadius    float64 // расстояние, после которого нога делает шаг
	Friction      float64 // множитель неявной скорости Verlet
	Iterations    int     // итераций релаксации
	Gravity       float64 // за тик
	Muscle        float64 // подъём тела за тик через Prev.z
	HeadEase      float64 // доля пути головы к цели за тик
	Speed         float64 // м/с
	TurnRate      float64 // рад/с при блуждании
	Seed          uint64
}

// DefaultParams параметры четвероногого по умолчанию
func DefaultParams() Params {
	return Params{
		Segments:      4,
		SegmentLength: 1.2,
		LegPairs:      2,
		LegLength:     1.6,
		StepRadius:    0.6,
		Friction:      0.96,
		Iterations:    3,
		Gravity:       0.004,
		Muscle:        0.0035,
		HeadEase:      0.08,
		Speed:         1.5,
		TurnRate:      0.6,
		Seed:          7,
	}
}

// ParamsFromConfig накладывает секцию creature конфигурации на значения по умолчанию
func ParamsFromConfig(c config.CreatureConfig) Params {
	p := DefaultParams()
	if c.Segments != 0 {
		p.Segments = c.Segments
	}
	if c.SegmentLength != 0 {
		p.SegmentLength = c.SegmentLength
	}
	if c.LegPairs != 0 {
		p.LegPairs = c.LegPairs
	}
	p.Speed = c.Speed
	p.Seed = c.Seed
	return p
}

// MaxSpeed наибольшая скорость, допустимая при данном StepRadius
func (p Params) MaxSpeed() float64 {
	return p.StepRadius * maxStepShare / MaxDelta
}

// Validate проверяет числовые диапазоны при сборке
func (p Params) Validate() error {
	switch {
	case p.Segments < 2:
		return fmt.Errorf("%w: segments должно быть >= 2, получено %d", ErrInvalidParams, p.Segments)
	case p.SegmentLength <= 0:
		return fmt.Errorf("%w: segment_length должен быть > 0", ErrInvalidParams)
	case p.LegPairs < 1 || p.LegPairs > 4:
		return fmt.Errorf("%w: leg_pairs должно быть в [1,4], получено %d", ErrInvalidParams, p.LegPairs)
	case p.LegLength <= 0:
		return fmt.Errorf("%w: leg_length должен быть > 0", ErrInvalidParams)
	case p.StepRadius <= 0:
		return fmt.Errorf("%w: step_radius должен быть > 0", ErrInvalidParams)
	case p.Friction <= 0 || p.Friction > 1:
		return fmt.Errorf("%w: friction должен быть в (0,1], получено %v", ErrInvalidParams, p.Friction)
	case p.Iterations < 1:
		return fmt.Errorf("%w: iterations должно быть >= 1", ErrInvalidParams)
	case p.HeadEase <= 0 || p.HeadEase > 1:
		return fmt.Errorf("%w: head_ease должен быть в (0,1]", ErrInvalidParams)
	case p.Speed < 0 || p.TurnRate < 0:
		return fmt.Errorf("%w: speed и turn_rate не могут быть отрицательными", ErrInvalidParams)
	case p.Speed*MaxDelta > p.StepRadius*maxStepShare:
		// за один тик корень не должен уходить дальше половины радиуса шага,
		// иначе ноги одна за другой отстают и ограничения рвутся
		return fmt.Errorf("%w: speed %v слишком велика для step_radius %v (максимум %v)",
			ErrInvalidParams, p.Speed, p.StepRadius, p.MaxSpeed())
	}
	return nil
}
