package bitbuf

import (
	"math"
	"math/bits"
)

// bitsForRange возвращает ширину, достаточную для значений [0, span].
func bitsForRange(span uint32) int {
	n := bits.Len32(span)
	if n == 0 {
		n = 1
	}
	return n
}

// IntEncoder кодирует целое из диапазона [Min, Max] смещением к нулю.
type IntEncoder struct {
	min  int32
	max  int32
	bits int
}

// NewIntEncoder создаёт кодировщик ограниченного целого.
// Диапазон с min > max считается ошибкой программиста.
func NewIntEncoder(min, max int32) *IntEncoder {
	if min > max {
		panic("bitbuf: IntEncoder с пустым диапазоном")
	}
	return &IntEncoder{
		min:  min,
		max:  max,
		bits: bitsForRange(uint32(max - min)),
	}
}

func (e *IntEncoder) RequiredBits() int { return e.bits }

func (e *IntEncoder) Pack(v int32) uint32 {
	if v < e.min {
		v = e.min
	}
	if v > e.max {
		v = e.max
	}
	return uint32(v - e.min)
}

func (e *IntEncoder) Unpack(raw uint32) int32 {
	return e.min + int32(raw&widthMask(e.bits))
}

// Equal для целых — точное равенство.
func (e *IntEncoder) Equal(a, b int32) bool { return a == b }

// FloatEncoder кодирует квантованный float из диапазона [Min, Max]
// с шагом Precision.
type FloatEncoder struct {
	min       float64
	max       float64
	precision float64
	bits      int
}

// NewFloatEncoder создаёт кодировщик квантованного float.
func NewFloatEncoder(min, max, precision float64) *FloatEncoder {
	if min >= max || precision <= 0 {
		panic("bitbuf: FloatEncoder с некорректными параметрами")
	}
	steps := uint32(math.Ceil((max - min) / precision))
	return &FloatEncoder{
		min:       min,
		max:       max,
		precision: precision,
		bits:      bitsForRange(steps),
	}
}

func (e *FloatEncoder) RequiredBits() int { return e.bits }

func (e *FloatEncoder) Pack(v float64) uint32 {
	if v < e.min {
		v = e.min
	}
	if v > e.max {
		v = e.max
	}
	return uint32(math.Round((v - e.min) / e.precision))
}

func (e *FloatEncoder) Unpack(raw uint32) float64 {
	return e.min + float64(raw&widthMask(e.bits))*e.precision
}

// Equal для квантованных float — «упаковались бы в одни и те же биты».
func (e *FloatEncoder) Equal(a, b float64) bool {
	return e.Pack(a) == e.Pack(b)
}

// BoolEncoder кодирует bool одним битом.
type BoolEncoder struct{}

func NewBoolEncoder() *BoolEncoder { return &BoolEncoder{} }

func (e *BoolEncoder) RequiredBits() int { return 1 }

func (e *BoolEncoder) Pack(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func (e *BoolEncoder) Unpack(raw uint32) bool { return raw&1 == 1 }

func (e *BoolEncoder) Equal(a, b bool) bool { return a == b }

// EnumEncoder кодирует перечисляемый тег из [0, count).
type EnumEncoder struct {
	count uint32
	bits  int
}

// NewEnumEncoder создаёт кодировщик перечисления на count значений.
func NewEnumEncoder(count uint32) *EnumEncoder {
	if count == 0 {
		panic("bitbuf: EnumEncoder без значений")
	}
	return &EnumEncoder{
		count: count,
		bits:  bitsForRange(count - 1),
	}
}

func (e *EnumEncoder) RequiredBits() int { return e.bits }

func (e *EnumEncoder) Pack(v uint32) uint32 {
	if v >= e.count {
		v = e.count - 1
	}
	return v
}

func (e *EnumEncoder) Unpack(raw uint32) uint32 { return raw & widthMask(e.bits) }

func (e *EnumEncoder) Equal(a, b uint32) bool { return a == b }

// FlagEncoder кодирует битовую маску фиксированной ширины.
// Используется для dirty-флагов состояний: ширина равна числу полей
// самого крупного зарегистрированного состояния.
type FlagEncoder struct {
	bits int
}

// NewFlagEncoder создаёт кодировщик маски шириной width бит.
func NewFlagEncoder(width int) *FlagEncoder {
	if width <= 0 || width > wordBits {
		panic("bitbuf: FlagEncoder с некорректной шириной")
	}
	return &FlagEncoder{bits: width}
}

func (e *FlagEncoder) RequiredBits() int { return e.bits }

func (e *FlagEncoder) Pack(v uint32) uint32 { return v & widthMask(e.bits) }

func (e *FlagEncoder) Unpack(raw uint32) uint32 { return raw & widthMask(e.bits) }

func (e *FlagEncoder) Equal(a, b uint32) bool { return a == b }

// U32Encoder кодирует произвольный uint32 без сжатия.
type U32Encoder struct{}

func NewU32Encoder() *U32Encoder { return &U32Encoder{} }

func (e *U32Encoder) RequiredBits() int { return wordBits }

func (e *U32Encoder) Pack(v uint32) uint32 { return v }

func (e *U32Encoder) Unpack(raw uint32) uint32 { return raw }

func (e *U32Encoder) Equal(a, b uint32) bool { return a == b }
