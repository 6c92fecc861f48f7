// Package game содержит демонстрационные игровые типы поверх слоя
// репликации: состояние пешки, команду движения и поведение.
package game

import (
	"github.com/annel0/netsync/internal/bitbuf"
	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/vec"
)

// KindPawn тип фабрики пешки.
const KindPawn protocol.Kind = 1

// Поля пешки в каноническом порядке: бит i dirty-маски соответствует
// i-му полю.
const (
	FieldArchetype = 1 << iota
	FieldUserData
	FieldX
	FieldY
	FieldAngle
	FieldStatus

	pawnFieldCount = 6
)

// Кодировщики полей. Координаты и углы квантованы: равенство полей
// считается с допуском шага квантования.
var (
	archetypeEnc = bitbuf.NewIntEncoder(0, 255)
	userDataEnc  = bitbuf.NewIntEncoder(0, 4095)
	coordEnc     = bitbuf.NewFloatEncoder(-512, 512, 0.01)
	angleEnc     = bitbuf.NewFloatEncoder(0, 360, 0.1)
	statusEnc    = bitbuf.NewIntEncoder(0, 255)
)

// PawnState реплицируемое состояние пешки.
// UserData — приватное поле: реплицируется только контроллирующему пиру.
type PawnState struct {
	Archetype int32
	UserData  int32
	X         float64
	Y         float64
	Angle     float64
	Status    int32
}

// NewPawnState создаёт нулевое состояние пешки.
func NewPawnState() *PawnState { return &PawnState{} }

func (s *PawnState) Kind() protocol.Kind { return KindPawn }

func (s *PawnState) FieldCount() int { return pawnFieldCount }

func (s *PawnState) PrivateMask() uint32 { return FieldUserData }

func (s *PawnState) Reset() { *s = PawnState{} }

func (s *PawnState) CopyFrom(src protocol.State) {
	*s = *(src.(*PawnState))
}

func (s *PawnState) Clone() protocol.State {
	clone := *s
	return &clone
}

// Position позиция пешки вектором.
func (s *PawnState) Position() vec.Vec2 { return vec.Vec2{X: s.X, Y: s.Y} }

// DirtyFlags маска полей, отличающихся от basis по отношению
// равенства кодировщиков.
func (s *PawnState) DirtyFlags(basis protocol.State) uint32 {
	b := basis.(*PawnState)
	var flags uint32
	if !archetypeEnc.Equal(s.Archetype, b.Archetype) {
		flags |= FieldArchetype
	}
	if !userDataEnc.Equal(s.UserData, b.UserData) {
		flags |= FieldUserData
	}
	if !coordEnc.Equal(s.X, b.X) {
		flags |= FieldX
	}
	if !coordEnc.Equal(s.Y, b.Y) {
		flags |= FieldY
	}
	if !angleEnc.Equal(s.Angle, b.Angle) {
		flags |= FieldAngle
	}
	if !statusEnc.Equal(s.Status, b.Status) {
		flags |= FieldStatus
	}
	return flags
}

// Encode пишет помеченные поля. Буфер стековый, поэтому порядок записи
// обратный каноническому: читатель снимет поля в прямом.
func (s *PawnState) Encode(buf *bitbuf.Buffer, flags uint32) {
	bitbuf.PushIf(buf, flags, FieldStatus, statusEnc, s.Status)
	bitbuf.PushIf(buf, flags, FieldAngle, angleEnc, s.Angle)
	bitbuf.PushIf(buf, flags, FieldY, coordEnc, s.Y)
	bitbuf.PushIf(buf, flags, FieldX, coordEnc, s.X)
	bitbuf.PushIf(buf, flags, FieldUserData, userDataEnc, s.UserData)
	bitbuf.PushIf(buf, flags, FieldArchetype, archetypeEnc, s.Archetype)
}

// Decode читает помеченные поля в каноническом порядке; непомеченные
// сохраняют прежние значения.
func (s *PawnState) Decode(buf *bitbuf.Buffer, flags uint32) error {
	var err error
	if s.Archetype, err = bitbuf.PopIf(buf, flags, FieldArchetype, archetypeEnc, s.Archetype); err != nil {
		return err
	}
	if s.UserData, err = bitbuf.PopIf(buf, flags, FieldUserData, userDataEnc, s.UserData); err != nil {
		return err
	}
	if s.X, err = bitbuf.PopIf(buf, flags, FieldX, coordEnc, s.X); err != nil {
		return err
	}
	if s.Y, err = bitbuf.PopIf(buf, flags, FieldY, coordEnc, s.Y); err != nil {
		return err
	}
	if s.Angle, err = bitbuf.PopIf(buf, flags, FieldAngle, angleEnc, s.Angle); err != nil {
		return err
	}
	if s.Status, err = bitbuf.PopIf(buf, flags, FieldStatus, statusEnc, s.Status); err != nil {
		return err
	}
	return nil
}

// ApplyFlagged переносит помеченные поля из src.
func (s *PawnState) ApplyFlagged(src protocol.State, flags uint32) {
	from := src.(*PawnState)
	if flags&FieldArchetype != 0 {
		s.Archetype = from.Archetype
	}
	if flags&FieldUserData != 0 {
		s.UserData = from.UserData
	}
	if flags&FieldX != 0 {
		s.X = from.X
	}
	if flags&FieldY != 0 {
		s.Y = from.Y
	}
	if flags&FieldAngle != 0 {
		s.Angle = from.Angle
	}
	if flags&FieldStatus != 0 {
		s.Status = from.Status
	}
}

// ApplySmoothed интерполяция: координаты линейно, угол по кратчайшей
// дуге, дискретные поля защёлкиваются на ближайшем конце.
func (s *PawnState) ApplySmoothed(a, b protocol.State, t float64) {
	from := a.(*PawnState)
	to := b.(*PawnState)

	s.X = vec.Lerp(from.X, to.X, t)
	s.Y = vec.Lerp(from.Y, to.Y, t)
	s.Angle = vec.LerpAngle(from.Angle, to.Angle, t)

	if t < 0.5 {
		s.Archetype = from.Archetype
		s.UserData = from.UserData
		s.Status = from.Status
	} else {
		s.Archetype = to.Archetype
		s.UserData = to.UserData
		s.Status = to.Status
	}
}

// Equals равенство всех полей по отношению кодировщиков.
func (s *PawnState) Equals(other protocol.State) bool {
	return s.DirtyFlags(other) == 0
}
