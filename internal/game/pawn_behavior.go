package game

import (
	"math"

	"github.com/annel0/netsync/internal/entity"
	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/world"
)

// Статусные биты пешки.
const (
	StatusMoving int32 = 1 << iota
	StatusFrozen
)

// PawnBehavior детерминированная симуляция пешки: одна и та же команда
// даёт один и тот же шаг на сервере и при клиентском повторе.
type PawnBehavior struct {
	entity.NopBehavior
}

// NewPawnBehavior создаёт поведение пешки.
func NewPawnBehavior() *PawnBehavior { return &PawnBehavior{} }

// OnSimulateCommand применяет команду движения к состоянию.
func (b *PawnBehavior) OnSimulateCommand(e *entity.Entity, cmd protocol.Command) {
	move, ok := cmd.(*MoveCommand)
	if !ok {
		return
	}
	s := e.State().(*PawnState)
	s.X += move.DX
	s.Y += move.DY

	if move.DX != 0 || move.DY != 0 {
		s.Status |= StatusMoving
		angle := math.Atan2(move.DY, move.DX) * 180 / math.Pi
		if angle < 0 {
			angle += 360
		}
		s.Angle = angle
	} else {
		s.Status &^= StatusMoving
	}
}

// OnFrozen помечает пешку замороженной для отрисовки.
func (b *PawnBehavior) OnFrozen(e *entity.Entity) {
	e.State().(*PawnState).Status |= StatusFrozen
}

// OnUnfrozen снимает пометку заморозки.
func (b *PawnBehavior) OnUnfrozen(e *entity.Entity) {
	e.State().(*PawnState).Status &^= StatusFrozen
}

// Register регистрирует типы пешки в реестре мира.
func Register(reg *world.Registry) {
	reg.Register(KindPawn,
		func() protocol.State { return NewPawnState() },
		func() entity.Behavior { return NewPawnBehavior() },
	)
	reg.RegisterCommand(func() protocol.Command { return &MoveCommand{} })
}
