package game

import (
	"github.com/annel0/netsync/internal/bitbuf"
	"github.com/annel0/netsync/internal/protocol"
)

// moveEnc кодировщик шага движения за тик.
var moveEnc = bitbuf.NewFloatEncoder(-8, 8, 0.05)

// MoveCommand команда перемещения пешки на тике клиента.
type MoveCommand struct {
	tick protocol.Tick
	DX   float64
	DY   float64
}

// NewMoveCommand создаёт команду движения.
func NewMoveCommand(tick protocol.Tick, dx, dy float64) *MoveCommand {
	return &MoveCommand{tick: tick, DX: dx, DY: dy}
}

func (c *MoveCommand) Tick() protocol.Tick { return c.tick }

func (c *MoveCommand) SetTick(t protocol.Tick) { c.tick = t }

// Encode пишет команду; порядок обратный чтению.
func (c *MoveCommand) Encode(buf *bitbuf.Buffer) {
	bitbuf.PushValue(buf, moveEnc, c.DY)
	bitbuf.PushValue(buf, moveEnc, c.DX)
}

// Decode читает команду.
func (c *MoveCommand) Decode(buf *bitbuf.Buffer) error {
	var err error
	if c.DX, err = bitbuf.PopValue(buf, moveEnc); err != nil {
		return err
	}
	if c.DY, err = bitbuf.PopValue(buf, moveEnc); err != nil {
		return err
	}
	return nil
}

func (c *MoveCommand) Clone() protocol.Command {
	clone := *c
	return &clone
}
