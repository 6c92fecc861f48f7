package protocol

import (
	"fmt"

	"github.com/annel0/netsync/internal/bitbuf"
)

// Пакетный уровень: несколько кадров в одном датаграмном пакете.
//
// Серверный пакет (порядок чтения): [serverTick] [число кадров] [кадры].
// Клиентский пакет: [ackedTick] [число команд] [команды].
// Подложка — датаграммы с потерями, дублированием и переупорядочиванием,
// но без искажения содержимого.

// maxFramesPerPacket предел кадров в одном пакете.
const maxFramesPerPacket = 255

var countEncoder = bitbuf.NewIntEncoder(0, maxFramesPerPacket)

// ServerPacket снимок обновлений для одного пира.
type ServerPacket struct {
	// ServerTick фактический тик сервера на момент отправки; клиент
	// использует его для оценки разрыва при заморозке сущностей.
	ServerTick Tick

	// Deltas кадры обновлений, не больше maxFramesPerPacket.
	Deltas []*StateDelta
}

// ClientPacket подтверждение и свежие команды от клиента.
type ClientPacket struct {
	// AckedTick последний тик сервера, принятый клиентом; сервер
	// выбирает его базисом следующих дельт.
	AckedTick Tick

	// Commands команды локального контроллера по возрастанию тиков.
	Commands []Command
}

// EncodeServerPacket сериализует серверный пакет в байты.
func (c *FrameCodec) EncodeServerPacket(pkt *ServerPacket) ([]byte, error) {
	if len(pkt.Deltas) > maxFramesPerPacket {
		return nil, fmt.Errorf("protocol: %d кадров не помещаются в пакет", len(pkt.Deltas))
	}

	buf := c.buffers.Get()
	defer func() {
		buf.Reset()
		c.buffers.Put(buf)
	}()

	for i := len(pkt.Deltas) - 1; i >= 0; i-- {
		c.EncodeFrame(buf, pkt.Deltas[i])
	}
	bitbuf.PushValue(buf, countEncoder, int32(len(pkt.Deltas)))
	bitbuf.PushValue(buf, TickEncoder, pkt.ServerTick)
	return buf.Store(), nil
}

// DecodeServerPacket разбирает серверный пакет.
// Любая ошибка фатальна для пакета целиком: границы последующих кадров
// восстановить нельзя. Вызывающий отбрасывает пакет и продолжает сессию.
func (c *FrameCodec) DecodeServerPacket(data []byte, resolve KindResolver) (*ServerPacket, error) {
	buf, err := bitbuf.Load(data)
	if err != nil {
		return nil, err
	}

	pkt := &ServerPacket{}
	if pkt.ServerTick, err = bitbuf.PopValue(buf, TickEncoder); err != nil {
		return nil, err
	}

	count, err := bitbuf.PopValue(buf, countEncoder)
	if err != nil {
		return nil, err
	}

	pkt.Deltas = make([]*StateDelta, 0, count)
	for i := int32(0); i < count; i++ {
		delta, err := c.DecodeFrame(buf, resolve)
		if err != nil {
			return nil, fmt.Errorf("protocol: кадр %d из %d: %w", i, count, err)
		}
		pkt.Deltas = append(pkt.Deltas, delta)
	}
	return pkt, nil
}

// EncodeClientPacket сериализует клиентский пакет.
func (c *FrameCodec) EncodeClientPacket(pkt *ClientPacket) ([]byte, error) {
	if len(pkt.Commands) > maxFramesPerPacket {
		return nil, fmt.Errorf("protocol: %d команд не помещаются в пакет", len(pkt.Commands))
	}

	buf := c.buffers.Get()
	defer func() {
		buf.Reset()
		c.buffers.Put(buf)
	}()

	for i := len(pkt.Commands) - 1; i >= 0; i-- {
		cmd := pkt.Commands[i]
		cmd.Encode(buf)
		bitbuf.PushValue(buf, TickEncoder, cmd.Tick())
	}
	bitbuf.PushValue(buf, countEncoder, int32(len(pkt.Commands)))
	bitbuf.PushValue(buf, TickEncoder, pkt.AckedTick)
	return buf.Store(), nil
}

// DecodeClientPacket разбирает клиентский пакет.
func (c *FrameCodec) DecodeClientPacket(data []byte) (*ClientPacket, error) {
	buf, err := bitbuf.Load(data)
	if err != nil {
		return nil, err
	}

	pkt := &ClientPacket{}
	if pkt.AckedTick, err = bitbuf.PopValue(buf, TickEncoder); err != nil {
		return nil, err
	}

	count, err := bitbuf.PopValue(buf, countEncoder)
	if err != nil {
		return nil, err
	}

	pkt.Commands = make([]Command, 0, count)
	for i := int32(0); i < count; i++ {
		tick, err := bitbuf.PopValue(buf, TickEncoder)
		if err != nil {
			return nil, err
		}
		cmd, err := c.registry.NewCommand()
		if err != nil {
			return nil, err
		}
		if err := cmd.Decode(buf); err != nil {
			return nil, fmt.Errorf("protocol: команда %d из %d: %w", i, count, err)
		}
		cmd.SetTick(tick)
		pkt.Commands = append(pkt.Commands, cmd)
	}
	return pkt, nil
}
