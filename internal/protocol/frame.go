package protocol

import (
	"fmt"

	"github.com/annel0/netsync/internal/bitbuf"
)

// Проводной формат кадра обновления сущности (порядок чтения, LIFO):
//
//	[ EntityID ]
//	[ Tick ]
//	[ hasImmutableData : 1 бит ]
//	[ isDestroyed : 1 бит ]
//	[ если isDestroyed: removedTick ]
//	[ иначе:
//	    [ если hasImmutableData: Kind ]
//	    [ dirty-маска (ширина = число полей крупнейшего состояния) ]
//	    [ поля в каноническом порядке, только помеченные ]
//	]
//
// Полный снимок помечает все биты маски и несёт каждое поле;
// hasImmutableData сигнализирует, что состояние можно инициализировать
// из одного этого кадра. Kind передаётся в составе инициализирующих
// данных: без него получатель не знает раскладку новой сущности.

// kindEncoder фиксированные 8 бит под тип фабрики.
type kindEncoder struct{}

func (kindEncoder) RequiredBits() int      { return 8 }
func (kindEncoder) Pack(v Kind) uint32     { return uint32(v) }
func (kindEncoder) Unpack(raw uint32) Kind { return Kind(raw) }
func (kindEncoder) Equal(a, b Kind) bool   { return a == b }

// KindEncoder кодировщик типа фабрики.
var KindEncoder bitbuf.Encoder[Kind] = kindEncoder{}

// KindResolver отображает известную сущность на её тип фабрики.
// Нужен получателю кадров без инициализирующих данных.
type KindResolver func(id EntityID) (Kind, bool)

// FrameCodec кодирует и декодирует кадры обновлений поверх битового
// буфера. Ширина dirty-маски берётся из реестра.
type FrameCodec struct {
	registry *Registry
	dirtyEnc *bitbuf.FlagEncoder

	// buffers пул битовых буферов для сборки пакетов.
	buffers *Pool[*bitbuf.Buffer]
}

// NewFrameCodec создаёт кодек для зарегистрированных типов состояний.
func NewFrameCodec(registry *Registry) *FrameCodec {
	return &FrameCodec{
		registry: registry,
		dirtyEnc: bitbuf.NewFlagEncoder(registry.DirtyBits()),
		buffers:  NewPool(bitbuf.NewBuffer),
	}
}

// EncodeFrame пишет кадр в буфер. Запись идёт в порядке, обратном
// чтению: заголовок ложится на вершину стека последним.
func (c *FrameCodec) EncodeFrame(buf *bitbuf.Buffer, delta *StateDelta) {
	if delta.IsDestroyed {
		bitbuf.PushValue(buf, TickEncoder, delta.RemovedTick)
	} else {
		delta.State.Encode(buf, delta.Flags)
		bitbuf.PushValue[uint32](buf, c.dirtyEnc, delta.Flags)
		if delta.HasImmutableData {
			bitbuf.PushValue(buf, KindEncoder, delta.Kind)
		}
	}

	bitbuf.PushValue(buf, BoolEncoder, delta.IsDestroyed)
	bitbuf.PushValue(buf, BoolEncoder, delta.HasImmutableData)
	bitbuf.PushValue(buf, TickEncoder, delta.TickValue)
	bitbuf.PushValue(buf, IDEncoder, delta.EntityID)
}

// DecodeFrame читает один кадр с вершины буфера.
//
// Для кадров без инициализирующих данных тип состояния берётся у
// resolver; если сущность получателю неизвестна, восстановить границу
// кадра нельзя — вызывающий обязан отбросить пакет целиком.
func (c *FrameCodec) DecodeFrame(buf *bitbuf.Buffer, resolve KindResolver) (*StateDelta, error) {
	delta := &StateDelta{}

	var err error
	if delta.EntityID, err = bitbuf.PopValue(buf, IDEncoder); err != nil {
		return nil, err
	}
	if delta.TickValue, err = bitbuf.PopValue(buf, TickEncoder); err != nil {
		return nil, err
	}
	if delta.HasImmutableData, err = bitbuf.PopValue(buf, BoolEncoder); err != nil {
		return nil, err
	}

	if delta.IsDestroyed, err = bitbuf.PopValue(buf, BoolEncoder); err != nil {
		return nil, err
	}

	if delta.IsDestroyed {
		// Кадр уничтожения не несёт состояния и декодируется без знания
		// раскладки: получатель может забыть сущность раньше отправителя.
		if delta.RemovedTick, err = bitbuf.PopValue(buf, TickEncoder); err != nil {
			return nil, err
		}
		return delta, nil
	}

	if delta.HasImmutableData {
		if delta.Kind, err = bitbuf.PopValue(buf, KindEncoder); err != nil {
			return nil, err
		}
	} else {
		kind, known := resolve(delta.EntityID)
		if !known {
			return nil, fmt.Errorf("protocol: сущность %d неизвестна: %w",
				delta.EntityID, ErrFirstDeltaNotImmutable)
		}
		delta.Kind = kind
	}

	if delta.Flags, err = bitbuf.PopValue[uint32](buf, c.dirtyEnc); err != nil {
		return nil, err
	}

	state, err := c.registry.NewState(delta.Kind)
	if err != nil {
		return nil, err
	}
	if delta.Flags >= uint32(1)<<state.FieldCount() {
		return nil, fmt.Errorf("protocol: маска %#x шире раскладки типа %d: %w",
			delta.Flags, delta.Kind, ErrProtocolMismatch)
	}
	if err := state.Decode(buf, delta.Flags); err != nil {
		return nil, err
	}
	delta.State = state

	return delta, nil
}
