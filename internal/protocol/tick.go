// Package protocol определяет типы и проводной формат слоя репликации:
// тики, идентификаторы сущностей, контракт состояния, дельты и кодек
// кадров поверх битового буфера.
package protocol

import "github.com/annel0/netsync/internal/bitbuf"

// Tick монотонный счётчик шага симуляции. Нулевое значение — невалидный
// тик, он меньше любого валидного. Переполнение не обрабатывается:
// горизонт счётчика много больше любой сессии.
type Tick uint32

// TickInvalid выделенное невалидное значение тика.
const TickInvalid Tick = 0

// IsValid сообщает, валиден ли тик.
func (t Tick) IsValid() bool { return t != TickInvalid }

// Delta возвращает знаковую разность тиков a − b.
func (t Tick) Delta(o Tick) int32 {
	return int32(t) - int32(o)
}

// EntityID непрозрачный идентификатор сущности, уникальный в рамках
// сессии. Нулевое значение — невалидный идентификатор.
type EntityID uint32

// EntityIDInvalid выделенное невалидное значение идентификатора.
const EntityIDInvalid EntityID = 0

// IsValid сообщает, валиден ли идентификатор.
func (id EntityID) IsValid() bool { return id != EntityIDInvalid }

// Kind тип фабрики сущности; по нему реестр создаёт состояние и
// поведение нужного типа.
type Kind uint8

// tickEncoder и idEncoder передают значения без сжатия: диапазон обоих
// счётчиков заранее не ограничен.
type tickEncoder struct{}

func (tickEncoder) RequiredBits() int      { return 32 }
func (tickEncoder) Pack(v Tick) uint32     { return uint32(v) }
func (tickEncoder) Unpack(raw uint32) Tick { return Tick(raw) }
func (tickEncoder) Equal(a, b Tick) bool   { return a == b }

type idEncoder struct{}

func (idEncoder) RequiredBits() int          { return 32 }
func (idEncoder) Pack(v EntityID) uint32     { return uint32(v) }
func (idEncoder) Unpack(raw uint32) EntityID { return EntityID(raw) }
func (idEncoder) Equal(a, b EntityID) bool   { return a == b }

var (
	// TickEncoder кодировщик тиков для проводного формата.
	TickEncoder bitbuf.Encoder[Tick] = tickEncoder{}

	// IDEncoder кодировщик идентификаторов сущностей.
	IDEncoder bitbuf.Encoder[EntityID] = idEncoder{}

	// BoolEncoder однобитовые управляющие флаги кадра.
	BoolEncoder bitbuf.Encoder[bool] = bitbuf.NewBoolEncoder()
)
