package protocol

import (
	"fmt"

	"github.com/annel0/netsync/internal/bitbuf"
)

// State контракт реплицируемого состояния сущности.
//
// Состояние — изменяемый value-объект с фиксированным набором полей,
// у каждого поля свой кодировщик. Порядок полей канонический: бит i
// dirty-маски соответствует i-му полю. Encode пишет помеченные поля в
// ОБРАТНОМ каноническом порядке (буфер стековый, читатель снимает их в
// прямом), Decode читает в прямом.
//
// Инвариант: для любых s и basis декодирование дельты, закодированной
// относительно basis, восстанавливает s с точностью до эквивалентности
// кодировщиков полей.
type State interface {
	// Kind возвращает тип фабрики, породившей состояние.
	Kind() Kind

	// FieldCount число полей состояния (ширина dirty-маски).
	FieldCount() int

	// PrivateMask маска полей, видимых только контроллирующему пиру.
	PrivateMask() uint32

	// Reset сбрасывает все поля в нулевые значения.
	Reset()

	// CopyFrom пополевое присваивание из другого состояния того же типа.
	CopyFrom(src State)

	// Clone возвращает глубокую независимую копию.
	Clone() State

	// DirtyFlags возвращает маску полей, отличающихся от basis по
	// отношению равенства кодировщиков (координаты и углы — с допуском
	// квантования, целые — точно).
	DirtyFlags(basis State) uint32

	// Encode пишет помеченные флагами поля в буфер.
	Encode(buf *bitbuf.Buffer, flags uint32)

	// Decode читает помеченные флагами поля из буфера.
	// Непомеченные поля не изменяются.
	Decode(buf *bitbuf.Buffer, flags uint32) error

	// ApplyFlagged переносит помеченные флагами поля из src.
	ApplyFlagged(src State, flags uint32)

	// ApplySmoothed заполняет состояние интерполяцией между a и b с
	// параметром t. Числовые поля смешиваются линейно, дискретные
	// защёлкиваются: a при t < 0.5, иначе b. Параметр не ограничен
	// отрезком [0, 1] — значения вне него дают экстраполяцию.
	ApplySmoothed(a, b State, t float64)

	// Equals равенство всех полей по отношению кодировщиков.
	Equals(other State) bool
}

// Command команда управления сущностью, проигрываемая при предсказании.
type Command interface {
	// Tick тик клиента, на котором команда была сгенерирована.
	Tick() Tick

	// SetTick проставляет тик команды.
	SetTick(t Tick)

	// Encode пишет команду в буфер.
	Encode(buf *bitbuf.Buffer)

	// Decode читает команду из буфера.
	Decode(buf *bitbuf.Buffer) error

	// Clone возвращает независимую копию.
	Clone() Command
}

// Registry таблица фабрик состояний и команд, ключ — Kind.
// Реестр передаётся явно: глобального изменяемого состояния у слоя нет.
type Registry struct {
	states     map[Kind]func() State
	newCommand func() Command
	maxFields  int
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		states: make(map[Kind]func() State),
	}
}

// RegisterState регистрирует фабрику состояния для типа kind.
// Повторная регистрация того же типа — ошибка программиста.
func (r *Registry) RegisterState(kind Kind, factory func() State) {
	if _, exists := r.states[kind]; exists {
		panic(fmt.Sprintf("protocol: тип состояния %d уже зарегистрирован", kind))
	}
	r.states[kind] = factory

	if n := factory().FieldCount(); n > r.maxFields {
		r.maxFields = n
	}
}

// RegisterCommand регистрирует фабрику команд.
func (r *Registry) RegisterCommand(factory func() Command) {
	r.newCommand = factory
}

// NewState создаёт состояние зарегистрированного типа.
func (r *Registry) NewState(kind Kind) (State, error) {
	factory, exists := r.states[kind]
	if !exists {
		return nil, fmt.Errorf("protocol: неизвестный тип состояния %d: %w", kind, ErrProtocolMismatch)
	}
	return factory(), nil
}

// NewCommand создаёт команду зарегистрированного типа.
func (r *Registry) NewCommand() (Command, error) {
	if r.newCommand == nil {
		return nil, fmt.Errorf("protocol: фабрика команд не зарегистрирована: %w", ErrProtocolMismatch)
	}
	return r.newCommand(), nil
}

// DirtyBits ширина dirty-маски: число полей самого крупного
// зарегистрированного состояния.
func (r *Registry) DirtyBits() int {
	return r.maxFields
}

// AllFlags маска «все поля изменены» для состояния s.
func AllFlags(s State) uint32 {
	return (uint32(1) << s.FieldCount()) - 1
}
