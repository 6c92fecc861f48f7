package protocol

// StateDelta передаваемое обновление сущности: частичное состояние
// относительно исторического базиса плюс управляющие биты.
type StateDelta struct {
	EntityID EntityID
	Kind     Kind

	// TickValue тик сервера, на котором дельта была произведена.
	TickValue Tick

	// Flags dirty-маска: бит i установлен, если i-е поле присутствует
	// в State.
	Flags uint32

	// State частичное состояние: осмысленны только помеченные поля.
	// При HasImmutableData кадр самодостаточен и может инициализировать
	// состояние получателя с нуля.
	State State

	// HasImmutableData кадр несёт полные инициализирующие данные
	// (первая отправка или потерянный базис).
	HasImmutableData bool

	// IsDestroyed сущность уничтожена; RemovedTick несёт тик удаления.
	IsDestroyed bool
	RemovedTick Tick
}

// Tick реализует HasTick для буферов, индексированных тиком.
func (d *StateDelta) Tick() Tick { return d.TickValue }
