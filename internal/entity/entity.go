package entity

import (
	"fmt"

	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/replication"
)

// Options параметры репликации сущности.
type Options struct {
	// DejitterBufferLength слотов в клиентском входящем буфере и в
	// исходящей истории сервера.
	DejitterBufferLength int

	// NetworkSendRate шаг тиков между отправляемыми снимками; он же
	// делитель дежиттер-буфера.
	NetworkSendRate int

	// TicksBeforeFreeze разрыв в тиках до заморозки удалённой
	// сущности; 0 отключает заморозку.
	TicksBeforeFreeze int

	// ForceUpdates отправлять кадры даже с пустой dirty-маской.
	ForceUpdates bool
}

// DefaultOptions параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		DejitterBufferLength: 30,
		NetworkSendRate:      3,
		TicksBeforeFreeze:    10,
		ForceUpdates:         true,
	}
}

// LifecycleEvent событие жизненного цикла для наблюдателя мира.
type LifecycleEvent int

const (
	EventStarted LifecycleEvent = iota
	EventFrozen
	EventUnfrozen
	EventShutdown
)

// Role роль хоста. Данные сущности одинаковы на сервере и клиенте,
// различается лишь то, какие буферы живут и какие колбэки стреляют.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Entity агрегат (id, тип фабрики): состояние, буферы, контроллер и
// жизненный цикл.
type Entity struct {
	id       protocol.EntityID
	kind     protocol.Kind
	role     Role
	opts     Options
	state    protocol.State
	behavior Behavior

	controller        Controller
	controllerPending bool

	removedTick protocol.Tick
	hasStarted  bool

	// Сервер: исходящая история для выбора базиса дельт.
	outgoing *replication.QueueBuffer[*replication.Record]

	// Клиент: входящий дежиттер-буфер и буферы восстановления.
	incoming   *replication.DejitterBuffer[*protocol.StateDelta]
	smoothing  *replication.SmoothingBuffer
	prediction *replication.PredictionBuffer
	lastDelta  protocol.Tick
	frozen     bool

	observer func(e *Entity, ev LifecycleEvent)
}

// New создаёт сущность указанной роли.
func New(id protocol.EntityID, role Role, state protocol.State, behavior Behavior, opts Options) *Entity {
	if behavior == nil {
		behavior = NopBehavior{}
	}
	e := &Entity{
		id:       id,
		kind:     state.Kind(),
		role:     role,
		opts:     opts,
		state:    state,
		behavior: behavior,
	}
	switch role {
	case RoleServer:
		e.outgoing = replication.NewQueueBuffer[*replication.Record](opts.DejitterBufferLength)
	case RoleClient:
		e.incoming = replication.NewDejitterBuffer[*protocol.StateDelta](
			opts.DejitterBufferLength, opts.NetworkSendRate)
		e.smoothing = replication.NewSmoothingBuffer()
		e.prediction = replication.NewPredictionBuffer()
	}
	return e
}

// ID идентификатор сущности.
func (e *Entity) ID() protocol.EntityID { return e.id }

// Kind тип фабрики.
func (e *Entity) Kind() protocol.Kind { return e.kind }

// State текущее состояние: авторитетное на сервере, последнее
// подтверждённое либо предсказанное на клиенте.
func (e *Entity) State() protocol.State { return e.state }

// Controller текущий контроллер (nil — удалённая сущность).
func (e *Entity) Controller() Controller { return e.controller }

// IsOwned управляется ли сущность локальным контроллером.
func (e *Entity) IsOwned() bool { return e.controller != nil }

// IsFrozen заморожена ли удалённая сущность.
func (e *Entity) IsFrozen() bool { return e.frozen }

// RemovedTick тик запланированного удаления (невалидный, пока
// удаление не назначено).
func (e *Entity) RemovedTick() protocol.Tick { return e.removedTick }

// LastDelta тик последней принятой дельты.
func (e *Entity) LastDelta() protocol.Tick { return e.lastDelta }

// Incoming клиентский дежиттер-буфер.
func (e *Entity) Incoming() *replication.DejitterBuffer[*protocol.StateDelta] {
	return e.incoming
}

// Prediction клиентский буфер предсказания.
func (e *Entity) Prediction() *replication.PredictionBuffer { return e.prediction }

// Outgoing серверная исходящая история.
func (e *Entity) Outgoing() *replication.QueueBuffer[*replication.Record] {
	return e.outgoing
}

// SetObserver устанавливает наблюдателя жизненного цикла (мир вешает
// сюда публикацию в шину событий).
func (e *Entity) SetObserver(fn func(e *Entity, ev LifecycleEvent)) {
	e.observer = fn
}

func (e *Entity) notify(ev LifecycleEvent) {
	if e.observer != nil {
		e.observer(e, ev)
	}
}

// SetController назначает контроллер. Колбэк смены стреляет на
// следующем тике; сущность, ставшая управляемой, немедленно
// размораживается.
func (e *Entity) SetController(c Controller) {
	if e.controller == c {
		return
	}
	e.controller = c
	e.controllerPending = true
	if e.frozen && c != nil {
		e.frozen = false
		e.behavior.OnUnfrozen(e)
		e.notify(EventUnfrozen)
	}
}

// doStart идемпотентно запускает жизненный цикл: на первом вызове
// стреляют OnControllerChanged и OnStart.
func (e *Entity) doStart() {
	if !e.hasStarted {
		e.hasStarted = true
		e.controllerPending = false
		e.behavior.OnControllerChanged(e)
		e.behavior.OnStart(e)
		e.notify(EventStarted)
		return
	}
	if e.controllerPending {
		e.controllerPending = false
		e.behavior.OnControllerChanged(e)
	}
}

// MarkForRemove планирует удаление на следующий тик, чтобы не менять
// сущность посреди текущего.
func (e *Entity) MarkForRemove(current protocol.Tick) {
	e.removedTick = current + 1
}

// Shutdown вызывается миром при окончательном удалении.
func (e *Entity) Shutdown() {
	e.behavior.OnShutdown(e)
	e.notify(EventShutdown)
}

//====================== Серверный путь ======================//

// UpdateServer один тик авторитетной симуляции.
func (e *Entity) UpdateServer() {
	e.doStart()
	if e.controller != nil {
		if cmd := e.controller.LatestCommand(); cmd != nil {
			e.behavior.OnSimulateCommand(e, cmd)
		}
	}
	e.behavior.OnSimulate(e)
}

// StoreRecord кладёт снимок текущего состояния в исходящую историю.
// Запись подавляется, когда состояние равно предыдущей записи по
// отношению эквивалентности кодировщиков — тривиальная история памяти
// не стоит.
func (e *Entity) StoreRecord(tick protocol.Tick) {
	if prev, ok := e.outgoing.Latest(); ok && prev.State().Equals(e.state) {
		return
	}
	e.outgoing.Store(replication.NewRecord(tick, e.state))
}

// ProduceDelta строит дельту для отправки пиру.
//
// Базис — запись истории с тиком не больше basisTick; если история его
// уже вытеснила (или basisTick невалиден), дельта повышается до полного
// снимка с инициализирующими данными. Приватные поля входят только в
// кадры контроллирующему пиру.
//
// Второе значение false — кадр пропущен: при выключенном ForceUpdates
// пустая маска без инициализирующих данных и без уничтожения на провод
// не идёт.
func (e *Entity) ProduceDelta(tick, basisTick protocol.Tick, toController bool) (*protocol.StateDelta, bool) {
	var basis protocol.State
	if basisTick.IsValid() {
		if rec, ok := e.outgoing.LatestAt(basisTick); ok {
			basis = rec.State()
		}
	}

	delta := &protocol.StateDelta{
		EntityID:         e.id,
		Kind:             e.kind,
		TickValue:        tick,
		HasImmutableData: basis == nil,
		IsDestroyed:      e.removedTick.IsValid(),
		RemovedTick:      e.removedTick,
	}

	if delta.IsDestroyed {
		return delta, true
	}

	var flags uint32
	if basis == nil {
		flags = protocol.AllFlags(e.state)
	} else {
		flags = e.state.DirtyFlags(basis)
	}
	if !toController {
		flags &^= e.state.PrivateMask()
	}

	if flags == 0 && !delta.HasImmutableData && !e.opts.ForceUpdates {
		return nil, false
	}

	delta.Flags = flags
	delta.State = e.state.Clone()
	return delta, true
}

//====================== Клиентский путь ======================//

// UpdateClient один клиентский тик: сглаживание, запуск жизненного
// цикла и, для управляемой сущности, предсказание с повтором команд.
func (e *Entity) UpdateClient(tick protocol.Tick) error {
	confirmed, err := e.smoothing.Update(e.incoming, tick)
	if err != nil {
		return err
	}
	e.state.CopyFrom(confirmed)

	e.doStart()

	if e.controller != nil {
		predicted := e.prediction.Start(e.incoming, tick, e.state)
		e.state.CopyFrom(predicted)

		for _, cmd := range e.controller.PendingCommands() {
			e.behavior.OnSimulateCommand(e, cmd)
			e.behavior.OnSimulate(e)
			e.prediction.Update(e.state)
		}
	}
	return nil
}

// GetSmoothed состояние для отрисовки: предсказанное для управляемой
// сущности, интерполированное для удалённой.
func (e *Entity) GetSmoothed(frameDelta float64, now protocol.Tick) (protocol.State, error) {
	if e.controller != nil {
		return e.prediction.GetSmoothed(frameDelta)
	}
	return e.smoothing.GetSmoothed(frameDelta, now)
}

// ReceiveDelta принимает дельту из сети.
func (e *Entity) ReceiveDelta(d *protocol.StateDelta) error {
	var err error
	if d.IsDestroyed {
		e.removedTick = d.RemovedTick
	} else if !e.smoothing.HasState() && e.incoming.Len() == 0 && !d.HasImmutableData {
		// Инициализировать сущность из такой дельты нельзя — ждём
		// полный кадр.
		err = fmt.Errorf("replication: сущность %d: %w", e.id, protocol.ErrFirstDeltaNotImmutable)
	} else {
		e.incoming.Store(d)
	}

	if d.TickValue > e.lastDelta {
		e.lastDelta = d.TickValue
	}
	return err
}

// UpdateFreeze обновляет заморозку по фактическому тику сервера.
// Замерзают только удалённые сущности; управляемая никогда не
// заморожена. Повторные вызовы с тем же тиком дают не больше одного
// перехода.
func (e *Entity) UpdateFreeze(actualServerTick protocol.Tick) {
	if e.controller != nil {
		if e.frozen {
			e.frozen = false
			e.behavior.OnUnfrozen(e)
			e.notify(EventUnfrozen)
		}
		return
	}
	if e.opts.TicksBeforeFreeze <= 0 || !e.lastDelta.IsValid() {
		return
	}

	gap := actualServerTick.Delta(e.lastDelta)
	switch {
	case gap > int32(e.opts.TicksBeforeFreeze) && !e.frozen:
		e.frozen = true
		e.behavior.OnFrozen(e)
		e.notify(EventFrozen)
	case gap <= int32(e.opts.TicksBeforeFreeze) && e.frozen:
		e.frozen = false
		e.behavior.OnUnfrozen(e)
		e.notify(EventUnfrozen)
	}
}
